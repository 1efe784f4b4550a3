// Package hddt provides shared types for the Vietnamese e-invoice portal
// (hệ thống hóa đơn điện tử) crawler: the target environment and the
// endpoint set of the portal API.
package hddt

type Environment int

const (
	Prod Environment = iota
)

func (e Environment) BaseURL() string {
	switch e {
	case Prod:
		return "https://hoadondientu.gdt.gov.vn:30000"
	}
	panic("Invalid environment")
}

const (
	LoginPath   = "/security-taxpayer/authenticate"
	CaptchaPath = "/captcha"
)

// Tab selects between the two invoice listings the portal exposes to a
// taxpayer: invoices purchased by them and invoices sold by them.
type Tab int

const (
	Purchase Tab = iota
	Sold
)

func (t Tab) String() string {
	if t == Sold {
		return "sold"
	}
	return "purchase"
}

// queryPrefix returns the API prefix for regular invoices or for the
// sco-query tree serving invoices originated from cash registers.
func queryPrefix(cashRegister bool) string {
	if cashRegister {
		return "/sco-query"
	}
	return "/query"
}

// ListPath is the paginated listing endpoint for the given tab and category.
func (t Tab) ListPath(cashRegister bool) string {
	return queryPrefix(cashRegister) + "/invoices/" + t.String()
}

// ExportXMLPath is the per-invoice ZIP archive endpoint.
func ExportXMLPath(cashRegister bool) string {
	return queryPrefix(cashRegister) + "/invoices/export-xml"
}

// DetailPath is the structured detail lookup used when no archive exists.
func DetailPath(cashRegister bool) string {
	return queryPrefix(cashRegister) + "/invoices/detail"
}

// SearchPath is the captcha-gated lookup available without authentication.
func SearchPath(cashRegister bool) string {
	return queryPrefix(cashRegister) + "/invoices/search"
}
