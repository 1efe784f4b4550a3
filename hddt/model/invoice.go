// Package model holds the portal's native invoice schema (Vietnamese field
// names, as returned by hoadondientu.gdt.gov.vn) and the canonical invoice
// record produced for downstream accounting ingestion.
package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RawInvoice is the portal's native invoice representation. Monetary fields
// are nullable; the normalizer defaults them to zero. Rates and dates stay
// nullable all the way through.
type RawInvoice struct {
	SellerTaxCode string `json:"nbmst"`
	SellerName    string `json:"nbten"`
	SellerAddress string `json:"nbdchi"`
	SellerPhone   string `json:"nbsdthoai"`

	BuyerTaxCode string `json:"nmmst"`
	BuyerName    string `json:"nmten"`
	BuyerAddress string `json:"nmdchi"`
	BuyerPhone   string `json:"nmsdthoai"`

	TemplateNo *int   `json:"khmshdon"`
	Series     string `json:"khhdon"`
	InvoiceNo  string `json:"shdon"`
	IssuedAt   *Time  `json:"tdlap"`

	VerificationCode string `json:"mhdon"`
	PaymentMethod    string `json:"thtttoan"`
	CurrencyCode     string `json:"dvtte"`
	ExchangeRate     *decimal.Decimal `json:"tgia"`

	TotalWithoutVat *decimal.Decimal `json:"tgtcthue"`
	TotalVat        *decimal.Decimal `json:"tgtthue"`
	TotalDiscount   *decimal.Decimal `json:"ttcktmai"`
	TotalAmount     *decimal.Decimal `json:"tgtttbso"`

	Nature           *int  `json:"tchat"`
	Status           *int  `json:"tthai"`
	ProcessingStatus *int  `json:"ttxly"`
	CreatedAt        *Time `json:"ntao"`
	UpdatedAt        *Time `json:"ncnhat"`

	Items      []RawLineItem   `json:"hdhhdvu"`
	VatSummary []RawVatSummary `json:"thttltsuat"`

	// original-invoice reference carried by replacement/adjustment invoices
	OriginalTemplateNo string `json:"khmshdgoc"`
	OriginalSeries     string `json:"khhdgoc"`
	OriginalInvoiceNo  string `json:"shdgoc"`
	OriginalDate       *Time  `json:"nhdgoc"`
	OriginalNote       string `json:"gchu"`

	RelatedInvoices    []RawRelatedInvoice    `json:"hdlquans"`
	ErrorNotifications []RawErrorNotification `json:"hdtbssrses"`
	OtherInfo          []RawOtherInfo         `json:"ttkhac"`
	RejectionReasons   []string               `json:"pdndungs"`

	// shipping and contract details for delivery note templates
	ShipperName           string `json:"ngvchuyen"`
	VehicleType           string `json:"ptvchuyen"`
	ExportPerson          string `json:"tnxhang"`
	TransportContractNo   string `json:"hdvchuyen"`
	InternalTransferOrder string `json:"ldieudong"`
	EconomicContractNo    string `json:"hdkte"`
	EconomicContractDate  *Time  `json:"nhdkte"`

	BuyerFullName      string `json:"nmtnmua"`
	BuyerBankAccount   string `json:"nmstknguoimua"`
	BuyerBankName      string `json:"nmtnhang"`
	SellerBankAccount  string `json:"nbstkhoan"`
	SellerBankName     string `json:"nbtnhang"`
	DeclarationNumber  string `json:"sbke"`
	DeclarationDate    *Time  `json:"nbke"`
}

// RawLineItem is one goods/service line. tsuat is the portal's fractional
// VAT rate (0.1 == 10%), unlike the textual rate in the VAT summary.
type RawLineItem struct {
	Ordinal        *int             `json:"stt"`
	Nature         *int             `json:"tchat"`
	Code           string           `json:"mhhdvu"`
	Name           string           `json:"ten"`
	Unit           string           `json:"dvtinh"`
	Quantity       *decimal.Decimal `json:"sluong"`
	UnitPrice      *decimal.Decimal `json:"dgia"`
	Amount         *decimal.Decimal `json:"thtien"`
	VatRate        *decimal.Decimal `json:"tsuat"`
	VatAmount      *decimal.Decimal `json:"tthue"`
	DiscountRate   *decimal.Decimal `json:"tlckhau"`
	DiscountAmount *decimal.Decimal `json:"stckhau"`
	AmountAfterVat *decimal.Decimal `json:"thtcthue"`
}

// RawVatSummary is one entry of the invoice-level VAT aggregate. The rate is
// textual and may carry sentinel markers ("khac", "kct", ...).
type RawVatSummary struct {
	Rate      string           `json:"tsuat"`
	Amount    *decimal.Decimal `json:"thtien"`
	VatAmount *decimal.Decimal `json:"tthue"`
}

type RawRelatedInvoice struct {
	TemplateNo *int   `json:"khmshdon"`
	Series     string `json:"khhdon"`
	InvoiceNo  string `json:"shdon"`
	Note       string `json:"gchu"`
}

type RawErrorNotification struct {
	OriginalTemplateNo string `json:"khmshdgoc"`
	OriginalSeries     string `json:"khhdgoc"`
	OriginalInvoiceNo  string `json:"shdgoc"`
	OriginalNote       string `json:"gchu"`
	Date               *Time  `json:"ngay"`
	Kind               *int   `json:"loai"`
	Name               string `json:"ten"`
	NotifyNature       *int   `json:"tctbao"`
	Reason             string `json:"ldo"`
	Status             *int   `json:"tthai"`
	ProcessingStatus   *int   `json:"tthaixly"`
}

type RawOtherInfo struct {
	Field    string `json:"ttruong"`
	DataType string `json:"kdlieu"`
	Value    string `json:"dlieu"`
}

// IsRegisterCash reports whether a series code marks a cash-register-originated
// invoice: the first 'M' sits at a fixed character position.
func IsRegisterCash(series string) bool {
	return strings.IndexByte(series, 'M') == 3
}
