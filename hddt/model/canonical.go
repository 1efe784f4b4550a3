package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalInvoice is the normalized projection of a RawInvoice handed to the
// accounting-sync boundary. InvoiceID and TransID are equal and derived
// deterministically from invoice number, template, series, date and seller
// tax code; they are the sole de-duplication key across repeated syncs.
type CanonicalInvoice struct {
	InvoiceID string `json:"invoiceId"`
	TransID   string `json:"transId"`

	SellerTaxCode     string `json:"sellerTaxCode"`
	SellerName        string `json:"sellerName"`
	SellerAddress     string `json:"sellerAddress"`
	SellerPhoneNumber string `json:"sellerPhoneNumber"`

	BuyerTaxCode     string `json:"buyerTaxCode"`
	BuyerName        string `json:"buyerName"`
	BuyerAddress     string `json:"buyerAddress"`
	BuyerPhoneNumber string `json:"buyerPhoneNumber"`

	TemplateNo  string    `json:"templateNo"`
	Series      string    `json:"series"`
	InvoiceNo   string    `json:"invoiceNo"`
	InvoiceDate time.Time `json:"invoiceDate"`

	PaymentMethod string          `json:"paymentMethod"`
	CurrencyCode  string          `json:"ccyCode"`
	ExchangeRate  decimal.Decimal `json:"exchangeRate"`

	TotalAmountWithoutVat decimal.Decimal `json:"totalAmountWithoutVat"`
	TotalVatAmount        decimal.Decimal `json:"totalVatAmount"`
	TotalDiscountAmount   decimal.Decimal `json:"totalDiscountAmount"`
	TotalAmount           decimal.Decimal `json:"totalAmount"`

	// nil when the invoice carries more than one distinct VAT rate
	VatRate *decimal.Decimal `json:"vatRate"`

	VerificationCode string     `json:"mccqt"`
	StatusInvoice    *int       `json:"statusInvoice"`
	ProcessingStatus *int       `json:"processingStatus"`
	CreatedDate      *time.Time `json:"createdDate"`
	ModifiedDate     *time.Time `json:"modifiedDate"`
	IsRegisterCash   bool       `json:"isRegisterCash"`

	Items      []LineItem  `json:"items"`
	Regulation ND123Info   `json:"infoND123"`
	Others     []OtherInfo `json:"commonOthers,omitempty"`

	// original XML document; empty when the portal holds no archive
	XMLContent string `json:"xmlContent,omitempty"`

	SubscriberID string `json:"subscriberId,omitempty"`
	OrgID        string `json:"orgId,omitempty"`
}

type LineItem struct {
	LineNumber     int              `json:"lineNumber"`
	Kind           int              `json:"kind"`
	ItemCode       string           `json:"itemCode"`
	ItemName       string           `json:"itemName"`
	UnitName       string           `json:"unitName"`
	Quantity       *decimal.Decimal `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	AmountWithoutVat decimal.Decimal `json:"amountWithoutVat"`
	VatRate        *decimal.Decimal `json:"vatRate"`
	VatAmount      decimal.Decimal  `json:"vatAmount"`
	DiscountRate   *decimal.Decimal `json:"discountRate"`
	DiscountAmount decimal.Decimal  `json:"discountAmount"`
	Amount         decimal.Decimal  `json:"amount"`
	IsPromotion    bool             `json:"isPromotion"`
}

// VatInfo is one line of the invoice-level VAT aggregate after sentinel
// decoding. IsVatOther records the "khac" marker independently of the
// resolved rate.
type VatInfo struct {
	VatRate               *decimal.Decimal `json:"vatRate"`
	TotalVatAmount        decimal.Decimal  `json:"totalVatAmount"`
	TotalAmountWithoutVat decimal.Decimal  `json:"totalAmountWithoutVat"`
	IsVatOther            bool             `json:"isVatOther"`
}

// InvConnect links an invoice to a related invoice or to one entry of its
// error-notification history.
type InvConnect struct {
	TemplateNo           string     `json:"templateNo"`
	Series               string     `json:"series"`
	InvoiceNo            string     `json:"invoiceNo"`
	InvoiceDate          *time.Time `json:"invoiceDate,omitempty"`
	Noted                string     `json:"noted"`
	ChangeDate           *time.Time `json:"changeDate,omitempty"`
	Type                 *int       `json:"type,omitempty"`
	NotifyName           string     `json:"notifyName,omitempty"`
	NotifyNature         int        `json:"notifyNature,omitempty"`
	Reason               string     `json:"reason,omitempty"`
	StatusInvoice        *int       `json:"statusInvoice,omitempty"`
	StatusInvoiceProcess *int       `json:"statusInvoiceProcess,omitempty"`
}

// ND123Info groups the fields mandated by decree 123 reporting: the VAT
// aggregate, related-invoice links, error notifications, shipping, banking
// and declaration details.
type ND123Info struct {
	Nature           *int `json:"nature"`
	Status           *int `json:"status"`
	ProcessingStatus *int `json:"processingStatus"`

	ListVat               []VatInfo    `json:"listVat"`
	InvConnect            InvConnect   `json:"invConnect"`
	InvConnects           []InvConnect `json:"invConnects,omitempty"`
	InvNotificationWrongs []InvConnect `json:"invNotificationWrongs,omitempty"`

	ShipperName           string `json:"shipperName,omitempty"`
	VehicleType           string `json:"vehicleType,omitempty"`
	ExportPerson          string `json:"exportPerson,omitempty"`
	NumberAgreement       string `json:"numberAgreement,omitempty"`
	InternalTransferOrder string `json:"internalTransferOrder,omitempty"`

	CommandOrder     string     `json:"commandOrder,omitempty"`
	CommandOrderDate *time.Time `json:"commandOrderDate,omitempty"`

	BuyerFullName     string `json:"buyerFullName,omitempty"`
	BankAccountBuyer  string `json:"bankAccountBuyer,omitempty"`
	BankNameBuyer     string `json:"bankNameBuyer,omitempty"`
	BankAccountSeller string `json:"bankAccountSeller,omitempty"`
	BankNameSeller    string `json:"bankNameSeller,omitempty"`

	DeclarationNumber string     `json:"declarationNumber,omitempty"`
	DeclarationDate   *time.Time `json:"declarationDate,omitempty"`
	ReasonRejects     []string   `json:"reasonRejects,omitempty"`
}

type OtherInfo struct {
	TTruong string `json:"tTruong"`
	KDLieu  string `json:"kdLieu"`
	DLieu   string `json:"dLieu"`
}
