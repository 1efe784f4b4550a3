// Package mapper normalizes raw portal invoices into canonical invoice
// records: field projection, VAT sentinel decoding and deterministic
// identifier derivation.
package mapper

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taxaxion/go-hddt-crawler/hddt/model"
)

// the portal reports timestamps in UTC; invoice dates are local (ICT)
const portalTimeOffset = 7 * time.Hour

// Meta carries run-scoped identifiers attached to every canonical record.
type Meta struct {
	SubscriberID string
	OrgID        string
}

// Map projects raw portal invoices into canonical records, in input order.
func Map(raws []model.RawInvoice, meta Meta) []model.CanonicalInvoice {
	out := make([]model.CanonicalInvoice, 0, len(raws))
	for i := range raws {
		out = append(out, MapInvoice(&raws[i], meta))
	}
	return out
}

// MapInvoice projects a single raw invoice.
func MapInvoice(raw *model.RawInvoice, meta Meta) model.CanonicalInvoice {
	inv := model.CanonicalInvoice{
		SellerTaxCode:     raw.SellerTaxCode,
		SellerName:        raw.SellerName,
		SellerAddress:     raw.SellerAddress,
		SellerPhoneNumber: raw.SellerPhone,

		BuyerTaxCode:     raw.BuyerTaxCode,
		BuyerName:        raw.BuyerName,
		BuyerAddress:     raw.BuyerAddress,
		BuyerPhoneNumber: raw.BuyerPhone,

		TemplateNo: templateString(raw.TemplateNo),
		Series:     raw.Series,
		InvoiceNo:  raw.InvoiceNo,

		PaymentMethod: raw.PaymentMethod,
		CurrencyCode:  raw.CurrencyCode,
		ExchangeRate:  orZero(raw.ExchangeRate),

		TotalAmountWithoutVat: orZero(raw.TotalWithoutVat),
		TotalVatAmount:        orZero(raw.TotalVat),
		TotalDiscountAmount:   orZero(raw.TotalDiscount),
		TotalAmount:           orZero(raw.TotalAmount),

		VerificationCode: raw.VerificationCode,
		StatusInvoice:    raw.Status,
		ProcessingStatus: raw.ProcessingStatus,
		CreatedDate:      timePtr(raw.CreatedAt),
		ModifiedDate:     timePtr(raw.UpdatedAt),
		IsRegisterCash:   model.IsRegisterCash(raw.Series),

		Items:      mapItems(raw.Items),
		Regulation: mapRegulation(raw),
		Others:     mapOthers(raw.OtherInfo),

		SubscriberID: meta.SubscriberID,
		OrgID:        meta.OrgID,
	}

	if raw.IssuedAt != nil {
		inv.InvoiceDate = raw.IssuedAt.Add(portalTimeOffset)
	}

	id := BuildInvoiceID(inv.InvoiceNo, inv.TemplateNo, inv.Series, inv.InvoiceDate, inv.SellerTaxCode)
	inv.InvoiceID = id
	inv.TransID = id

	// invoice-level rate only when the VAT summary is unambiguous
	switch len(inv.Regulation.ListVat) {
	case 0:
	case 1:
		inv.VatRate = inv.Regulation.ListVat[0].VatRate
	default:
		inv.VatRate = nil
	}

	return inv
}

func mapItems(details []model.RawLineItem) []model.LineItem {
	if len(details) == 0 {
		return nil
	}

	items := make([]model.LineItem, 0, len(details))
	line := 1
	for i := range details {
		item := &details[i]

		kind := -1
		if item.Nature != nil {
			kind = *item.Nature
		}

		discount := orZero(item.DiscountAmount)
		// the portal does not supply the pre-VAT amount directly
		amountWithoutVat := orZero(item.Amount).Add(discount)

		mapped := model.LineItem{
			LineNumber:       line,
			Kind:             kind,
			ItemCode:         item.Code,
			ItemName:         item.Name,
			UnitName:         item.Unit,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice,
			AmountWithoutVat: amountWithoutVat,
			VatRate:          percentRate(item.VatRate),
			VatAmount:        orZero(item.VatAmount),
			DiscountRate:     item.DiscountRate,
			DiscountAmount:   discount,
			Amount:           orZero(item.AmountAfterVat),
			IsPromotion:      item.Nature != nil && *item.Nature == 2,
		}

		// recompute the VAT amount when the portal supplies a rate but no amount
		if !mapped.AmountWithoutVat.IsZero() && mapped.VatAmount.IsZero() &&
			mapped.VatRate != nil && mapped.VatRate.IsPositive() {
			mapped.VatAmount = mapped.AmountWithoutVat.Sub(mapped.DiscountAmount).
				Mul(*mapped.VatRate).Div(hundred)
		}

		items = append(items, mapped)
		line++
	}
	return items
}

func mapRegulation(raw *model.RawInvoice) model.ND123Info {
	reg := model.ND123Info{
		Nature:           raw.Nature,
		Status:           raw.Status,
		ProcessingStatus: raw.ProcessingStatus,

		InvConnect: model.InvConnect{
			TemplateNo:  raw.OriginalTemplateNo,
			Series:      raw.OriginalSeries,
			InvoiceNo:   raw.OriginalInvoiceNo,
			InvoiceDate: timePtr(raw.OriginalDate),
			Noted:       raw.OriginalNote,
		},

		ShipperName:           raw.ShipperName,
		VehicleType:           raw.VehicleType,
		ExportPerson:          raw.ExportPerson,
		NumberAgreement:       raw.TransportContractNo,
		InternalTransferOrder: raw.InternalTransferOrder,

		CommandOrder:     raw.EconomicContractNo,
		CommandOrderDate: timePtr(raw.EconomicContractDate),

		BuyerFullName:     raw.BuyerFullName,
		BankAccountBuyer:  raw.BuyerBankAccount,
		BankNameBuyer:     raw.BuyerBankName,
		BankAccountSeller: raw.SellerBankAccount,
		BankNameSeller:    raw.SellerBankName,

		DeclarationNumber: raw.DeclarationNumber,
		DeclarationDate:   timePtr(raw.DeclarationDate),
		ReasonRejects:     raw.RejectionReasons,
	}

	for i := range raw.VatSummary {
		entry := &raw.VatSummary[i]
		rate, isOther := DecodeVatRate(entry.Rate)
		reg.ListVat = append(reg.ListVat, model.VatInfo{
			VatRate:               rate,
			TotalVatAmount:        orZero(entry.VatAmount),
			TotalAmountWithoutVat: orZero(entry.Amount),
			IsVatOther:            isOther,
		})
	}

	for _, rel := range raw.RelatedInvoices {
		reg.InvConnects = append(reg.InvConnects, model.InvConnect{
			TemplateNo: templateString(rel.TemplateNo),
			Series:     rel.Series,
			InvoiceNo:  rel.InvoiceNo,
			Noted:      rel.Note,
		})
	}

	for _, note := range raw.ErrorNotifications {
		nature := 0
		if note.NotifyNature != nil {
			nature = *note.NotifyNature
		}
		reg.InvNotificationWrongs = append(reg.InvNotificationWrongs, model.InvConnect{
			TemplateNo:           note.OriginalTemplateNo,
			Series:               note.OriginalSeries,
			InvoiceNo:            note.OriginalInvoiceNo,
			Noted:                note.OriginalNote,
			ChangeDate:           timePtr(note.Date),
			Type:                 note.Kind,
			NotifyName:           note.Name,
			NotifyNature:         nature,
			Reason:               note.Reason,
			StatusInvoice:        note.Status,
			StatusInvoiceProcess: note.ProcessingStatus,
		})
	}
	sort.SliceStable(reg.InvNotificationWrongs, func(i, j int) bool {
		a, b := reg.InvNotificationWrongs[i].ChangeDate, reg.InvNotificationWrongs[j].ChangeDate
		if a == nil {
			return b != nil
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})

	return reg
}

func mapOthers(infos []model.RawOtherInfo) []model.OtherInfo {
	if len(infos) == 0 {
		return nil
	}
	out := make([]model.OtherInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, model.OtherInfo{
			TTruong: info.Field,
			KDLieu:  info.DataType,
			DLieu:   info.Value,
		})
	}
	return out
}

func templateString(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// percentRate converts the portal's fractional line rate (0.1) to percent (10).
func percentRate(rate *decimal.Decimal) *decimal.Decimal {
	if rate == nil {
		return nil
	}
	v := rate.Mul(hundred)
	return &v
}

func timePtr(t *model.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
