package mapper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxaxion/go-hddt-crawler/hddt/model"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func sampleRaw() model.RawInvoice {
	issued := model.Time{Time: time.Date(2023, 4, 16, 17, 0, 0, 0, time.UTC)}
	return model.RawInvoice{
		SellerTaxCode: "0100109106",
		SellerName:    "Cong ty A",
		BuyerTaxCode:  "0312345678",
		BuyerName:     "Cong ty B",

		TemplateNo: intPtr(1),
		Series:     "C23TAA",
		InvoiceNo:  "123",
		IssuedAt:   &issued,

		CurrencyCode: "VND",
		ExchangeRate: dec("1"),

		TotalWithoutVat: dec("100000"),
		TotalVat:        dec("10000"),
		TotalAmount:     dec("110000"),

		Status: intPtr(1),

		Items: []model.RawLineItem{{
			Name:           "Hang hoa",
			Quantity:       dec("2"),
			UnitPrice:      dec("50000"),
			Amount:         dec("100000"),
			VatRate:        dec("0.1"),
			VatAmount:      dec("10000"),
			AmountAfterVat: dec("110000"),
		}},
		VatSummary: []model.RawVatSummary{{
			Rate:      "10",
			Amount:    dec("100000"),
			VatAmount: dec("10000"),
		}},
	}
}

func TestMapInvoiceProjection(t *testing.T) {
	raw := sampleRaw()
	inv := MapInvoice(&raw, Meta{SubscriberID: "sub-1", OrgID: "org-1"})

	assert.Equal(t, "0100109106", inv.SellerTaxCode)
	assert.Equal(t, "1", inv.TemplateNo)
	assert.Equal(t, "C23TAA", inv.Series)
	assert.Equal(t, "123", inv.InvoiceNo)
	assert.Equal(t, "sub-1", inv.SubscriberID)
	assert.Equal(t, "org-1", inv.OrgID)
	assert.False(t, inv.IsRegisterCash)

	// portal timestamp shifted to local invoice date
	assert.Equal(t, time.Date(2023, 4, 17, 0, 0, 0, 0, time.UTC), inv.InvoiceDate)

	assert.Len(t, inv.InvoiceID, 24)
	assert.Equal(t, inv.InvoiceID, inv.TransID)

	require.NotNil(t, inv.VatRate)
	assert.True(t, inv.VatRate.Equal(decimal.NewFromInt(10)))

	require.Len(t, inv.Items, 1)
	item := inv.Items[0]
	assert.Equal(t, 1, item.LineNumber)
	assert.Equal(t, -1, item.Kind)
	require.NotNil(t, item.VatRate)
	assert.True(t, item.VatRate.Equal(decimal.NewFromInt(10)), "fractional rate converted to percent")
	assert.True(t, item.AmountWithoutVat.Equal(decimal.NewFromInt(100000)))
}

func TestMapInvoiceIDStableAcrossRuns(t *testing.T) {
	raw := sampleRaw()
	first := MapInvoice(&raw, Meta{})
	second := MapInvoice(&raw, Meta{})
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
}

func TestMapInvoiceCashRegisterSeries(t *testing.T) {
	raw := sampleRaw()
	raw.Series = "C23MAA"
	inv := MapInvoice(&raw, Meta{})
	assert.True(t, inv.IsRegisterCash)
}

func TestMapInvoiceMultipleVatRates(t *testing.T) {
	raw := sampleRaw()
	raw.VatSummary = []model.RawVatSummary{
		{Rate: "10", Amount: dec("100000"), VatAmount: dec("10000")},
		{Rate: "8", Amount: dec("50000"), VatAmount: dec("4000")},
	}

	inv := MapInvoice(&raw, Meta{})
	assert.Nil(t, inv.VatRate, "ambiguous rate must stay unset")
	require.Len(t, inv.Regulation.ListVat, 2)
}

func TestMapInvoiceNoVatSummary(t *testing.T) {
	raw := sampleRaw()
	raw.VatSummary = nil

	inv := MapInvoice(&raw, Meta{})
	assert.Nil(t, inv.VatRate)
	assert.Empty(t, inv.Regulation.ListVat)
}

func TestMapItemsRecomputesMissingVatAmount(t *testing.T) {
	raw := sampleRaw()
	raw.Items = []model.RawLineItem{{
		Name:           "Dich vu",
		Amount:         dec("180000"),
		DiscountAmount: dec("20000"),
		VatRate:        dec("0.1"),
		// VatAmount deliberately absent
	}}

	inv := MapInvoice(&raw, Meta{})
	require.Len(t, inv.Items, 1)
	item := inv.Items[0]

	// pre-VAT amount restores the discount
	assert.True(t, item.AmountWithoutVat.Equal(decimal.NewFromInt(200000)))
	// (200000 - 20000) * 10 / 100
	assert.True(t, item.VatAmount.Equal(decimal.NewFromInt(18000)),
		"want 18000, got %s", item.VatAmount)
}

func TestMapItemsPromotionLine(t *testing.T) {
	raw := sampleRaw()
	raw.Items = []model.RawLineItem{{
		Name:   "Khuyen mai",
		Nature: intPtr(2),
		Amount: dec("0"),
	}}

	inv := MapInvoice(&raw, Meta{})
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].IsPromotion)
	assert.Equal(t, 2, inv.Items[0].Kind)
}

func TestMapRegulationSortsNotificationsByDate(t *testing.T) {
	day := func(d int) *model.Time {
		return &model.Time{Time: time.Date(2023, 5, d, 0, 0, 0, 0, time.UTC)}
	}

	raw := sampleRaw()
	raw.ErrorNotifications = []model.RawErrorNotification{
		{OriginalInvoiceNo: "3", Date: day(20)},
		{OriginalInvoiceNo: "1", Date: nil},
		{OriginalInvoiceNo: "2", Date: day(10)},
	}

	inv := MapInvoice(&raw, Meta{})
	wrongs := inv.Regulation.InvNotificationWrongs
	require.Len(t, wrongs, 3)

	// undated entries first, then ascending by change date
	assert.Equal(t, "1", wrongs[0].InvoiceNo)
	assert.Equal(t, "2", wrongs[1].InvoiceNo)
	assert.Equal(t, "3", wrongs[2].InvoiceNo)
}

func TestMapInvoiceVatSentinelSummary(t *testing.T) {
	raw := sampleRaw()
	raw.VatSummary = []model.RawVatSummary{{Rate: "kct", Amount: dec("100000")}}

	inv := MapInvoice(&raw, Meta{})
	require.Len(t, inv.Regulation.ListVat, 1)
	entry := inv.Regulation.ListVat[0]
	require.NotNil(t, entry.VatRate)
	assert.True(t, entry.VatRate.Equal(decimal.NewFromInt(-1)))
	assert.False(t, entry.IsVatOther)

	require.NotNil(t, inv.VatRate)
	assert.True(t, inv.VatRate.Equal(decimal.NewFromInt(-1)),
		"a single sentinel entry still propagates to the invoice level")
}
