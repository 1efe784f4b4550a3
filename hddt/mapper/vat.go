package mapper

import (
	"strings"

	"github.com/shopspring/decimal"
)

// VAT sentinel codes for the portal's non-numeric rate classifications.
var (
	RateNotApplicable   = decimal.NewFromInt(-4) // "xxx"
	RateOther           = decimal.NewFromInt(-3) // "khac"
	RateNoDeclaration   = decimal.NewFromInt(-2) // "kkknt"
	RateNotDeductible   = decimal.NewFromInt(-1) // "kct"
	hundred             = decimal.NewFromInt(100)
	rateMarkerStripping = strings.NewReplacer("khac", "", ":", "", "%", "")
)

// DecodeVatRate turns the portal's textual VAT rate into a decimal rate or a
// sentinel. The second return records whether the "khac" (other) marker was
// present, independent of the resolved rate.
//
// A parsed value above 100 is reparsed from the original raw string and
// accepted only when under 100. This mirrors a known upstream formatting
// inconsistency; it is a named policy, not a verified algorithm.
func DecodeVatRate(raw string) (*decimal.Decimal, bool) {
	isOther := strings.Contains(raw, "khac")

	if raw == "" {
		return nil, isOther
	}

	switch raw {
	case "xxx":
		return ptr(RateNotApplicable), isOther
	case "khac":
		return ptr(RateOther), isOther
	case "kkknt":
		return ptr(RateNoDeclaration), isOther
	case "kct":
		return ptr(RateNotDeductible), isOther
	case "0":
		return ptr(decimal.Zero), isOther
	}

	stripped := strings.TrimSpace(rateMarkerStripping.Replace(raw))
	rate, err := decimal.NewFromString(stripped)
	if err != nil {
		return nil, isOther
	}

	if rate.GreaterThan(hundred) {
		reparsed, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err == nil && reparsed.LessThan(hundred) {
			return ptr(reparsed), isOther
		}
		return nil, isOther
	}
	return ptr(rate), isOther
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
