package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// BuildInvoiceID derives the deterministic invoice identifier: SHA-256 of
// "{invoiceNo}-{templateNo}-{series}-{invoiceDate:yyyy-MM-dd}-{sellerTaxCode}"
// truncated to 24 lowercase hex characters. This is the sole de-duplication
// key across repeated syncs, so the input tuple must never change shape.
func BuildInvoiceID(invoiceNo, templateNo, series string, invoiceDate time.Time, sellerTaxCode string) string {
	combined := fmt.Sprintf("%s-%s-%s-%s-%s",
		invoiceNo, templateNo, series, invoiceDate.Format("2006-01-02"), sellerTaxCode)
	return buildUniqueID(combined)
}

func buildUniqueID(text string) string {
	digest := sha256.Sum256([]byte(text))
	return hex.EncodeToString(digest[:])[:24]
}
