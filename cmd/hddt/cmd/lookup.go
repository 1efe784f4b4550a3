package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/captcha"
	"github.com/taxaxion/go-hddt-crawler/hddt/session"
	"github.com/taxaxion/go-hddt-crawler/hddt/sync"
)

var (
	lookupTemplate string
	lookupSeries   string
	lookupNo       string
	lookupSeller   string
	lookupAmount   string
	lookupDate     string
	lookupInput    string
	lookupOutput   string
)

// lookupItem is the JSON shape accepted on --input batch files.
type lookupItem struct {
	TemplateNo    string `json:"templateNo"`
	Series        string `json:"series"`
	InvoiceNo     string `json:"invoiceNo"`
	SellerTaxCode string `json:"sellerTaxCode"`
	Amount        string `json:"amount,omitempty"`
	InvoiceDate   string `json:"invoiceDate,omitempty"`
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Verify invoices through the unauthenticated search endpoint",
	Long: `Lookup checks invoice existence and status without a taxpayer login,
solving one captcha per invoice. A single invoice is described with flags;
a batch is passed as a JSON array via --input:

  [{"templateNo":"1","series":"C23TAA","invoiceNo":"123",
    "sellerTaxCode":"0100109106","amount":"110000"}]

Delivery-note templates ("6") take an invoiceDate (YYYY-MM-DD) instead of
an amount.`,
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVar(&lookupTemplate, "template", "", "Template number (khmshdon)")
	lookupCmd.Flags().StringVar(&lookupSeries, "series", "", "Invoice series (khhdon)")
	lookupCmd.Flags().StringVar(&lookupNo, "no", "", "Invoice number (shdon)")
	lookupCmd.Flags().StringVar(&lookupSeller, "seller", "", "Seller tax code")
	lookupCmd.Flags().StringVar(&lookupAmount, "amount", "", "Total amount with VAT")
	lookupCmd.Flags().StringVar(&lookupDate, "date", "", "Invoice date for delivery notes (YYYY-MM-DD)")
	lookupCmd.Flags().StringVarP(&lookupInput, "input", "i", "", "JSON file with a batch of lookups")
	lookupCmd.Flags().StringVarP(&lookupOutput, "output", "o", "", "Output file (default: stdout)")
}

func runLookup(cmd *cobra.Command, args []string) error {
	requests, err := buildLookupRequests()
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return fmt.Errorf("nothing to look up: pass --input or the single-invoice flags")
	}

	if solverURL == "" {
		return fmt.Errorf("a captcha solver is required: set --solver-url or HDDT_SOLVER_URL")
	}

	// guest lookups never authenticate, so no credentials or token cache
	solver := captcha.NewSolverClient(solverURL, solverKey)
	mgr := session.NewManager(hddt.Prod, session.Credentials{}, session.NewMemoryStore(), solver)

	invoices, tally := sync.NewGuestLookup(mgr).Lookup(cmd.Context(), requests)

	log.WithFields(log.Fields{
		"total":     tally.Total,
		"succeeded": tally.Succeeded,
		"failed":    tally.Failed,
	}).Info("lookup finished")

	return writeJSON(lookupOutput, invoices)
}

func buildLookupRequests() ([]sync.LookupRequest, error) {
	var items []lookupItem

	if lookupInput != "" {
		data, err := os.ReadFile(lookupInput)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse input: %w", err)
		}
	} else if lookupTemplate != "" || lookupNo != "" {
		items = []lookupItem{{
			TemplateNo:    lookupTemplate,
			Series:        lookupSeries,
			InvoiceNo:     lookupNo,
			SellerTaxCode: lookupSeller,
			Amount:        lookupAmount,
			InvoiceDate:   lookupDate,
		}}
	}

	requests := make([]sync.LookupRequest, 0, len(items))
	for i, item := range items {
		req := sync.LookupRequest{
			TemplateNo:    item.TemplateNo,
			Series:        item.Series,
			InvoiceNo:     item.InvoiceNo,
			SellerTaxCode: item.SellerTaxCode,
		}
		if item.Amount != "" {
			amount, err := decimal.NewFromString(item.Amount)
			if err != nil {
				return nil, fmt.Errorf("lookup %d: invalid amount %q", i+1, item.Amount)
			}
			req.Amount = amount
		}
		if item.InvoiceDate != "" {
			date, err := time.Parse("2006-01-02", item.InvoiceDate)
			if err != nil {
				return nil, fmt.Errorf("lookup %d: invalid date %q: use YYYY-MM-DD", i+1, item.InvoiceDate)
			}
			req.InvoiceDate = &date
		}
		requests = append(requests, req)
	}
	return requests, nil
}
