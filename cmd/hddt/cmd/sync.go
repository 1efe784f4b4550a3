package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/captcha"
	"github.com/taxaxion/go-hddt-crawler/hddt/mapper"
	"github.com/taxaxion/go-hddt-crawler/hddt/session"
	"github.com/taxaxion/go-hddt-crawler/hddt/sync"
)

var (
	syncFrom         string
	syncTo           string
	syncSold         bool
	syncPaymentOrder bool
	syncStatus       int
	syncResult       int
	syncPageSize     int
	syncConcurrency  int64
	syncOutput       string
	syncSubscriberID string
	syncOrgID        string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Crawl invoices over a date range and emit canonical JSON",
	Long: `Sync authenticates against the portal, lists every invoice of the chosen
tab (purchase by default) over the date range across both the regular and
the cash-register category, downloads the original XML documents and writes
the canonical records as a JSON array.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncFrom, "from", "", "Start date, inclusive (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "End date, inclusive (YYYY-MM-DD)")
	syncCmd.Flags().BoolVar(&syncSold, "sold", false, "Crawl the sold tab instead of purchases")
	syncCmd.Flags().BoolVar(&syncPaymentOrder, "payment-order", false, "Restrict to payment-order invoices")
	syncCmd.Flags().IntVar(&syncStatus, "status", 0, "Invoice status filter (0 keeps all)")
	syncCmd.Flags().IntVar(&syncResult, "result", sync.AllProcessingResults, "Processing-result filter (-1 keeps all)")
	syncCmd.Flags().IntVar(&syncPageSize, "size", sync.DefaultPageSize, "Listing page size")
	syncCmd.Flags().Int64Var(&syncConcurrency, "concurrency", sync.DefaultConcurrency, "Parallel document downloads")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "", "Output file (default: stdout)")
	syncCmd.Flags().StringVar(&syncSubscriberID, "subscriber", "", "Subscriber identifier stamped on every record")
	syncCmd.Flags().StringVar(&syncOrgID, "org", "", "Organization identifier stamped on every record")

	_ = syncCmd.MarkFlagRequired("from")
	_ = syncCmd.MarkFlagRequired("to")
}

func runSync(cmd *cobra.Command, args []string) error {
	from, to, err := parseRange(syncFrom, syncTo)
	if err != nil {
		return err
	}

	mgr, err := newSessionManager()
	if err != nil {
		return err
	}

	tab := hddt.Purchase
	if syncSold {
		tab = hddt.Sold
	}

	crawler := sync.NewCrawler(mgr, mapper.Meta{
		SubscriberID: syncSubscriberID,
		OrgID:        syncOrgID,
	})
	crawler.Downloader.SetConcurrency(syncConcurrency)

	req := sync.NewRequest(from, to, tab)
	req.Status = syncStatus
	req.ProcessingResult = syncResult
	req.PaymentOrder = syncPaymentOrder
	req.PageSize = syncPageSize

	res, err := crawler.Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	log.WithFields(log.Fields{
		"listed":     res.Listed,
		"downloaded": res.Downloaded,
		"failed":     res.Failed,
	}).Info("sync finished")

	return writeJSON(syncOutput, res.Invoices)
}

// newSessionManager wires credentials, the token cache and the captcha
// solver. Shared by the authenticated commands.
func newSessionManager() (*session.Manager, error) {
	if taxCode == "" || username == "" || password == "" {
		return nil, fmt.Errorf("credentials are required: set --taxcode/--username/--password or the HDDT_* environment variables")
	}
	if solverURL == "" {
		return nil, fmt.Errorf("a captcha solver is required: set --solver-url or HDDT_SOLVER_URL")
	}

	store := session.NewFileStore(session.DefaultTokenDir())
	creds := session.Credentials{TaxCode: taxCode, Username: username, Password: password}
	solver := captcha.NewSolverClient(solverURL, solverKey)

	return session.NewManager(hddt.Prod, creds, store, solver), nil
}

func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date %q: use YYYY-MM-DD", fromStr)
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date %q: use YYYY-MM-DD", toStr)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must not precede --from")
	}
	return from, to, nil
}

func writeJSON(path string, v interface{}) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
