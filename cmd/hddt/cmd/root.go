package cmd

import (
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/taxaxion/go-hddt-crawler/hddt/util"
)

var (
	version = "1.0.0"

	// global flags
	verbose   bool
	taxCode   string
	username  string
	password  string
	solverURL string
	solverKey string
)

var rootCmd = &cobra.Command{
	Use:   "hddt",
	Short: "Crawl the Vietnamese e-invoice portal for a taxpayer",
	Long: `hddt synchronizes e-invoices from hoadondientu.gdt.gov.vn: it logs in
through the captcha gate, enumerates invoices over a date range across both
the regular and the cash-register category, downloads the original XML
documents and emits canonical invoice records as JSON.

Credentials can be passed as flags or environment variables (HDDT_TAXCODE,
HDDT_USERNAME, HDDT_PASSWORD); a .env file in the working directory is
loaded automatically.

Examples:
  hddt sync --from 2023-01-01 --to 2023-01-31 -o invoices.json
  hddt sync --sold --from 2023-01-01 --to 2023-01-31
  hddt lookup --template 1 --series C23TAA --no 123 --seller 0100109106 --amount 110000`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&taxCode, "taxcode", "", "Taxpayer tax code (env: HDDT_TAXCODE)")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Portal username (env: HDDT_USERNAME)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Portal password (env: HDDT_PASSWORD)")
	rootCmd.PersistentFlags().StringVar(&solverURL, "solver-url", "", "Captcha decode service URL (env: HDDT_SOLVER_URL)")
	rootCmd.PersistentFlags().StringVar(&solverKey, "solver-key", "", "Captcha decode service API key (env: HDDT_SOLVER_KEY)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// best effort; credentials may come from flags or the real environment
	_ = godotenv.Load()

	if taxCode == "" {
		taxCode = util.GetEnvOrDefault("HDDT_TAXCODE", "")
	}
	if username == "" {
		username = util.GetEnvOrDefault("HDDT_USERNAME", "")
	}
	if password == "" {
		password = util.GetEnvOrDefault("HDDT_PASSWORD", "")
	}
	if solverURL == "" {
		solverURL = util.GetEnvOrDefault("HDDT_SOLVER_URL", "")
	}
	if solverKey == "" {
		solverKey = util.GetEnvOrDefault("HDDT_SOLVER_KEY", "")
	}

	if verbose || util.DebugEnabled() {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
