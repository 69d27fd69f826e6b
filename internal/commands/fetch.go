package commands

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Liuhangfung/get-allassets/internal/external"
	"github.com/Liuhangfung/get-allassets/internal/snapshot"
	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/logger"
)

var fetchOutput string

// fetchCmd groups the raw source fetchers. Each subcommand hits one
// upstream API and writes the raw records to the snapshot file that a
// later run consumes.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch raw source data",
	Long: `Fetch raw records from one upstream source and write them to
its snapshot file.

Examples:
  get-allassets fetch equities                       # FMP stocks + commodities
  get-allassets fetch crypto                         # CoinGecko markets
  get-allassets fetch crypto --output /tmp/raw.json  # Custom destination`,
}

var fetchEquitiesCmd = &cobra.Command{
	Use:   "equities",
	Short: "Fetch global equities and commodities from FMP",
	RunE:  runFetchEquities,
}

var fetchCryptoCmd = &cobra.Command{
	Use:   "crypto",
	Short: "Fetch cryptocurrency markets from CoinGecko",
	RunE:  runFetchCrypto,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchEquitiesCmd)
	fetchCmd.AddCommand(fetchCryptoCmd)

	fetchCmd.PersistentFlags().StringVar(&fetchOutput, "output", "", "Destination file (default from config)")
}

func runFetchEquities(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadFetchContext()
	if err != nil {
		return err
	}

	if cfg.FMP.APIKey == "" {
		return fmt.Errorf("FMP_API_KEY is required for fetching equities")
	}

	client := external.NewFMPClient(&cfg.FMP, log)
	records, err := client.FetchEquities(context.Background())
	if err != nil {
		return fmt.Errorf("equities fetch failed: %w", err)
	}

	dest := cfg.Pipeline.EquitiesFile
	if fetchOutput != "" {
		dest = fetchOutput
	}
	if err := snapshot.SaveEquities(dest, records); err != nil {
		return fmt.Errorf("failed to write equities file: %w", err)
	}

	log.WithField("count", len(records)).WithField("file", dest).Info("Equities snapshot written")
	return nil
}

func runFetchCrypto(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadFetchContext()
	if err != nil {
		return err
	}

	client := external.NewCoinGeckoClient(&cfg.CoinGecko, log)
	records, err := client.FetchCrypto(context.Background())
	if err != nil {
		return fmt.Errorf("crypto fetch failed: %w", err)
	}

	dest := cfg.Pipeline.CryptoFile
	if fetchOutput != "" {
		dest = fetchOutput
	}
	if err := snapshot.SaveCrypto(dest, records); err != nil {
		return fmt.Errorf("failed to write crypto file: %w", err)
	}

	log.WithField("count", len(records)).WithField("file", dest).Info("Crypto snapshot written")
	return nil
}

func loadFetchContext() (*config.Config, *logrus.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}
