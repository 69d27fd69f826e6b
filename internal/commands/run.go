package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Liuhangfung/get-allassets/internal/cache"
	"github.com/Liuhangfung/get-allassets/internal/database"
	"github.com/Liuhangfung/get-allassets/internal/external"
	"github.com/Liuhangfung/get-allassets/internal/messaging"
	"github.com/Liuhangfung/get-allassets/internal/pipeline"
	"github.com/Liuhangfung/get-allassets/internal/snapshot"
	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/logger"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

var (
	runTopN         int
	runUpsert       bool
	runSkipUpload   bool
	runEquitiesFile string
	runCryptoFile   string
	runOutputFile   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full merge-validate-rank pipeline",
	Long: `Execute one full pipeline run.

Source records are read from the equities and crypto snapshot files
when present; a missing file triggers a live fetch from the
corresponding API. Records are normalized, currency-corrected,
deduplicated, and ranked, then fanned out to MySQL, the combined JSON
file, Redis, NATS, and InfluxDB.

A single failed source degrades the run to the remaining source; the
run only fails when both sources yield nothing.

Examples:
  get-allassets run                          # Full run with defaults
  get-allassets run --top-n 100              # Keep only the top 100
  get-allassets run --skip-upload            # JSON output only, no MySQL
  get-allassets run --upsert                 # Merge into existing rows`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runTopN, "top-n", 0, "Number of top assets to keep (default from config)")
	runCmd.Flags().BoolVar(&runUpsert, "upsert", false, "Upsert rows instead of replacing the day's snapshot")
	runCmd.Flags().BoolVar(&runSkipUpload, "skip-upload", false, "Skip the MySQL upload, still writes the JSON snapshot")
	runCmd.Flags().StringVar(&runEquitiesFile, "equities-file", "", "Equities snapshot file (default from config)")
	runCmd.Flags().StringVar(&runCryptoFile, "crypto-file", "", "Crypto snapshot file (default from config)")
	runCmd.Flags().StringVar(&runOutputFile, "output", "", "Combined output file (default from config)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	// Load .env file first
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override config with command line flags if provided
	if runTopN > 0 {
		cfg.Pipeline.TopN = runTopN
	}
	if runUpsert {
		cfg.Pipeline.ReplaceExisting = false
	}
	if runEquitiesFile != "" {
		cfg.Pipeline.EquitiesFile = runEquitiesFile
	}
	if runCryptoFile != "" {
		cfg.Pipeline.CryptoFile = runCryptoFile
	}
	if runOutputFile != "" {
		cfg.Pipeline.OutputFile = runOutputFile
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log.Info("Starting asset snapshot pipeline")

	ctx := context.Background()
	started := time.Now()

	fmpClient := external.NewFMPClient(&cfg.FMP, log)
	geckoClient := external.NewCoinGeckoClient(&cfg.CoinGecko, log)

	driver := pipeline.NewDriver(&cfg.Pipeline, fmpClient, geckoClient, log)

	result, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	// The JSON snapshot is written whenever the pipeline produced data,
	// even when every later sink fails.
	if err := snapshot.WriteAssets(cfg.Pipeline.OutputFile, result.Assets); err != nil {
		log.WithError(err).WithField("file", cfg.Pipeline.OutputFile).Error("Failed to write combined snapshot file")
	} else {
		log.WithFields(logrus.Fields{
			"file":  cfg.Pipeline.OutputFile,
			"count": len(result.Assets),
		}).Info("Wrote combined snapshot file")
	}

	summary := result.Summary()

	if !runSkipUpload {
		if writeResult, err := uploadSnapshot(ctx, cfg, log, result); err != nil {
			log.WithError(err).Error("MySQL upload failed")
			summary.UploadErrors = len(result.Assets)
		} else {
			summary.Uploaded = writeResult.Written
			summary.UploadErrors = len(writeResult.Failures)
		}
	} else {
		log.Info("Skipping MySQL upload")
	}

	summary.DurationMS = time.Since(started).Milliseconds()

	publishRun(ctx, cfg, log, result, summary)

	log.WithFields(logrus.Fields{
		"snapshot_date": summary.SnapshotDate,
		"total_assets":  summary.TotalAssets,
		"equities":      summary.EquityCount,
		"crypto":        summary.CryptoCount,
		"malformed":     summary.Malformed,
		"corrected":     summary.Corrected,
		"clamped":       summary.Clamped,
		"removed":       summary.Removed,
	}).Info("Pipeline run complete")

	return nil
}

// uploadSnapshot writes the ranked assets to MySQL, replacing or
// upserting the day's rows depending on configuration.
func uploadSnapshot(ctx context.Context, cfg *config.Config, log *logrus.Logger, result *pipeline.Result) (*database.WriteResult, error) {
	mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer mysqlClient.Close()

	var writeResult *database.WriteResult
	if cfg.Pipeline.ReplaceExisting {
		writeResult, err = mysqlClient.ReplaceSnapshot(ctx, result.SnapshotDate, result.Assets,
			cfg.Pipeline.UploadBatchSize, cfg.Pipeline.UploadDelay)
	} else {
		writeResult, err = mysqlClient.UpsertSnapshot(ctx, result.Assets,
			cfg.Pipeline.UploadBatchSize, cfg.Pipeline.UploadDelay)
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"written":  writeResult.Written,
		"failures": len(writeResult.Failures),
	}).Info("MySQL upload complete")

	return writeResult, nil
}

// publishRun fans the run out to the optional sinks. Each sink failure
// is logged and swallowed so one outage never aborts the others.
func publishRun(ctx context.Context, cfg *config.Config, log *logrus.Logger, result *pipeline.Result, summary *models.RunSummary) {
	redisClient, err := cache.NewRedisClient(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, snapshot not cached")
	} else {
		defer redisClient.Close()
		if err := redisClient.SetSnapshot(ctx, result.SnapshotDate, result.Assets); err != nil {
			log.WithError(err).Warn("Failed to cache snapshot in Redis")
		}
	}

	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(&cfg.NATS, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, snapshot event not published")
		} else {
			defer natsClient.Close()
			if err := natsClient.PublishSnapshotCompleted(summary); err != nil {
				log.WithError(err).Warn("Failed to publish snapshot event")
			}
		}
	}

	if cfg.InfluxDB.Enabled {
		influxClient := database.NewInfluxClient(&cfg.InfluxDB, log)
		defer influxClient.Close()

		influxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := influxClient.WritePipelineEvents(influxCtx, result.SnapshotDate, result.Events); err != nil {
			log.WithError(err).Warn("Failed to record pipeline events in InfluxDB")
		}
		if err := influxClient.WriteRunSummary(influxCtx, summary); err != nil {
			log.WithError(err).Warn("Failed to record run summary in InfluxDB")
		}
	}
}
