package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Liuhangfung/get-allassets/internal/api"
	"github.com/Liuhangfung/get-allassets/internal/cache"
	"github.com/Liuhangfung/get-allassets/internal/database"
	"github.com/Liuhangfung/get-allassets/internal/messaging"
	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/logger"
)

var (
	servePort int
	serveHost string
	logLevel  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only snapshot API",
	Long: `Start the HTTP API over persisted snapshots.

Endpoints:
  GET /api/v1/health            Component health
  GET /api/v1/assets            Latest ranked snapshot (or ?date=YYYY-MM-DD)
  GET /api/v1/assets/{ticker}   Most recent row for one ticker
  GET /api/v1/snapshots/latest  Date of the newest snapshot

The latest snapshot is served from Redis when cached, falling back to
MySQL otherwise.

Examples:
  get-allassets serve                    # Start with default settings
  get-allassets serve --port 9090        # Start on custom port
  get-allassets serve --log-level debug  # Enable debug logging`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Server port")
	serveCmd.Flags().StringVarP(&serveHost, "host", "H", "", "Server host")
	serveCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load .env file first
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override config with command line flags if provided
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log.Info("Starting asset snapshot API server")

	mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer mysqlClient.Close()

	// Redis and NATS are optional for serving; the API falls back to
	// MySQL when the cache is down.
	redisClient, err := cache.NewRedisClient(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, serving from MySQL only")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var natsClient *messaging.NATSClient
	if cfg.NATS.Enabled {
		natsClient, err = messaging.NewNATSClient(&cfg.NATS, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable")
			natsClient = nil
		} else {
			defer natsClient.Close()
		}
	}

	server := api.NewServer(cfg, log, mysqlClient, redisClient, natsClient)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErr:
		return err
	case sig := <-interrupt:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
		return err
	}

	log.Info("Server shutdown complete")
	return nil
}
