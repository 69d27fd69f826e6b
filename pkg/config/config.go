package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	MySQL     MySQLConfig     `env:", prefix=MYSQL_"`
	InfluxDB  InfluxConfig    `env:", prefix=INFLUXDB_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	FMP       FMPConfig       `env:", prefix=FMP_"`
	CoinGecko CoinGeckoConfig `env:", prefix=COINGECKO_"`
	Pipeline  PipelineConfig  `env:", prefix=PIPELINE_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=assets"`
	User            string        `env:"USER, default=assets"`
	Password        string        `env:"PASSWORD, default=assets123"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// InfluxConfig holds InfluxDB configuration for pipeline telemetry
type InfluxConfig struct {
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN"`
	Org     string        `env:"ORG, default=assets-org"`
	Bucket  string        `env:"BUCKET, default=assets"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
	Enabled bool          `env:"ENABLED, default=false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	// Snapshots are daily; the default still lets stale data expire if
	// runs stop happening.
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL, default=48h"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	Enabled       bool          `env:"ENABLED, default=false"`
}

// FMPConfig holds Financial Modeling Prep API configuration
type FMPConfig struct {
	APIKey        string        `env:"API_KEY"`
	BaseURL       string        `env:"BASE_URL, default=https://financialmodelingprep.com/api"`
	Timeout       time.Duration `env:"TIMEOUT, default=30s"`
	RequestDelay  time.Duration `env:"REQUEST_DELAY, default=100ms"`
	MaxStocks     int           `env:"MAX_STOCKS, default=490"`
	ScreenerLimit int           `env:"SCREENER_LIMIT, default=50000"`
}

// CoinGeckoConfig holds CoinGecko API configuration
type CoinGeckoConfig struct {
	APIKey       string        `env:"API_KEY"`
	BaseURL      string        `env:"BASE_URL, default=https://api.coingecko.com/api/v3"`
	Timeout      time.Duration `env:"TIMEOUT, default=30s"`
	RequestDelay time.Duration `env:"REQUEST_DELAY, default=3s"`
	Pages        int           `env:"PAGES, default=3"`
	PerPage      int           `env:"PER_PAGE, default=250"`
}

// PipelineConfig holds the merge-validate-rank pipeline configuration.
// Core stages receive this struct explicitly and never read the
// environment themselves.
type PipelineConfig struct {
	TopN              int           `env:"TOP_N, default=500"`
	MinMarketCap      float64       `env:"MIN_MARKET_CAP, default=1000000"`
	MinVolume         float64       `env:"MIN_VOLUME, default=0"`
	CorrectionTrigger float64       `env:"CORRECTION_TRIGGER, default=1000000000000"`
	MarketCapCeiling  float64       `env:"MARKET_CAP_CEILING, default=4000000000000"`
	RejectCeiling     float64       `env:"REJECT_CEILING, default=10000000000000"`
	TrustedSources    []string      `env:"TRUSTED_SOURCES, default=coingecko"`
	UploadBatchSize   int           `env:"UPLOAD_BATCH_SIZE, default=100"`
	UploadDelay       time.Duration `env:"UPLOAD_DELAY, default=500ms"`
	ReplaceExisting   bool          `env:"REPLACE_EXISTING, default=true"`
	EquitiesFile      string        `env:"EQUITIES_FILE, default=global_assets_fmp.json"`
	CryptoFile        string        `env:"CRYPTO_FILE, default=crypto_data.json"`
	OutputFile        string        `env:"OUTPUT_FILE, default=all_assets_combined.json"`
}

// SecurityConfig holds security configuration for the HTTP API
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.MySQL.Host == "" {
		return fmt.Errorf("MySQL host is required")
	}

	if c.Pipeline.TopN <= 0 {
		return fmt.Errorf("pipeline top-N must be positive, got %d", c.Pipeline.TopN)
	}

	if c.Pipeline.MarketCapCeiling > c.Pipeline.RejectCeiling {
		return fmt.Errorf("market cap ceiling %.0f exceeds reject ceiling %.0f",
			c.Pipeline.MarketCapCeiling, c.Pipeline.RejectCeiling)
	}

	if c.Pipeline.UploadBatchSize <= 0 {
		return fmt.Errorf("upload batch size must be positive, got %d", c.Pipeline.UploadBatchSize)
	}

	return nil
}

// GetMySQLDSN returns MySQL DSN string
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
