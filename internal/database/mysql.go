package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// MySQL duplicate-entry error number.
const erDupEntry = 1062

// MySQLClient handles MySQL database operations for the assets table.
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// RowFailure records one row that could not be written and why.
type RowFailure struct {
	Ticker string
	Err    error
}

// WriteResult is the outcome of an upload: how many rows were written
// and which rows failed. A failed batch never aborts the run.
type WriteResult struct {
	Written  int
	Failures []RowFailure
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(cfg *config.MySQLConfig, logger *logrus.Logger) (*MySQLClient, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// NewMySQLClientFromDB wraps an existing connection; used by tests.
func NewMySQLClientFromDB(db *sql.DB, logger *logrus.Logger) *MySQLClient {
	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
	}
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

const assetColumns = `symbol, ticker, name, current_price, previous_close, percentage_change,
		market_cap, volume, circulating_supply, primary_exchange, country,
		sector, industry, asset_type, image, rank_position, snapshot_date,
		price_raw, market_cap_raw, category, data_source`

const assetPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

// ReplaceSnapshot clears any rows already stored for the run's snapshot
// date and inserts the ranked list in batches, pausing between batches
// to respect the store's request-rate limits. A failed batch degrades to
// per-row inserts; individual failures are collected, not raised.
func (mc *MySQLClient) ReplaceSnapshot(ctx context.Context, snapshotDate string, assets []*models.Asset, batchSize int, delay time.Duration) (*WriteResult, error) {
	deleted, err := mc.DeleteSnapshot(ctx, snapshotDate)
	if err != nil {
		return nil, fmt.Errorf("failed to clear snapshot %s: %w", snapshotDate, err)
	}
	if deleted > 0 {
		mc.logger.WithFields(logrus.Fields{
			"snapshot_date": snapshotDate,
			"deleted":       deleted,
		}).Info("Cleared existing snapshot rows")
	}

	return mc.insertBatches(ctx, assets, batchSize, delay, false)
}

// UpsertSnapshot writes the ranked list without clearing first, updating
// rows in place on the (ticker, snapshot_date) unique key.
func (mc *MySQLClient) UpsertSnapshot(ctx context.Context, assets []*models.Asset, batchSize int, delay time.Duration) (*WriteResult, error) {
	return mc.insertBatches(ctx, assets, batchSize, delay, true)
}

// DeleteSnapshot removes all rows for a snapshot date.
func (mc *MySQLClient) DeleteSnapshot(ctx context.Context, snapshotDate string) (int64, error) {
	result, err := mc.db.ExecContext(ctx, "DELETE FROM assets WHERE snapshot_date = ?", snapshotDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (mc *MySQLClient) insertBatches(ctx context.Context, assets []*models.Asset, batchSize int, delay time.Duration, upsert bool) (*WriteResult, error) {
	result := &WriteResult{}

	for start := 0; start < len(assets); start += batchSize {
		end := start + batchSize
		if end > len(assets) {
			end = len(assets)
		}
		batch := assets[start:end]

		if err := mc.insertBatch(ctx, batch, upsert); err != nil {
			mc.logger.WithError(err).WithFields(logrus.Fields{
				"batch_start": start,
				"batch_size":  len(batch),
			}).Warn("Batch insert failed, falling back to per-row inserts")

			mc.insertRows(ctx, batch, upsert, result)
		} else {
			result.Written += len(batch)
			mc.logger.WithFields(logrus.Fields{
				"batch": start/batchSize + 1,
				"rows":  len(batch),
			}).Info("Uploaded batch")
		}

		if end < len(assets) && delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return result, nil
}

func (mc *MySQLClient) insertBatch(ctx context.Context, assets []*models.Asset, upsert bool) error {
	placeholders := make([]string, 0, len(assets))
	args := make([]interface{}, 0, len(assets)*21)

	for _, asset := range assets {
		placeholders = append(placeholders, assetPlaceholders)
		args = append(args, rowArgs(asset)...)
	}

	query := fmt.Sprintf("INSERT INTO assets (%s) VALUES %s", assetColumns, strings.Join(placeholders, ", "))
	if upsert {
		query += upsertClause
	}

	_, err := mc.db.ExecContext(ctx, query, args...)
	return err
}

// insertRows is the per-record fallback after a failed batch. A
// duplicate key for the run's date means the row is already uploaded
// today; that is informational, not a failure.
func (mc *MySQLClient) insertRows(ctx context.Context, assets []*models.Asset, upsert bool, result *WriteResult) {
	query := fmt.Sprintf("INSERT INTO assets (%s) VALUES %s", assetColumns, assetPlaceholders)
	if upsert {
		query += upsertClause
	}

	for _, asset := range assets {
		if _, err := mc.db.ExecContext(ctx, query, rowArgs(asset)...); err != nil {
			if isDuplicateEntry(err) {
				mc.logger.WithField("ticker", asset.Ticker).Info("Row already uploaded for this snapshot date")
				result.Written++
				continue
			}
			mc.logger.WithError(err).WithField("ticker", asset.Ticker).Error("Failed to insert row")
			result.Failures = append(result.Failures, RowFailure{Ticker: asset.Ticker, Err: err})
			continue
		}
		result.Written++
	}
}

const upsertClause = `
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			current_price = VALUES(current_price),
			previous_close = VALUES(previous_close),
			percentage_change = VALUES(percentage_change),
			market_cap = VALUES(market_cap),
			volume = VALUES(volume),
			circulating_supply = VALUES(circulating_supply),
			primary_exchange = VALUES(primary_exchange),
			country = VALUES(country),
			sector = VALUES(sector),
			industry = VALUES(industry),
			asset_type = VALUES(asset_type),
			image = VALUES(image),
			rank_position = VALUES(rank_position),
			price_raw = VALUES(price_raw),
			market_cap_raw = VALUES(market_cap_raw),
			category = VALUES(category),
			data_source = VALUES(data_source),
			updated_at = CURRENT_TIMESTAMP`

func rowArgs(asset *models.Asset) []interface{} {
	row := NewAssetRow(asset)

	var supply interface{}
	if row.CirculatingSupply != nil {
		supply = *row.CirculatingSupply
	}

	return []interface{}{
		row.Symbol,
		row.Ticker,
		row.Name,
		row.CurrentPrice,
		row.PreviousClose,
		row.PercentageChange,
		row.MarketCap,
		row.Volume,
		supply,
		row.PrimaryExchange,
		row.Country,
		row.Sector,
		row.Industry,
		row.AssetType,
		row.Image,
		row.Rank,
		row.SnapshotDate,
		row.PriceRaw,
		row.MarketCapRaw,
		row.Category,
		row.DataSource,
	}
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == erDupEntry
}

// GetSnapshot retrieves the ranked assets for a snapshot date, in rank
// order. An empty date returns the most recent snapshot.
func (mc *MySQLClient) GetSnapshot(ctx context.Context, snapshotDate string) ([]*models.Asset, error) {
	if snapshotDate == "" {
		latest, err := mc.LatestSnapshotDate(ctx)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, nil
		}
		snapshotDate = latest
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM assets
		WHERE snapshot_date = ?
		ORDER BY rank_position`, assetColumns)

	rows, err := mc.db.QueryContext(ctx, query, snapshotDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// GetAsset retrieves one asset by ticker from the most recent snapshot.
func (mc *MySQLClient) GetAsset(ctx context.Context, ticker string) (*models.Asset, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM assets
		WHERE ticker = ?
		ORDER BY snapshot_date DESC
		LIMIT 1`, assetColumns)

	rows, err := mc.db.QueryContext(ctx, query, strings.ToUpper(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	asset, err := scanAsset(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}
	return asset, rows.Err()
}

// LatestSnapshotDate returns the most recent snapshot date, or "" when
// the table is empty.
func (mc *MySQLClient) LatestSnapshotDate(ctx context.Context) (string, error) {
	var date sql.NullTime
	err := mc.db.QueryRowContext(ctx, "SELECT MAX(snapshot_date) FROM assets").Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to query latest snapshot date: %w", err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.Time.Format("2006-01-02"), nil
}

func scanAsset(rows *sql.Rows) (*models.Asset, error) {
	asset := &models.Asset{}
	var symbol string
	var supply sql.NullFloat64
	var assetType string
	var snapshotDate time.Time

	err := rows.Scan(
		&symbol,
		&asset.Ticker,
		&asset.Name,
		&asset.CurrentPrice,
		&asset.PreviousClose,
		&asset.PercentageChange,
		&asset.MarketCap,
		&asset.Volume,
		&supply,
		&asset.PrimaryExchange,
		&asset.Country,
		&asset.Sector,
		&asset.Industry,
		&assetType,
		&asset.Image,
		&asset.Rank,
		&snapshotDate,
		&asset.PriceRaw,
		&asset.MarketCapRaw,
		&asset.Category,
		&asset.DataSource,
	)
	if err != nil {
		return nil, err
	}

	if supply.Valid {
		asset.CirculatingSupply = &supply.Float64
	}
	asset.AssetType = models.AssetType(assetType)
	asset.SnapshotDate = snapshotDate.Format("2006-01-02")

	return asset, nil
}
