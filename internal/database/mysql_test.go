package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

func newMockClient(t *testing.T) (*MySQLClient, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewMySQLClientFromDB(db, log), mock
}

func rankedAssets(n int) []*models.Asset {
	assets := make([]*models.Asset, n)
	for i := range assets {
		assets[i] = &models.Asset{
			Ticker:       string(rune('A'+i%26)) + "TK",
			Name:         "Asset",
			MarketCap:    1e12,
			Rank:         i + 1,
			SnapshotDate: "2026-08-26",
			AssetType:    models.AssetTypeStock,
			DataSource:   "FMP",
		}
	}
	return assets
}

func TestReplaceSnapshotDeletesThenInserts(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("DELETE FROM assets WHERE snapshot_date").
		WithArgs("2026-08-26").
		WillReturnResult(sqlmock.NewResult(0, 500))
	mock.ExpectExec("INSERT INTO assets").
		WillReturnResult(sqlmock.NewResult(1, 3))

	result, err := client.ReplaceSnapshot(context.Background(), "2026-08-26", rankedAssets(3), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Written)
	assert.Empty(t, result.Failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSnapshotAbortsWhenDeleteFails(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("DELETE FROM assets WHERE snapshot_date").
		WillReturnError(errors.New("table locked"))

	_, err := client.ReplaceSnapshot(context.Background(), "2026-08-26", rankedAssets(3), 100, 0)
	assert.Error(t, err)
}

func TestInsertBatchesSplitsByBatchSize(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("DELETE FROM assets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 5 assets with batch size 2: three INSERT statements.
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO assets").
			WillReturnResult(sqlmock.NewResult(1, 2))
	}

	result, err := client.ReplaceSnapshot(context.Background(), "2026-08-26", rankedAssets(5), 2, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchFailureFallsBackToRows(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("DELETE FROM assets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Batch insert fails, then each of the 3 rows is retried alone;
	// the middle one fails for good.
	mock.ExpectExec("INSERT INTO assets").
		WillReturnError(errors.New("packet too large"))
	mock.ExpectExec("INSERT INTO assets").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO assets").
		WillReturnError(errors.New("data too long"))
	mock.ExpectExec("INSERT INTO assets").
		WillReturnResult(sqlmock.NewResult(2, 1))

	result, err := client.ReplaceSnapshot(context.Background(), "2026-08-26", rankedAssets(3), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)
	require.Len(t, result.Failures, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateKeyIsInformational(t *testing.T) {
	client, mock := newMockClient(t)

	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

	mock.ExpectExec("DELETE FROM assets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO assets").
		WillReturnError(errors.New("batch failed"))
	mock.ExpectExec("INSERT INTO assets").
		WillReturnError(dup)

	result, err := client.ReplaceSnapshot(context.Background(), "2026-08-26", rankedAssets(1), 100, 0)
	require.NoError(t, err)

	// A duplicate for the run's date means the row is already there;
	// it counts as written, not failed.
	assert.Equal(t, 1, result.Written)
	assert.Empty(t, result.Failures)
}

func TestUpsertSnapshotSkipsDelete(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectExec("ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 2))

	result, err := client.UpsertSnapshot(context.Background(), rankedAssets(2), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func snapshotColumns() []string {
	return []string{
		"symbol", "ticker", "name", "current_price", "previous_close", "percentage_change",
		"market_cap", "volume", "circulating_supply", "primary_exchange", "country",
		"sector", "industry", "asset_type", "image", "rank_position", "snapshot_date",
		"price_raw", "market_cap_raw", "category", "data_source",
	}
}

func snapshotRow(ticker string, rank int, date time.Time) []driver.Value {
	return []driver.Value{
		ticker, ticker, ticker + " Corp", 100.0, 99.0, 1.0,
		1e12, 1e6, nil, "NASDAQ", "US",
		"Tech", "Software", "stock", "", rank, date,
		100.0, 1e12, "Global", "FMP",
	}
}

func TestGetSnapshot(t *testing.T) {
	client, mock := newMockClient(t)

	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(snapshotColumns()).
		AddRow(snapshotRow("AAPL", 1, date)...).
		AddRow(snapshotRow("MSFT", 2, date)...)

	mock.ExpectQuery("WHERE snapshot_date").
		WithArgs("2026-08-26").
		WillReturnRows(rows)

	assets, err := client.GetSnapshot(context.Background(), "2026-08-26")
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "AAPL", assets[0].Ticker)
	assert.Equal(t, 1, assets[0].Rank)
	assert.Equal(t, "2026-08-26", assets[0].SnapshotDate)
	assert.Equal(t, models.AssetTypeStock, assets[0].AssetType)
	assert.Nil(t, assets[0].CirculatingSupply)
}

func TestGetSnapshotEmptyDateUsesLatest(t *testing.T) {
	client, mock := newMockClient(t)

	date := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT MAX\\(snapshot_date\\) FROM assets").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(date))
	mock.ExpectQuery("WHERE snapshot_date").
		WithArgs("2026-08-25").
		WillReturnRows(sqlmock.NewRows(snapshotColumns()).
			AddRow(snapshotRow("AAPL", 1, date)...))

	assets, err := client.GetSnapshot(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "2026-08-25", assets[0].SnapshotDate)
}

func TestGetSnapshotEmptyTable(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("SELECT MAX\\(snapshot_date\\) FROM assets").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	assets, err := client.GetSnapshot(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, assets)
}

func TestGetAsset(t *testing.T) {
	client, mock := newMockClient(t)

	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE ticker").
		WithArgs("BTC").
		WillReturnRows(sqlmock.NewRows(snapshotColumns()).
			AddRow(snapshotRow("BTC", 7, date)...))

	asset, err := client.GetAsset(context.Background(), "btc")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, "BTC", asset.Ticker)
	assert.Equal(t, 7, asset.Rank)
}

func TestGetAssetNotFound(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("WHERE ticker").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(snapshotColumns()))

	asset, err := client.GetAsset(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, asset)
}
