package api

import (
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liuhangfung/get-allassets/internal/database"
	"github.com/Liuhangfung/get-allassets/pkg/config"
)

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Security.CORSEnabled = false

	mysqlClient := database.NewMySQLClientFromDB(db, log)
	return NewServer(cfg, log, mysqlClient, nil, nil), mock
}

func assetRow(ticker string, rank int, date time.Time) []driver.Value {
	return []driver.Value{
		ticker, ticker, ticker + " Corp", 100.0, 99.0, 1.0,
		1e12, 1e6, nil, "NASDAQ", "US",
		"Tech", "Software", "stock", "", rank, date,
		100.0, 1e12, "Global", "FMP",
	}
}

func assetColumnNames() []string {
	return []string{
		"symbol", "ticker", "name", "current_price", "previous_close", "percentage_change",
		"market_cap", "volume", "circulating_supply", "primary_exchange", "country",
		"sector", "industry", "asset_type", "image", "rank_position", "snapshot_date",
		"price_raw", "market_cap_raw", "category", "data_source",
	}
}

func TestHandleGetAssetsByDate(t *testing.T) {
	server, mock := newTestServer(t)

	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE snapshot_date").
		WithArgs("2026-08-26").
		WillReturnRows(sqlmock.NewRows(assetColumnNames()).
			AddRow(assetRow("AAPL", 1, date)...).
			AddRow(assetRow("MSFT", 2, date)...))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets?date=2026-08-26", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Count  int    `json:"count"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "database", body.Source)
}

func TestHandleGetAsset(t *testing.T) {
	server, mock := newTestServer(t)

	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE ticker").
		WithArgs("BTC").
		WillReturnRows(sqlmock.NewRows(assetColumnNames()).
			AddRow(assetRow("BTC", 5, date)...))

	// Path tickers are case-insensitive.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/btc", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ticker string `json:"ticker"`
		Rank   int    `json:"rank"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BTC", body.Ticker)
	assert.Equal(t, 5, body.Rank)
}

func TestHandleGetAssetNotFound(t *testing.T) {
	server, mock := newTestServer(t)

	mock.ExpectQuery("WHERE ticker").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(assetColumnNames()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assets/NOPE", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleLatestSnapshotDate(t *testing.T) {
	server, mock := newTestServer(t)

	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT MAX\\(snapshot_date\\) FROM assets").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(date))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/latest", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-08-26", body["snapshot_date"])
}

func TestHandleLatestSnapshotDateEmpty(t *testing.T) {
	server, mock := newTestServer(t)

	mock.ExpectQuery("SELECT MAX\\(snapshot_date\\) FROM assets").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshots/latest", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	server, _ := newTestServer(t)

	server.router.HandleFunc("/api/v1/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/panic", nil)
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		server.router.ServeHTTP(rec, req)
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
