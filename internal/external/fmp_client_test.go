package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liuhangfung/get-allassets/pkg/config"
)

func fmpConfig(baseURL string) *config.FMPConfig {
	return &config.FMPConfig{
		APIKey:        "test-key",
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		RequestDelay:  time.Millisecond,
		MaxStocks:     490,
		ScreenerLimit: 50000,
	}
}

func fmpHandler(t *testing.T, screener []FMPStockScreener, commodities []FMPCommodity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		switch {
		case r.URL.Path == "/v3/stock-screener":
			json.NewEncoder(w).Encode(screener)
		case r.URL.Path == "/v3/quotes/commodity":
			json.NewEncoder(w).Encode(commodities)
		case len(r.URL.Path) > len("/v3/quote/") && r.URL.Path[:10] == "/v3/quote/":
			symbol := r.URL.Path[10:]
			json.NewEncoder(w).Encode([]FMPQuote{{
				Symbol:            symbol,
				Price:             100,
				ChangesPercentage: 2.5,
				PreviousClose:     97.5,
			}})
		case len(r.URL.Path) > len("/v3/profile/") && r.URL.Path[:12] == "/v3/profile/":
			symbol := r.URL.Path[12:]
			json.NewEncoder(w).Encode([]FMPCompanyProfile{{
				Symbol: symbol,
				Image:  "https://img.example/" + symbol + ".png",
			}})
		default:
			http.NotFound(w, r)
		}
	})
}

func TestFetchEquitiesFiltersAndEnriches(t *testing.T) {
	screener := []FMPStockScreener{
		{Symbol: "AAPL", CompanyName: "Apple Inc.", MarketCap: 3e12, Price: 230, Volume: 5e7, ExchangeShortName: "NASDAQ", Country: "US", Sector: "Technology", IsActivelyTrading: true},
		{Symbol: "SPY", CompanyName: "SPDR S&P 500 ETF Trust", MarketCap: 5e11, Price: 550, IsActivelyTrading: true},
		{Symbol: "VTI", CompanyName: "Vanguard Total Stock Market", MarketCap: 4e11, Price: 270, IsEtf: true, IsActivelyTrading: true},
		{Symbol: "DEAD", CompanyName: "Delisted Co", MarketCap: 1e10, Price: 1, IsActivelyTrading: false},
		{Symbol: "O", CompanyName: "Realty Income REIT", MarketCap: 5e10, Price: 55, IsActivelyTrading: true},
	}

	server := httptest.NewServer(fmpHandler(t, screener, nil))
	defer server.Close()

	client := NewFMPClient(fmpConfig(server.URL), testLog())
	records, err := client.FetchEquities(context.Background())
	require.NoError(t, err)

	// ETFs, fund-name matches, and inactive listings are dropped.
	require.Len(t, records, 2)

	assert.Equal(t, "AAPL", records[0].Ticker)
	assert.Equal(t, "stock", records[0].AssetType)
	assert.Equal(t, 2.5, records[0].PercentageChange)
	assert.Equal(t, 97.5, records[0].PreviousClose)
	assert.Equal(t, "https://img.example/AAPL.png", records[0].Image)

	assert.Equal(t, "O", records[1].Ticker)
	assert.Equal(t, "reit", records[1].AssetType)
}

func TestFetchEquitiesOrdersByMarketCap(t *testing.T) {
	screener := []FMPStockScreener{
		{Symbol: "SMALL", CompanyName: "Small Co", MarketCap: 1e9, Price: 10, IsActivelyTrading: true},
		{Symbol: "BIG", CompanyName: "Big Co", MarketCap: 1e12, Price: 100, IsActivelyTrading: true},
	}

	server := httptest.NewServer(fmpHandler(t, screener, nil))
	defer server.Close()

	client := NewFMPClient(fmpConfig(server.URL), testLog())
	records, err := client.FetchEquities(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "BIG", records[0].Ticker)
	assert.Equal(t, "SMALL", records[1].Ticker)
}

func TestFetchEquitiesRespectsMaxStocks(t *testing.T) {
	screener := make([]FMPStockScreener, 10)
	for i := range screener {
		screener[i] = FMPStockScreener{
			Symbol:            string(rune('A'+i)) + "CO",
			CompanyName:       "Company",
			MarketCap:         float64(10-i) * 1e9,
			Price:             50,
			IsActivelyTrading: true,
		}
	}

	server := httptest.NewServer(fmpHandler(t, screener, nil))
	defer server.Close()

	cfg := fmpConfig(server.URL)
	cfg.MaxStocks = 3

	client := NewFMPClient(cfg, testLog())
	records, err := client.FetchEquities(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestFetchEquitiesPacesEnrichmentRequests(t *testing.T) {
	screener := []FMPStockScreener{
		{Symbol: "AAPL", CompanyName: "Apple Inc.", MarketCap: 3e12, Price: 230, IsActivelyTrading: true},
		{Symbol: "MSFT", CompanyName: "Microsoft Corp", MarketCap: 2.9e12, Price: 420, IsActivelyTrading: true},
	}

	server := httptest.NewServer(fmpHandler(t, screener, nil))
	defer server.Close()

	cfg := fmpConfig(server.URL)
	cfg.RequestDelay = 20 * time.Millisecond

	client := NewFMPClient(cfg, testLog())

	// Two stocks mean four enrichment calls (quote + profile each), and
	// every call waits out the delay before firing.
	start := time.Now()
	records, err := client.FetchEquities(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.GreaterOrEqual(t, time.Since(start), 4*cfg.RequestDelay)
}

func TestFetchEquitiesIncludesCommodities(t *testing.T) {
	commodities := []FMPCommodity{
		{Symbol: "GCUSD", Name: "Gold Futures", Price: 2400, PreviousClose: 2390, Exchange: "COMEX"},
		{Symbol: "MGCUSD", Name: "Micro Gold Futures", Price: 2400, Exchange: "COMEX"},
		{Symbol: "CLUSD", Name: "Crude Oil", Price: 80, Exchange: "NYMEX"},
	}

	server := httptest.NewServer(fmpHandler(t, nil, commodities))
	defer server.Close()

	client := NewFMPClient(fmpConfig(server.URL), testLog())
	records, err := client.FetchEquities(context.Background())
	require.NoError(t, err)

	// Only the main gold contract survives; micro contracts and
	// non-metal commodities are skipped.
	require.Len(t, records, 1)
	gold := records[0]
	assert.Equal(t, "GCUSD", gold.Ticker)
	assert.Equal(t, "commodity", gold.AssetType)
	assert.Equal(t, "Global", gold.Country)
	assert.InDelta(t, 2400*6.4e9, gold.MarketCap, 1)
}

func TestFetchEquitiesCommodityFailureDegrades(t *testing.T) {
	screener := []FMPStockScreener{
		{Symbol: "AAPL", CompanyName: "Apple Inc.", MarketCap: 3e12, Price: 230, IsActivelyTrading: true},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/stock-screener":
			json.NewEncoder(w).Encode(screener)
		case "/v3/quotes/commodity":
			http.Error(w, "upstream down", http.StatusBadGateway)
		default:
			// Quote/profile enrichment failures degrade to screener data.
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewFMPClient(fmpConfig(server.URL), testLog())
	records, err := client.FetchEquities(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "AAPL", records[0].Ticker)
	// Enrichment failed, so previous close falls back to the screener price.
	assert.Equal(t, records[0].CurrentPrice, records[0].PreviousClose)
}

func TestFetchEquitiesScreenerFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewFMPClient(fmpConfig(server.URL), testLog())
	_, err := client.FetchEquities(context.Background())
	assert.Error(t, err)
}

func TestCommodityMarketCapSupplies(t *testing.T) {
	assert.Equal(t, 100*6.4e9, commodityMarketCap("GCUSD", 100))
	assert.Equal(t, 100*54.6e9, commodityMarketCap("SIUSD", 100))
	assert.Equal(t, 100*257e6, commodityMarketCap("PLUSD", 100))
	assert.Equal(t, 100*175e6, commodityMarketCap("PAUSD", 100))
	assert.Equal(t, 100*700e6, commodityMarketCap("HGUSD", 100))
	assert.Equal(t, 100*1e9, commodityMarketCap("OTHER", 100))
}
