package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// FMPClient fetches global equities and commodities from the Financial
// Modeling Prep API.
type FMPClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	maxStocks    int
	screenerMax  int
	requestDelay time.Duration
	logger       *logrus.Entry
}

// FMPStockScreener is one row of the /v3/stock-screener response.
type FMPStockScreener struct {
	Symbol            string  `json:"symbol"`
	CompanyName       string  `json:"companyName"`
	MarketCap         float64 `json:"marketCap"`
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	Price             float64 `json:"price"`
	Volume            float64 `json:"volume"`
	ExchangeShortName string  `json:"exchangeShortName"`
	Country           string  `json:"country"`
	IsEtf             bool    `json:"isEtf"`
	IsActivelyTrading bool    `json:"isActivelyTrading"`
}

// FMPQuote is one row of the /v3/quote response.
type FMPQuote struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	ChangesPercentage float64 `json:"changesPercentage"`
	MarketCap         float64 `json:"marketCap"`
	Volume            float64 `json:"volume"`
	PreviousClose     float64 `json:"previousClose"`
	Exchange          string  `json:"exchange"`
}

// FMPCommodity is one row of the /v3/quotes/commodity response.
type FMPCommodity struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	ChangesPercentage float64 `json:"changesPercentage"`
	PreviousClose     float64 `json:"previousClose"`
	Exchange          string  `json:"exchange"`
}

// FMPCompanyProfile is one row of the /v3/profile response.
type FMPCompanyProfile struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Image       string `json:"image"`
}

// NewFMPClient creates a new FMP client
func NewFMPClient(cfg *config.FMPConfig, logger *logrus.Logger) *FMPClient {
	return &FMPClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		maxStocks:    cfg.MaxStocks,
		screenerMax:  cfg.ScreenerLimit,
		requestDelay: cfg.RequestDelay,
		logger:       logger.WithField("component", "fmp"),
	}
}

func (c *FMPClient) makeRequest(ctx context.Context, endpoint string) ([]byte, error) {
	separator := "?"
	if strings.Contains(endpoint, "?") {
		separator = "&"
	}
	url := fmt.Sprintf("%s%s%sapikey=%s", c.baseURL, endpoint, separator, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// pause blocks for the per-request delay so each API call, not each
// stock, is rate limited. Honors cancellation.
func (c *FMPClient) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.requestDelay):
		return nil
	}
}

// GetQuote fetches the real-time quote for one symbol
func (c *FMPClient) GetQuote(ctx context.Context, symbol string) (*FMPQuote, error) {
	body, err := c.makeRequest(ctx, fmt.Sprintf("/v3/quote/%s", symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	var quotes []FMPQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("failed to parse quote for %s: %w", symbol, err)
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quote data found for %s", symbol)
	}

	return &quotes[0], nil
}

// GetCompanyProfile fetches the company profile (for the logo image URL)
func (c *FMPClient) GetCompanyProfile(ctx context.Context, symbol string) (*FMPCompanyProfile, error) {
	body, err := c.makeRequest(ctx, fmt.Sprintf("/v3/profile/%s", symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to get profile for %s: %w", symbol, err)
	}

	var profiles []FMPCompanyProfile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profile for %s: %w", symbol, err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profile data found for %s", symbol)
	}

	return &profiles[0], nil
}

// FetchEquities fetches global stocks and essential commodities as one
// raw record set. A commodity failure degrades to stocks only.
func (c *FMPClient) FetchEquities(ctx context.Context) ([]models.EquityRecord, error) {
	stocks, err := c.fetchGlobalStocks(ctx)
	if err != nil {
		return nil, err
	}

	commodities, err := c.fetchCommodities(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Commodities fetch failed, continuing with stocks only")
	}

	return append(stocks, commodities...), nil
}

// fetchGlobalStocks pulls the screener across all countries and
// exchanges, then enriches the largest issuers with quote and profile
// data, subject to the per-request delay for API rate limits.
func (c *FMPClient) fetchGlobalStocks(ctx context.Context) ([]models.EquityRecord, error) {
	endpoint := fmt.Sprintf(
		"/v3/stock-screener?marketCapMoreThan=1000000&limit=%d&order=desc&sortBy=marketcap&isActivelyTrading=true",
		c.screenerMax,
	)

	body, err := c.makeRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock screener data: %w", err)
	}

	var screener []FMPStockScreener
	if err := json.Unmarshal(body, &screener); err != nil {
		return nil, fmt.Errorf("failed to parse screener data: %w", err)
	}

	c.logger.WithField("count", len(screener)).Info("Received securities from stock screener")

	sort.Slice(screener, func(i, j int) bool {
		return screener[i].MarketCap > screener[j].MarketCap
	})

	var records []models.EquityRecord
	for _, stock := range screener {
		if len(records) >= c.maxStocks {
			break
		}
		if !stock.IsActivelyTrading || stock.IsEtf || isFundLike(stock.CompanyName) {
			continue
		}

		assetType := "stock"
		if strings.Contains(strings.ToUpper(stock.CompanyName), "REIT") {
			assetType = "reit"
		}

		if err := c.pause(ctx); err != nil {
			return nil, err
		}
		percentageChange := 0.0
		previousClose := stock.Price
		if quote, err := c.GetQuote(ctx, stock.Symbol); err == nil {
			percentageChange = quote.ChangesPercentage
			previousClose = quote.PreviousClose
		}

		if err := c.pause(ctx); err != nil {
			return nil, err
		}
		var imageURL string
		if profile, err := c.GetCompanyProfile(ctx, stock.Symbol); err == nil {
			imageURL = profile.Image
		}

		records = append(records, models.EquityRecord{
			Ticker:           stock.Symbol,
			Name:             stock.CompanyName,
			MarketCap:        stock.MarketCap,
			CurrentPrice:     stock.Price,
			PreviousClose:    previousClose,
			PercentageChange: percentageChange,
			Volume:           stock.Volume,
			PrimaryExchange:  stock.ExchangeShortName,
			Country:          stock.Country,
			Sector:           stock.Sector,
			Industry:         stock.Industry,
			AssetType:        assetType,
			Image:            imageURL,
		})

		if len(records)%50 == 0 {
			c.logger.WithField("processed", len(records)).Info("Processing top stocks by market cap")
		}
	}

	c.logger.WithField("count", len(records)).Info("Processed global securities")
	return records, nil
}

// fetchCommodities pulls commodity quotes and keeps only the essential
// physical metals, estimating market cap from total mined supply.
func (c *FMPClient) fetchCommodities(ctx context.Context) ([]models.EquityRecord, error) {
	body, err := c.makeRequest(ctx, "/v3/quotes/commodity")
	if err != nil {
		return nil, fmt.Errorf("failed to get commodity data: %w", err)
	}

	var commodities []FMPCommodity
	if err := json.Unmarshal(body, &commodities); err != nil {
		return nil, fmt.Errorf("failed to parse commodity data: %w", err)
	}

	var records []models.EquityRecord
	for _, commodity := range commodities {
		if !isEssentialCommodity(commodity.Name, commodity.Symbol) {
			continue
		}

		records = append(records, models.EquityRecord{
			Ticker:           commodity.Symbol,
			Name:             commodity.Name,
			MarketCap:        commodityMarketCap(commodity.Symbol, commodity.Price),
			CurrentPrice:     commodity.Price,
			PreviousClose:    commodity.PreviousClose,
			PercentageChange: commodity.ChangesPercentage,
			Volume:           0,
			PrimaryExchange:  commodity.Exchange,
			Country:          "Global",
			Sector:           "Commodities",
			Industry:         "Commodities",
			AssetType:        "commodity",
		})
	}

	c.logger.WithField("count", len(records)).Info("Processed commodities")
	return records, nil
}

// isFundLike filters out ETFs, index funds, and fund families that slip
// through the screener's isEtf flag.
func isFundLike(name string) bool {
	nameUpper := strings.ToUpper(name)
	for _, marker := range []string{"ETF", "INDEX", "FUND", "SPDR", "ISHARES", "VANGUARD", "INVESCO"} {
		if strings.Contains(nameUpper, marker) {
			return true
		}
	}
	return false
}

// isEssentialCommodity keeps the main metal contracts only; micro
// contracts duplicate the main ones and are skipped.
func isEssentialCommodity(name, symbol string) bool {
	nameUpper := strings.ToUpper(name)
	if strings.Contains(nameUpper, "MICRO") || strings.Contains(nameUpper, "MINI") {
		return false
	}
	for _, metal := range []string{"GOLD", "SILVER", "PLATINUM", "PALLADIUM", "COPPER"} {
		if strings.Contains(nameUpper, metal) {
			return true
		}
	}

	switch strings.ToUpper(symbol) {
	case "GCUSD", "SIUSD", "PLUSD", "PAUSD", "HGUSD":
		return true
	}
	return false
}

// commodityMarketCap estimates market cap from total supply mined to
// date: ounces for the precious metals, tonnes for copper.
func commodityMarketCap(symbol string, price float64) float64 {
	switch strings.ToUpper(symbol) {
	case "GCUSD":
		return price * 6.4e9 // ~200k tonnes of gold mined
	case "SIUSD":
		return price * 54.6e9 // ~1.7M tonnes of silver mined
	case "PLUSD":
		return price * 257e6
	case "PAUSD":
		return price * 175e6
	case "HGUSD":
		return price * 700e6 // price per tonne
	default:
		return price * 1e9
	}
}
