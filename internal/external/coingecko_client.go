package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// CoinGeckoClient fetches ranked cryptocurrency market data from the
// CoinGecko API.
type CoinGeckoClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pages        int
	perPage      int
	requestDelay time.Duration
	logger       *logrus.Entry
}

// CoinGeckoMarket is one row of the /coins/markets response.
type CoinGeckoMarket struct {
	ID                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Image             string  `json:"image"`
	CurrentPrice      float64 `json:"current_price"`
	MarketCap         float64 `json:"market_cap"`
	TotalVolume       float64 `json:"total_volume"`
	CirculatingSupply float64 `json:"circulating_supply"`
	PriceChange24h    float64 `json:"price_change_percentage_24h"`
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(cfg *config.CoinGeckoConfig, logger *logrus.Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		pages:        cfg.Pages,
		perPage:      cfg.PerPage,
		requestDelay: cfg.RequestDelay,
		logger:       logger.WithField("component", "coingecko"),
	}
}

// FetchCrypto fetches the top cryptocurrencies by market cap, paged.
// Coins without a market cap, price, or circulating supply are skipped;
// their market caps cannot be trusted. A failed page degrades to the
// pages already fetched.
func (c *CoinGeckoClient) FetchCrypto(ctx context.Context) ([]models.CryptoRecord, error) {
	var records []models.CryptoRecord

	for page := 1; page <= c.pages; page++ {
		markets, err := c.fetchMarketsPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WithError(err).WithField("page", page).Error("Failed to fetch markets page")
			continue
		}

		for _, coin := range markets {
			if coin.MarketCap <= 0 || coin.CurrentPrice <= 0 || coin.CirculatingSupply <= 0 {
				continue
			}

			// Sanity-check the pre-calculated market cap against
			// price x circulating supply.
			calculated := coin.CurrentPrice * coin.CirculatingSupply
			if diff := calculated - coin.MarketCap; diff > coin.MarketCap*0.1 || diff < -coin.MarketCap*0.1 {
				c.logger.WithFields(logrus.Fields{
					"symbol":     coin.Symbol,
					"api":        coin.MarketCap,
					"calculated": calculated,
				}).Warn("Market cap mismatch")
			}

			records = append(records, models.CryptoRecord{
				Ticker:            strings.ToUpper(coin.Symbol),
				Name:              coin.Name,
				MarketCap:         coin.MarketCap,
				CurrentPrice:      coin.CurrentPrice,
				PercentageChange:  coin.PriceChange24h,
				Volume:            coin.TotalVolume,
				CirculatingSupply: coin.CirculatingSupply,
				PrimaryExchange:   "Cryptocurrency",
				Image:             coin.Image,
			})
		}

		c.logger.WithFields(logrus.Fields{
			"page":  page,
			"coins": len(markets),
		}).Info("Fetched CoinGecko markets page")

		if page < c.pages {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.requestDelay):
			}
		}
	}

	c.logger.WithField("count", len(records)).Info("Fetched cryptocurrencies")
	return records, nil
}

func (c *CoinGeckoClient) fetchMarketsPage(ctx context.Context, page int) ([]CoinGeckoMarket, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")

	reqURL := fmt.Sprintf("%s/coins/markets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var markets []CoinGeckoMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return markets, nil
}
