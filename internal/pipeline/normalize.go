package pipeline

import (
	"strings"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// Normalizer maps raw per-source records into the canonical Asset schema.
// Each source variant has its own explicit mapping; records missing
// required fields are dropped and counted, never raised as errors.
type Normalizer struct {
	minMarketCap float64
	minVolume    float64

	// Malformed counts how many raw records were dropped for missing or
	// implausible required fields since the last Reset.
	Malformed int
}

// NewNormalizer creates a normalizer with the configured plausibility
// floors. Records below either floor are treated as malformed.
func NewNormalizer(minMarketCap, minVolume float64) *Normalizer {
	return &Normalizer{
		minMarketCap: minMarketCap,
		minVolume:    minVolume,
	}
}

// Reset clears the malformed counter before a new run.
func (n *Normalizer) Reset() {
	n.Malformed = 0
}

// NormalizeEquity maps one raw equities-feed record into an Asset.
// The second return value is false when the record is malformed.
func (n *Normalizer) NormalizeEquity(rec models.EquityRecord, source string) (*models.Asset, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(rec.Ticker))
	if ticker == "" || rec.Name == "" || rec.CurrentPrice <= 0 {
		n.Malformed++
		return nil, false
	}
	if rec.MarketCap < n.minMarketCap || rec.Volume < n.minVolume {
		n.Malformed++
		return nil, false
	}

	assetType := parseAssetType(rec.AssetType)

	previousClose := rec.PreviousClose
	if previousClose <= 0 {
		previousClose = derivePreviousClose(rec.CurrentPrice, rec.PercentageChange)
	}

	return &models.Asset{
		Ticker:           ticker,
		Name:             rec.Name,
		CurrentPrice:     rec.CurrentPrice,
		PreviousClose:    previousClose,
		PercentageChange: rec.PercentageChange,
		MarketCap:        rec.MarketCap,
		MarketCapRaw:     rec.MarketCap,
		PriceRaw:         rec.CurrentPrice,
		Volume:           rec.Volume,
		PrimaryExchange:  rec.PrimaryExchange,
		Country:          rec.Country,
		Sector:           rec.Sector,
		Industry:         rec.Industry,
		Category:         "Global",
		Image:            rec.Image,
		AssetType:        assetType,
		DataSource:       source,
	}, true
}

// NormalizeCrypto maps one raw crypto-feed record into an Asset.
// circulating_supply is required; coins without it cannot have a
// trustworthy market cap.
func (n *Normalizer) NormalizeCrypto(rec models.CryptoRecord, source string) (*models.Asset, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(rec.Ticker))
	if ticker == "" || rec.Name == "" || rec.CurrentPrice <= 0 || rec.CirculatingSupply <= 0 {
		n.Malformed++
		return nil, false
	}
	if rec.MarketCap < n.minMarketCap || rec.Volume < n.minVolume {
		n.Malformed++
		return nil, false
	}

	previousClose := rec.PreviousClose
	if previousClose <= 0 {
		previousClose = derivePreviousClose(rec.CurrentPrice, rec.PercentageChange)
	}

	exchange := rec.PrimaryExchange
	if exchange == "" {
		exchange = "Cryptocurrency"
	}

	supply := rec.CirculatingSupply

	return &models.Asset{
		Ticker:            ticker,
		Name:              rec.Name,
		CurrentPrice:      rec.CurrentPrice,
		PreviousClose:     previousClose,
		PercentageChange:  rec.PercentageChange,
		MarketCap:         rec.MarketCap,
		MarketCapRaw:      rec.MarketCap,
		PriceRaw:          rec.CurrentPrice,
		Volume:            rec.Volume,
		CirculatingSupply: &supply,
		PrimaryExchange:   exchange,
		Country:           "Global",
		Category:          "Global",
		Image:             rec.Image,
		AssetType:         models.AssetTypeCrypto,
		DataSource:        source,
	}, true
}

// derivePreviousClose inverts "percentage change over the period":
// close = price / (1 + pct/100). The multiplicative form used by some
// feeds is not an exact inverse and drifts for large moves.
func derivePreviousClose(price, pct float64) float64 {
	if pct <= -100 {
		return price
	}
	return price / (1 + pct/100)
}

func parseAssetType(raw string) models.AssetType {
	switch models.AssetType(strings.ToLower(strings.TrimSpace(raw))) {
	case models.AssetTypeStock:
		return models.AssetTypeStock
	case models.AssetTypeREIT:
		return models.AssetTypeREIT
	case models.AssetTypeCrypto:
		return models.AssetTypeCrypto
	case models.AssetTypeCommodity:
		return models.AssetTypeCommodity
	default:
		return models.AssetTypeUnknown
	}
}
