package models

// AssetType represents the class of a financial asset
type AssetType string

const (
	AssetTypeStock     AssetType = "stock"
	AssetTypeREIT      AssetType = "reit"
	AssetTypeCrypto    AssetType = "crypto"
	AssetTypeCommodity AssetType = "commodity"
	AssetTypeUnknown   AssetType = "unknown"
)

// USDNative reports whether the asset class is quoted in USD by its feed,
// which exempts it from market-cap validation entirely.
func (t AssetType) USDNative() bool {
	return t == AssetTypeCrypto || t == AssetTypeCommodity
}

// Asset is the canonical normalized record every source is mapped into.
// MarketCapRaw and PriceRaw preserve the pre-correction values for
// traceability.
type Asset struct {
	Ticker            string    `json:"ticker"`
	Name              string    `json:"name"`
	CurrentPrice      float64   `json:"current_price"`
	PreviousClose     float64   `json:"previous_close"`
	PercentageChange  float64   `json:"percentage_change"`
	MarketCap         float64   `json:"market_cap"`
	MarketCapRaw      float64   `json:"market_cap_raw"`
	PriceRaw          float64   `json:"price_raw"`
	Volume            float64   `json:"volume"`
	CirculatingSupply *float64  `json:"circulating_supply"`
	PrimaryExchange   string    `json:"primary_exchange"`
	Country           string    `json:"country"`
	Sector            string    `json:"sector"`
	Industry          string    `json:"industry"`
	Category          string    `json:"category"`
	Image             string    `json:"image"`
	AssetType         AssetType `json:"asset_type"`
	DataSource        string    `json:"data_source"`
	Rank              int       `json:"rank"`
	SnapshotDate      string    `json:"snapshot_date"`
}

// EquityRecord is the raw shape produced by the equities/commodities
// fetcher. Commodities share this shape with AssetType set accordingly.
type EquityRecord struct {
	Ticker           string  `json:"ticker"`
	Name             string  `json:"name"`
	MarketCap        float64 `json:"market_cap"`
	CurrentPrice     float64 `json:"current_price"`
	PreviousClose    float64 `json:"previous_close"`
	PercentageChange float64 `json:"percentage_change"`
	Volume           float64 `json:"volume"`
	PrimaryExchange  string  `json:"primary_exchange"`
	Country          string  `json:"country"`
	Sector           string  `json:"sector"`
	Industry         string  `json:"industry"`
	AssetType        string  `json:"asset_type"`
	Image            string  `json:"image"`
}

// CryptoRecord is the raw shape produced by the cryptocurrency fetcher.
type CryptoRecord struct {
	Ticker            string  `json:"ticker"`
	Name              string  `json:"name"`
	MarketCap         float64 `json:"market_cap"`
	CurrentPrice      float64 `json:"current_price"`
	PreviousClose     float64 `json:"previous_close"`
	PercentageChange  float64 `json:"percentage_change"`
	Volume            float64 `json:"volume"`
	CirculatingSupply float64 `json:"circulating_supply"`
	PrimaryExchange   string  `json:"primary_exchange"`
	Image             string  `json:"image"`
}

// RunSummary describes one completed pipeline run. It is published on
// NATS and recorded in InfluxDB.
type RunSummary struct {
	SnapshotDate string         `json:"snapshot_date"`
	TotalAssets  int            `json:"total_assets"`
	EquityCount  int            `json:"equity_count"`
	CryptoCount  int            `json:"crypto_count"`
	Malformed    int            `json:"malformed"`
	Corrected    int            `json:"corrected"`
	Clamped      int            `json:"clamped"`
	Removed      int            `json:"removed"`
	Uploaded     int            `json:"uploaded"`
	UploadErrors int            `json:"upload_errors"`
	ByAssetType  map[string]int `json:"by_asset_type"`
	DurationMS   int64          `json:"duration_ms"`
}
