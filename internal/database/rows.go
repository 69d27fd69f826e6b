package database

import (
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// maxBigint is the largest value MySQL's signed BIGINT can hold; numeric
// columns are clamped to it so an absurd upstream value cannot fail the
// whole insert.
const maxBigint = float64(9223372036854775807)

// AssetRow is the assets table row shape. String fields are length-capped
// to the column widths and numeric fields clamped to BIGINT range.
type AssetRow struct {
	Symbol            string
	Ticker            string
	Name              string
	CurrentPrice      float64
	PreviousClose     float64
	PercentageChange  float64
	MarketCap         float64
	Volume            float64
	CirculatingSupply *float64
	PrimaryExchange   string
	Country           string
	Sector            string
	Industry          string
	AssetType         string
	Image             string
	Rank              int
	SnapshotDate      string
	PriceRaw          float64
	MarketCapRaw      float64
	Category          string
	DataSource        string
}

// NewAssetRow maps a ranked asset into its row shape with overflow and
// length protection.
func NewAssetRow(asset *models.Asset) AssetRow {
	return AssetRow{
		Symbol:            truncate(asset.Ticker, 50),
		Ticker:            truncate(asset.Ticker, 50),
		Name:              truncate(asset.Name, 200),
		CurrentPrice:      clampNumber(asset.CurrentPrice),
		PreviousClose:     clampNumber(asset.PreviousClose),
		PercentageChange:  clampNumber(asset.PercentageChange),
		MarketCap:         clampNumber(asset.MarketCap),
		Volume:            clampNumber(asset.Volume),
		CirculatingSupply: clampOptional(asset.CirculatingSupply),
		PrimaryExchange:   truncate(asset.PrimaryExchange, 50),
		Country:           truncate(asset.Country, 50),
		Sector:            truncate(asset.Sector, 100),
		Industry:          truncate(asset.Industry, 100),
		AssetType:         truncate(string(asset.AssetType), 50),
		Image:             truncate(asset.Image, 500),
		Rank:              asset.Rank,
		SnapshotDate:      asset.SnapshotDate,
		PriceRaw:          clampNumber(asset.PriceRaw),
		MarketCapRaw:      clampNumber(asset.MarketCapRaw),
		Category:          truncate(asset.Category, 50),
		DataSource:        truncate(asset.DataSource, 50),
	}
}

// truncate caps by rune count so multibyte display names are never cut
// mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}

func clampNumber(v float64) float64 {
	if v > maxBigint {
		return maxBigint
	}
	return v
}

func clampOptional(v *float64) *float64 {
	if v == nil {
		return nil
	}
	clamped := clampNumber(*v)
	return &clamped
}
