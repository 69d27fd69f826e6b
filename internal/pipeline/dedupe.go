package pipeline

import (
	"sort"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// Dedupe resolves records that share a ticker across sources down to one.
// The larger market cap wins; on an exact tie the traditional security is
// preferred over the crypto listing. The comparator is total, so the
// result does not depend on input ordering.
func Dedupe(assets []*models.Asset) []*models.Asset {
	byTicker := make(map[string]*models.Asset, len(assets))

	for _, asset := range assets {
		if asset.Ticker == "" {
			continue
		}
		current, ok := byTicker[asset.Ticker]
		if !ok || prefer(asset, current) {
			byTicker[asset.Ticker] = asset
		}
	}

	result := make([]*models.Asset, 0, len(byTicker))
	for _, asset := range byTicker {
		result = append(result, asset)
	}

	// Deterministic output order regardless of map iteration.
	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})

	return result
}

// prefer reports whether a should replace b for the same ticker. It is a
// strict total order over the fields that can differ between sources, so
// a permutation of the input yields the same survivor.
func prefer(a, b *models.Asset) bool {
	if a.MarketCap != b.MarketCap {
		return a.MarketCap > b.MarketCap
	}

	aCrypto := a.AssetType == models.AssetTypeCrypto
	bCrypto := b.AssetType == models.AssetTypeCrypto
	if aCrypto != bCrypto {
		return !aCrypto
	}

	if a.AssetType != b.AssetType {
		return a.AssetType < b.AssetType
	}
	if a.DataSource != b.DataSource {
		return a.DataSource < b.DataSource
	}
	return a.Name < b.Name
}
