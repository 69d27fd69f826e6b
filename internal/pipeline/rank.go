package pipeline

import (
	"sort"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// Rank sorts assets by market cap descending, assigns dense 1-based
// ranks, truncates to topN, and stamps every retained record with the
// run's snapshot date. Ticker ascending is the documented secondary key,
// keeping the ordering deterministic across runs.
func Rank(assets []*models.Asset, topN int, snapshotDate string) []*models.Asset {
	ranked := make([]*models.Asset, len(assets))
	copy(ranked, assets)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MarketCap != ranked[j].MarketCap {
			return ranked[i].MarketCap > ranked[j].MarketCap
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	for i, asset := range ranked {
		asset.Rank = i + 1
		asset.SnapshotDate = snapshotDate
	}

	return ranked
}
