package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

func TestRankOrdersByMarketCapDescending(t *testing.T) {
	assets := []*models.Asset{
		{Ticker: "SMALL", MarketCap: 1e9},
		{Ticker: "BIG", MarketCap: 3e12},
		{Ticker: "MID", MarketCap: 5e11},
	}

	got := Rank(assets, 500, "2026-08-26")
	require.Len(t, got, 3)

	assert.Equal(t, "BIG", got[0].Ticker)
	assert.Equal(t, "MID", got[1].Ticker)
	assert.Equal(t, "SMALL", got[2].Ticker)

	for i, asset := range got {
		assert.Equal(t, i+1, asset.Rank)
		assert.Equal(t, "2026-08-26", asset.SnapshotDate)
	}
}

func TestRankTiesBrokenByTicker(t *testing.T) {
	assets := []*models.Asset{
		{Ticker: "ZZZ", MarketCap: 1e12},
		{Ticker: "AAA", MarketCap: 1e12},
	}

	got := Rank(assets, 500, "2026-08-26")
	require.Len(t, got, 2)
	assert.Equal(t, "AAA", got[0].Ticker)
	assert.Equal(t, "ZZZ", got[1].Ticker)
}

func TestRankTruncatesToTopN(t *testing.T) {
	assets := make([]*models.Asset, 520)
	for i := range assets {
		assets[i] = &models.Asset{
			Ticker:    fmt.Sprintf("T%04d", i),
			MarketCap: float64(520-i) * 1e9,
		}
	}

	got := Rank(assets, 500, "2026-08-26")
	require.Len(t, got, 500)

	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 500, got[499].Rank)

	// Ranks are dense and market caps non-increasing.
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].Rank+1, got[i].Rank)
		assert.GreaterOrEqual(t, got[i-1].MarketCap, got[i].MarketCap)
	}
}

func TestRankFewerThanTopN(t *testing.T) {
	assets := []*models.Asset{
		{Ticker: "ONE", MarketCap: 2e12},
		{Ticker: "TWO", MarketCap: 1e12},
	}

	got := Rank(assets, 500, "2026-08-26")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, 2, got[1].Rank)
}

func TestRankEmptyInput(t *testing.T) {
	got := Rank(nil, 500, "2026-08-26")
	assert.Empty(t, got)
}
