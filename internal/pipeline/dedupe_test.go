package pipeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

func TestDedupeLargerMarketCapWins(t *testing.T) {
	small := &models.Asset{Ticker: "XAU", Name: "Gold Token", MarketCap: 1e9, AssetType: models.AssetTypeCrypto, DataSource: "CoinGecko"}
	large := &models.Asset{Ticker: "XAU", Name: "Gold", MarketCap: 1.3e13, AssetType: models.AssetTypeCommodity, DataSource: "FMP"}

	got := Dedupe([]*models.Asset{small, large})
	require.Len(t, got, 1)
	assert.Equal(t, "Gold", got[0].Name)
}

func TestDedupeTiePrefersNonCrypto(t *testing.T) {
	coin := &models.Asset{Ticker: "XAU", Name: "Gold Token", MarketCap: 5e9, AssetType: models.AssetTypeCrypto, DataSource: "CoinGecko"}
	stock := &models.Asset{Ticker: "XAU", Name: "Gold Mining Co", MarketCap: 5e9, AssetType: models.AssetTypeStock, DataSource: "FMP"}

	got := Dedupe([]*models.Asset{coin, stock})
	require.Len(t, got, 1)
	assert.Equal(t, models.AssetTypeStock, got[0].AssetType)

	// Same outcome with the order flipped.
	got = Dedupe([]*models.Asset{stock, coin})
	require.Len(t, got, 1)
	assert.Equal(t, models.AssetTypeStock, got[0].AssetType)
}

func TestDedupeKeepsDistinctTickers(t *testing.T) {
	assets := []*models.Asset{
		{Ticker: "AAPL", Name: "Apple", MarketCap: 3e12, AssetType: models.AssetTypeStock},
		{Ticker: "BTC", Name: "Bitcoin", MarketCap: 1e12, AssetType: models.AssetTypeCrypto},
		{Ticker: "MSFT", Name: "Microsoft", MarketCap: 2.8e12, AssetType: models.AssetTypeStock},
	}

	got := Dedupe(assets)
	assert.Len(t, got, 3)
}

func TestDedupeSkipsEmptyTickers(t *testing.T) {
	assets := []*models.Asset{
		{Ticker: "", Name: "Nameless", MarketCap: 1e12},
		{Ticker: "AAPL", Name: "Apple", MarketCap: 3e12},
	}

	got := Dedupe(assets)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Ticker)
}

func TestDedupeOrderIndependent(t *testing.T) {
	base := []*models.Asset{
		{Ticker: "XAU", Name: "Gold", MarketCap: 5e9, AssetType: models.AssetTypeCommodity, DataSource: "FMP"},
		{Ticker: "XAU", Name: "Gold Token", MarketCap: 5e9, AssetType: models.AssetTypeCrypto, DataSource: "CoinGecko"},
		{Ticker: "XAU", Name: "Gold ETF Proxy", MarketCap: 5e9, AssetType: models.AssetTypeStock, DataSource: "FMP"},
		{Ticker: "AAPL", Name: "Apple", MarketCap: 3e12, AssetType: models.AssetTypeStock, DataSource: "FMP"},
		{Ticker: "BTC", Name: "Bitcoin", MarketCap: 1.2e12, AssetType: models.AssetTypeCrypto, DataSource: "CoinGecko"},
	}

	reference := Dedupe(base)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]*models.Asset, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Dedupe(shuffled)
		require.Len(t, got, len(reference))
		for j := range reference {
			assert.Equal(t, reference[j].Ticker, got[j].Ticker)
			assert.Equal(t, reference[j].Name, got[j].Name)
		}
	}
}
