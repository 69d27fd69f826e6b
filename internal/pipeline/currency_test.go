package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		name    string
		ticker  string
		country string
		want    string
	}{
		{"jakarta suffix", "BBCA.JK", "ID", "IDR"},
		{"santiago suffix", "SQM-B.SN", "CL", "CLP"},
		{"london suffix", "SHEL.L", "GB", "GBP"},
		{"tokyo suffix", "7203.T", "JP", "JPY"},
		{"hong kong suffix", "0700.HK", "HK", "HKD"},
		{"suffix lowercase", "bbca.jk", "", "IDR"},
		{"suffix wins over country", "BBCA.JK", "JP", "IDR"},
		{"country fallback", "SIEMENS", "DE", "EUR"},
		{"euro zone country", "TOTAL", "FR", "EUR"},
		{"country lowercase", "INFY", "in", "INR"},
		{"no suffix no country", "AAPL", "US", "USD"},
		{"empty input", "", "", "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCurrency(tt.ticker, tt.country))
		})
	}
}

func TestDetectCurrencySuffixPrecedence(t *testing.T) {
	// .KS must match before the shorter .S-style suffixes would; rules
	// are evaluated in declared order.
	assert.Equal(t, "KRW", DetectCurrency("005930.KS", "US"))
	assert.Equal(t, "CNY", DetectCurrency("600519.SS", "US"))
}

func TestRateToUSD(t *testing.T) {
	rate, ok := RateToUSD("IDR")
	assert.True(t, ok)
	assert.InDelta(t, 0.000065, rate, 1e-12)

	rate, ok = RateToUSD("jpy")
	assert.True(t, ok)
	assert.InDelta(t, 0.0067, rate, 1e-12)

	// Unknown codes must report no rate; a silent 1.0 would disable
	// the correction without anyone noticing.
	_, ok = RateToUSD("XYZ")
	assert.False(t, ok)

	_, ok = RateToUSD("USD")
	assert.False(t, ok)
}
