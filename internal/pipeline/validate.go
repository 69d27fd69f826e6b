package pipeline

import (
	"strings"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// EventKind identifies a data-quality action taken by the validator.
type EventKind string

const (
	EventCorrected EventKind = "corrected"
	EventClamped   EventKind = "clamped"
	EventRemoved   EventKind = "removed"
)

// Event is an observable record of a market-cap repair, clamp, or
// rejection, kept for logging and telemetry.
type Event struct {
	Kind     EventKind
	Ticker   string
	Currency string
	Rate     float64
	Before   float64
	After    float64
}

// EventSink receives validator events. A nil sink is allowed.
type EventSink func(Event)

// Validator detects and repairs currency-unit market-cap errors from the
// equities feed, then enforces absolute plausibility ceilings.
//
// The upstream defect it defends against: foreign listings occasionally
// report market caps in local currency while labeled USD, producing
// nonsensical >$1T caps for mid-size issuers.
type Validator struct {
	trigger float64
	ceiling float64
	reject  float64
	trusted map[string]bool
	sink    EventSink
}

// NewValidator creates a validator. trusted lists data sources already
// known to convert to USD upstream; correction is skipped for them.
func NewValidator(trigger, ceiling, reject float64, trusted []string, sink EventSink) *Validator {
	trustedSet := make(map[string]bool, len(trusted))
	for _, s := range trusted {
		trustedSet[strings.ToLower(s)] = true
	}
	return &Validator{
		trigger: trigger,
		ceiling: ceiling,
		reject:  reject,
		trusted: trustedSet,
		sink:    sink,
	}
}

// Correct validates one asset, repairing its market cap in place when the
// currency heuristic identifies a unit-reporting error. It returns nil
// when the asset is implausible beyond repair; that is a data-quality
// rejection, not an error.
func (v *Validator) Correct(asset *models.Asset) *models.Asset {
	// Crypto and commodity feeds are defined to already report in USD;
	// the currency-unit defect cannot occur there, so those records pass
	// through untouched, ceilings included.
	if asset.AssetType.USDNative() {
		return asset
	}

	if !v.trusted[strings.ToLower(asset.DataSource)] && asset.MarketCap > v.trigger {
		v.applyCorrection(asset)
	}

	if asset.MarketCap > v.reject {
		v.emit(Event{
			Kind:   EventRemoved,
			Ticker: asset.Ticker,
			Before: asset.MarketCap,
		})
		return nil
	}

	if asset.MarketCap > v.ceiling {
		v.emit(Event{
			Kind:   EventClamped,
			Ticker: asset.Ticker,
			Before: asset.MarketCap,
			After:  v.ceiling,
		})
		asset.MarketCap = v.ceiling
	}

	return asset
}

func (v *Validator) applyCorrection(asset *models.Asset) {
	currency := DetectCurrency(asset.Ticker, asset.Country)
	if currency == "USD" {
		return
	}

	rate, ok := RateToUSD(currency)
	if !ok {
		// Unknown rate means no correction is possible; the ceilings
		// below still bound the damage.
		return
	}

	before := asset.MarketCap
	asset.MarketCap *= rate
	asset.CurrentPrice *= rate
	asset.PreviousClose *= rate

	v.emit(Event{
		Kind:     EventCorrected,
		Ticker:   asset.Ticker,
		Currency: currency,
		Rate:     rate,
		Before:   before,
		After:    asset.MarketCap,
	})
}

func (v *Validator) emit(e Event) {
	if v.sink != nil {
		v.sink(e)
	}
}
