package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/internal/snapshot"
	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// ErrNoInputData is returned when every source yields zero records; a
// single empty source only degrades the run.
var ErrNoInputData = errors.New("no input data from any source")

// Provenance tags the driver attaches to every record of a source. The
// validator consults them for its correction-skip rule.
const (
	SourceFMP       = "FMP"
	SourceCoinGecko = "CoinGecko"
)

// EquitySource fetches raw equities and commodities records.
type EquitySource interface {
	FetchEquities(ctx context.Context) ([]models.EquityRecord, error)
}

// CryptoSource fetches raw cryptocurrency records.
type CryptoSource interface {
	FetchCrypto(ctx context.Context) ([]models.CryptoRecord, error)
}

// Result is the outcome of one pipeline run.
type Result struct {
	Assets       []*models.Asset
	SnapshotDate string
	EquityCount  int
	CryptoCount  int
	Malformed    int
	Corrected    int
	Clamped      int
	Removed      int
	Events       []Event
}

// Summary converts the result into the shape published on NATS and
// recorded in InfluxDB.
func (r *Result) Summary() *models.RunSummary {
	byType := make(map[string]int)
	for _, asset := range r.Assets {
		byType[string(asset.AssetType)]++
	}
	return &models.RunSummary{
		SnapshotDate: r.SnapshotDate,
		TotalAssets:  len(r.Assets),
		EquityCount:  r.EquityCount,
		CryptoCount:  r.CryptoCount,
		Malformed:    r.Malformed,
		Corrected:    r.Corrected,
		Clamped:      r.Clamped,
		Removed:      r.Removed,
		ByAssetType:  byType,
	}
}

// Driver sequences the merge-validate-rank pipeline over both sources.
// Each run recomputes the full set; nothing survives between runs.
type Driver struct {
	cfg      *config.PipelineConfig
	equities EquitySource
	crypto   CryptoSource
	logger   *logrus.Entry
	now      func() time.Time
}

// NewDriver creates a pipeline driver. Either source may be nil, in
// which case only its snapshot file is consulted.
func NewDriver(cfg *config.PipelineConfig, equities EquitySource, crypto CryptoSource, logger *logrus.Logger) *Driver {
	return &Driver{
		cfg:      cfg,
		equities: equities,
		crypto:   crypto,
		logger:   logger.WithField("component", "pipeline"),
		now:      time.Now,
	}
}

// Run executes load-or-fetch, normalize, validate/correct, dedupe, and
// rank, returning the final ranked list. Persistence is the caller's
// concern; the driver never writes anywhere.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	snapshotDate := d.now().Format("2006-01-02")

	equityRecords := d.loadEquities(ctx)
	cryptoRecords := d.loadCrypto(ctx)

	d.logger.WithFields(logrus.Fields{
		"equities": len(equityRecords),
		"crypto":   len(cryptoRecords),
	}).Info("Loaded source records")

	if len(equityRecords) == 0 && len(cryptoRecords) == 0 {
		return nil, ErrNoInputData
	}

	result := &Result{SnapshotDate: snapshotDate}
	sink := func(e Event) {
		result.Events = append(result.Events, e)
		switch e.Kind {
		case EventCorrected:
			result.Corrected++
			d.logger.WithFields(logrus.Fields{
				"ticker":   e.Ticker,
				"currency": e.Currency,
				"rate":     e.Rate,
				"before":   e.Before,
				"after":    e.After,
			}).Warn("Emergency currency correction applied")
		case EventClamped:
			result.Clamped++
			d.logger.WithFields(logrus.Fields{
				"ticker": e.Ticker,
				"before": e.Before,
				"after":  e.After,
			}).Warn("Market cap clamped to plausibility ceiling")
		case EventRemoved:
			result.Removed++
			d.logger.WithFields(logrus.Fields{
				"ticker": e.Ticker,
				"before": e.Before,
			}).Error("Market cap too large to trust, record removed")
		}
	}

	normalizer := NewNormalizer(d.cfg.MinMarketCap, d.cfg.MinVolume)
	validator := NewValidator(d.cfg.CorrectionTrigger, d.cfg.MarketCapCeiling, d.cfg.RejectCeiling, d.cfg.TrustedSources, sink)

	var validated []*models.Asset
	for _, rec := range equityRecords {
		asset, ok := normalizer.NormalizeEquity(rec, SourceFMP)
		if !ok {
			continue
		}
		result.EquityCount++
		if asset = validator.Correct(asset); asset != nil {
			validated = append(validated, asset)
		}
	}
	for _, rec := range cryptoRecords {
		asset, ok := normalizer.NormalizeCrypto(rec, SourceCoinGecko)
		if !ok {
			continue
		}
		result.CryptoCount++
		if asset = validator.Correct(asset); asset != nil {
			validated = append(validated, asset)
		}
	}
	result.Malformed = normalizer.Malformed

	deduped := Dedupe(validated)
	result.Assets = Rank(deduped, d.cfg.TopN, snapshotDate)

	d.logger.WithFields(logrus.Fields{
		"validated": len(validated),
		"deduped":   len(deduped),
		"ranked":    len(result.Assets),
		"malformed": result.Malformed,
		"corrected": result.Corrected,
		"clamped":   result.Clamped,
		"removed":   result.Removed,
	}).Info("Pipeline completed")

	return result, nil
}

// loadEquities reads the equities snapshot file, falling back to the
// fetcher when the file is absent. A failed source degrades to empty.
func (d *Driver) loadEquities(ctx context.Context) []models.EquityRecord {
	records, err := snapshot.LoadEquities(d.cfg.EquitiesFile)
	switch {
	case err == nil:
		return records
	case !errors.Is(err, os.ErrNotExist):
		d.logger.WithError(err).WithField("file", d.cfg.EquitiesFile).Error("Failed to read equities file")
		return nil
	}

	if d.equities == nil {
		d.logger.WithField("file", d.cfg.EquitiesFile).Warn("Equities file missing and no fetcher configured")
		return nil
	}

	d.logger.WithField("file", d.cfg.EquitiesFile).Info("Equities file missing, invoking fetcher")
	records, err = d.equities.FetchEquities(ctx)
	if err != nil {
		d.logger.WithError(err).Error("Equities fetch failed, continuing without source")
		return nil
	}
	return records
}

// loadCrypto mirrors loadEquities for the cryptocurrency source.
func (d *Driver) loadCrypto(ctx context.Context) []models.CryptoRecord {
	records, err := snapshot.LoadCrypto(d.cfg.CryptoFile)
	switch {
	case err == nil:
		return records
	case !errors.Is(err, os.ErrNotExist):
		d.logger.WithError(err).WithField("file", d.cfg.CryptoFile).Error("Failed to read crypto file")
		return nil
	}

	if d.crypto == nil {
		d.logger.WithField("file", d.cfg.CryptoFile).Warn("Crypto file missing and no fetcher configured")
		return nil
	}

	d.logger.WithField("file", d.cfg.CryptoFile).Info("Crypto file missing, invoking fetcher")
	records, err = d.crypto.FetchCrypto(ctx)
	if err != nil {
		d.logger.WithError(err).Error("Crypto fetch failed, continuing without source")
		return nil
	}
	return records
}
