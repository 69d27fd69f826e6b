package database

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/internal/pipeline"
	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// InfluxClient records pipeline data-quality telemetry as time series:
// every correction, clamp, and removal, plus one summary point per run.
type InfluxClient struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *logrus.Entry
	cfg      *config.InfluxConfig
}

// NewInfluxClient creates a new InfluxDB client
func NewInfluxClient(cfg *config.InfluxConfig, logger *logrus.Logger) *InfluxClient {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
			SetLogLevel(0),
	)

	return &InfluxClient{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger.WithField("component", "influxdb"),
		cfg:      cfg,
	}
}

// Close closes the InfluxDB client
func (ic *InfluxClient) Close() {
	ic.client.Close()
}

// Health checks InfluxDB health
func (ic *InfluxClient) Health(ctx context.Context) error {
	health, err := ic.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s", msg)
	}

	return nil
}

// WritePipelineEvents writes one point per validator event.
func (ic *InfluxClient) WritePipelineEvents(ctx context.Context, snapshotDate string, events []pipeline.Event) error {
	now := time.Now()
	for _, event := range events {
		point := influxdb2.NewPoint(
			"pipeline_events",
			map[string]string{
				"kind":          string(event.Kind),
				"ticker":        event.Ticker,
				"snapshot_date": snapshotDate,
			},
			map[string]interface{}{
				"before":   event.Before,
				"after":    event.After,
				"rate":     event.Rate,
				"currency": event.Currency,
			},
			now,
		)

		if err := ic.writeAPI.WritePoint(ctx, point); err != nil {
			return fmt.Errorf("failed to write pipeline event: %w", err)
		}
	}

	ic.logger.WithField("events", len(events)).Debug("Wrote pipeline events")
	return nil
}

// WriteRunSummary writes the per-run summary point.
func (ic *InfluxClient) WriteRunSummary(ctx context.Context, summary *models.RunSummary) error {
	point := influxdb2.NewPoint(
		"pipeline_runs",
		map[string]string{
			"snapshot_date": summary.SnapshotDate,
		},
		map[string]interface{}{
			"total_assets":  summary.TotalAssets,
			"equity_count":  summary.EquityCount,
			"crypto_count":  summary.CryptoCount,
			"malformed":     summary.Malformed,
			"corrected":     summary.Corrected,
			"clamped":       summary.Clamped,
			"removed":       summary.Removed,
			"uploaded":      summary.Uploaded,
			"upload_errors": summary.UploadErrors,
			"duration_ms":   summary.DurationMS,
		},
		time.Now(),
	)

	if err := ic.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}

	return nil
}
