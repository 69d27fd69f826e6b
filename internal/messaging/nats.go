package messaging

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/pkg/config"
	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// SubjectSnapshotCompleted is published after each successful run so
// downstream consumers (frontends, alerting) can refresh.
const SubjectSnapshotCompleted = "assets.snapshot.completed"

// NATSClient handles NATS messaging operations
type NATSClient struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	encoder *nats.EncodedConn
	logger  *logrus.Entry
	cfg     *config.NATSConfig
}

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	encoder, err := nats.NewEncodedConn(conn, nats.JSON_ENCODER)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create encoded connection: %w", err)
	}

	nc := &NATSClient{
		conn:    conn,
		js:      js,
		encoder: encoder,
		logger:  logger.WithField("component", "nats"),
		cfg:     cfg,
	}

	if err := nc.initializeStreams(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	return nc, nil
}

// Close closes the NATS connection
func (nc *NATSClient) Close() error {
	nc.encoder.Close()
	nc.conn.Close()
	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// initializeStreams creates the JetStream stream for snapshot events.
func (nc *NATSClient) initializeStreams() error {
	_, err := nc.js.AddStream(&nats.StreamConfig{
		Name:     "ASSETS",
		Subjects: []string{"assets.>"},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
		Replicas: 1,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		return fmt.Errorf("failed to create ASSETS stream: %w", err)
	}

	return nil
}

// PublishSnapshotCompleted announces a finished pipeline run.
func (nc *NATSClient) PublishSnapshotCompleted(summary *models.RunSummary) error {
	if err := nc.encoder.Publish(SubjectSnapshotCompleted, summary); err != nil {
		return fmt.Errorf("failed to publish snapshot event: %w", err)
	}

	nc.logger.WithFields(logrus.Fields{
		"snapshot_date": summary.SnapshotDate,
		"total_assets":  summary.TotalAssets,
	}).Info("Published snapshot completed event")

	return nil
}
