package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/solspray/solspray/service/metrics"
)

// Publisher defines the interface for publishing distribution events to NATS.
type Publisher interface {
	// PublishDistributionEvent publishes a single event to JetStream.
	// The event is published to the subject "dist.{owner_id}".
	PublishDistributionEvent(ctx context.Context, event *DistributionEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes distribution events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for distribution events.
	StreamName = "DISTRIBUTIONS"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "dist.*"

	// StreamRetention is how long events are retained (7 days by default).
	StreamRetention = 7 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. If m is nil, no
// metrics are recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solspray-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Fund distribution progress events",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	_, err = p.js.CreateStream(ctx, streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishDistributionEvent publishes a single distribution event.
func (p *JetStreamPublisher) PublishDistributionEvent(ctx context.Context, event *DistributionEvent) error {
	subject := fmt.Sprintf("dist.%s", event.OwnerID)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal distribution event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordNATSPublish(subject, status, duration)
	}
	if err != nil {
		return fmt.Errorf("failed to publish distribution event: %w", err)
	}

	p.logger.Debug("published distribution event",
		"subject", subject,
		"kind", event.Kind,
		"owner_id", event.OwnerID,
	)

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
