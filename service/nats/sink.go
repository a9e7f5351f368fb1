package nats

import (
	"context"
	"log/slog"

	"github.com/solspray/solspray/service/distributor"
)

// EventSink adapts a Publisher to the orchestrator's progress sink. Publish
// failures are logged and swallowed; observability must never stall or fail
// a distribution run.
type EventSink struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewEventSink creates a sink that forwards progress events to NATS.
func NewEventSink(publisher Publisher, logger *slog.Logger) *EventSink {
	return &EventSink{publisher: publisher, logger: logger}
}

// Publish implements distributor.ProgressSink.
func (s *EventSink) Publish(ctx context.Context, event distributor.ProgressEvent) {
	if err := s.publisher.PublishDistributionEvent(ctx, FromProgressEvent(event)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish distribution event",
			"owner_id", event.OwnerID,
			"kind", event.Kind,
			"error", err,
		)
	}
}
