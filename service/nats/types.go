package nats

import (
	"time"

	"github.com/solspray/solspray/service/distributor"
)

// DistributionEvent represents a distribution progress event published to
// NATS. This is published to the subject "dist.{owner_id}" in JetStream.
type DistributionEvent struct {
	// Run identity
	OwnerID string `json:"owner_id"`
	Kind    string `json:"kind"`

	// Recipient details, populated on per-recipient events
	RecipientIndex int64  `json:"recipient_index,omitempty"`
	Lamports       uint64 `json:"lamports,omitempty"`
	Signature      string `json:"signature,omitempty"`

	// Run progress, populated on batch and run-level events
	Remaining uint64 `json:"remaining,omitempty"`
	NextIndex int64  `json:"next_index,omitempty"`

	Message string `json:"message"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromProgressEvent converts an orchestrator progress event to a
// DistributionEvent for publishing.
func FromProgressEvent(event distributor.ProgressEvent) *DistributionEvent {
	return &DistributionEvent{
		OwnerID:        event.OwnerID,
		Kind:           string(event.Kind),
		RecipientIndex: event.Index,
		Lamports:       event.Lamports,
		Signature:      event.Signature,
		Remaining:      event.Remaining,
		NextIndex:      event.NextIndex,
		Message:        event.Message,
		PublishedAt:    time.Now().UTC(),
	}
}
