package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solspray/solspray/service/db"
	"github.com/solspray/solspray/service/metrics"
)

// SweepCheckpointsInput contains the input parameters for a checkpoint sweep.
type SweepCheckpointsInput struct {
	// OlderThan is the age past which an unfinished checkpoint is
	// considered abandoned and eligible for eviction.
	OlderThan time.Duration `json:"older_than"`
}

// SweepCheckpointsResult contains the result of a checkpoint sweep.
type SweepCheckpointsResult struct {
	Examined  int       `json:"examined"`
	Deleted   int       `json:"deleted"`
	Failed    int       `json:"failed"`
	SweepTime time.Time `json:"sweep_time"`
}

// StaleCheckpoint is the subset of checkpoint state the sweep cares about.
type StaleCheckpoint struct {
	OwnerID            string    `json:"owner_id"`
	LastProcessedIndex int64     `json:"last_processed_index"`
	RemainingAmount    uint64    `json:"remaining_amount"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ListStaleCheckpointsInput contains parameters for the ListStaleCheckpoints activity.
type ListStaleCheckpointsInput struct {
	OlderThan time.Duration `json:"older_than"`
}

// ListStaleCheckpointsResult contains the result of the ListStaleCheckpoints activity.
type ListStaleCheckpointsResult struct {
	Checkpoints []StaleCheckpoint `json:"checkpoints"`
}

// DeleteCheckpointInput contains parameters for the DeleteCheckpoint activity.
type DeleteCheckpointInput struct {
	OwnerID string `json:"owner_id"`
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	ListStaleStates(ctx context.Context, olderThan time.Time) ([]*db.DistributionState, error)
	DeleteState(ctx context.Context, ownerID string) error
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	store   StoreInterface
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If m is nil, no metrics will be recorded.
func NewActivities(store StoreInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// ListStaleCheckpoints fetches checkpoints that have not been written to
// within the configured window. A checkpoint that old belongs to a run
// nobody is resuming.
func (a *Activities) ListStaleCheckpoints(ctx context.Context, input ListStaleCheckpointsInput) (*ListStaleCheckpointsResult, error) {
	cutoff := time.Now().Add(-input.OlderThan)

	a.logger.DebugContext(ctx, "listing stale checkpoints",
		"older_than", input.OlderThan,
		"cutoff", cutoff,
	)

	states, err := a.store.ListStaleStates(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to list stale checkpoints", "error", err)
		return nil, fmt.Errorf("failed to list stale checkpoints: %w", err)
	}

	checkpoints := make([]StaleCheckpoint, 0, len(states))
	for _, state := range states {
		checkpoints = append(checkpoints, StaleCheckpoint{
			OwnerID:            state.OwnerID,
			LastProcessedIndex: state.LastProcessedIndex,
			RemainingAmount:    state.RemainingAmount,
			UpdatedAt:          state.UpdatedAt,
		})
	}

	a.logger.InfoContext(ctx, "listed stale checkpoints",
		"count", len(checkpoints),
		"cutoff", cutoff,
	)

	return &ListStaleCheckpointsResult{Checkpoints: checkpoints}, nil
}

// DeleteCheckpoint evicts a single abandoned checkpoint.
func (a *Activities) DeleteCheckpoint(ctx context.Context, input DeleteCheckpointInput) error {
	a.logger.DebugContext(ctx, "deleting stale checkpoint", "owner_id", input.OwnerID)

	if err := a.store.DeleteState(ctx, input.OwnerID); err != nil {
		a.logger.ErrorContext(ctx, "failed to delete stale checkpoint",
			"owner_id", input.OwnerID,
			"error", err,
		)
		return fmt.Errorf("failed to delete checkpoint %q: %w", input.OwnerID, err)
	}

	if a.metrics != nil {
		a.metrics.RecordCheckpointDelete(input.OwnerID, "swept")
	}

	a.logger.InfoContext(ctx, "deleted stale checkpoint", "owner_id", input.OwnerID)
	return nil
}
