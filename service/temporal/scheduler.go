package temporal

import (
	"context"
	"time"
)

// Scheduler manages the Temporal schedule that drives checkpoint sweeps.
type Scheduler interface {
	// CreateSweepSchedule creates the recurring sweep schedule. The
	// schedule triggers SweepCheckpointsWorkflow every interval, evicting
	// checkpoints older than olderThan.
	CreateSweepSchedule(ctx context.Context, interval, olderThan time.Duration) error

	// DeleteSweepSchedule deletes the recurring sweep schedule.
	DeleteSweepSchedule(ctx context.Context) error
}

// sweepScheduleID is the fixed Temporal schedule ID for checkpoint sweeps.
// There is exactly one sweep schedule per deployment.
const sweepScheduleID = "sweep-checkpoints"
