package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SweepCheckpointsWorkflow evicts checkpoints for abandoned distribution
// runs. It is triggered by a Temporal schedule at a configured interval.
//
// The workflow performs these steps:
// 1. List checkpoints older than the configured window (ListStaleCheckpoints activity)
// 2. Delete each one (DeleteCheckpoint activity)
// 3. Return a summary of what was evicted
//
// A delete failure for one checkpoint does not stop the sweep; the next
// scheduled run picks up whatever was left behind.
func SweepCheckpointsWorkflow(ctx workflow.Context, input SweepCheckpointsInput) (*SweepCheckpointsResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SweepCheckpointsWorkflow started", "older_than", input.OlderThan)

	result := &SweepCheckpointsResult{
		SweepTime: workflow.Now(ctx),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Find abandoned checkpoints
	var listResult *ListStaleCheckpointsResult
	err := workflow.ExecuteActivity(ctx, a.ListStaleCheckpoints, ListStaleCheckpointsInput{
		OlderThan: input.OlderThan,
	}).Get(ctx, &listResult)
	if err != nil {
		logger.Error("failed to list stale checkpoints", "error", err)
		return result, err
	}

	result.Examined = len(listResult.Checkpoints)
	if result.Examined == 0 {
		logger.Info("no stale checkpoints found")
		return result, nil
	}

	logger.Info("found stale checkpoints", "count", result.Examined)

	// Step 2: Evict each one, continuing past individual failures
	for _, checkpoint := range listResult.Checkpoints {
		err := workflow.ExecuteActivity(ctx, a.DeleteCheckpoint, DeleteCheckpointInput{
			OwnerID: checkpoint.OwnerID,
		}).Get(ctx, nil)
		if err != nil {
			logger.Error("failed to delete stale checkpoint",
				"owner_id", checkpoint.OwnerID,
				"error", err,
			)
			result.Failed++
			continue
		}

		logger.Info("evicted stale checkpoint",
			"owner_id", checkpoint.OwnerID,
			"last_processed_index", checkpoint.LastProcessedIndex,
			"remaining_lamports", checkpoint.RemainingAmount,
			"last_updated", checkpoint.UpdatedAt,
		)
		result.Deleted++
	}

	logger.Info("SweepCheckpointsWorkflow completed",
		"examined", result.Examined,
		"deleted", result.Deleted,
		"failed", result.Failed,
	)

	return result, nil
}
