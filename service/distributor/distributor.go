package distributor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/solspray/solspray/service/db"
	"github.com/solspray/solspray/service/metrics"
	solpool "github.com/solspray/solspray/service/solana"
)

// CheckpointStore is the durable progress surface the orchestrator needs.
// *db.Store satisfies it.
type CheckpointStore interface {
	SaveState(ctx context.Context, params db.SaveStateParams) (*db.DistributionState, error)
	GetState(ctx context.Context, ownerID string) (*db.DistributionState, error)
	DeleteState(ctx context.Context, ownerID string) error
}

// DistributeParams describes one distribution run.
type DistributeParams struct {
	// OwnerID names the run. Calling Distribute again with the same owner
	// ID resumes an unfinished run instead of starting over.
	OwnerID string
	// Payer signs and funds every transfer.
	Payer solana.PrivateKey
	// Recipients are the indices to pay, in ascending order.
	Recipients []int64
	// TotalLamports is the exact amount the run disburses. Ignored on
	// resume; the checkpoint's remaining amount governs instead.
	TotalLamports uint64
	// BaseLamports, when nonzero, fixes every recipient's amount at this
	// value (last recipient absorbs the remainder). When zero, fresh runs
	// randomize amounts around the even split.
	BaseLamports uint64
	// Sink receives progress events. May be nil.
	Sink ProgressSink
}

// Config wires a Distributor's collaborators.
type Config struct {
	Store     CheckpointStore
	Submitter TransferSubmitter
	Directory WalletDirectory
	Pool      *solpool.EndpointPool
	Logger    *slog.Logger

	BatchSize   int
	MaxAttempts int
	BackoffBase time.Duration

	// Clock, Rand, and Metrics are optional; nil gets real implementations
	// (and no-op metrics).
	Clock   clockwork.Clock
	Rand    *rand.Rand
	Metrics *metrics.Metrics
}

// Distributor orchestrates fund distribution runs: it plans per-recipient
// amounts, fans submissions out in bounded batches, checkpoints progress
// after every batch, and resumes interrupted runs from their checkpoint.
type Distributor struct {
	store     CheckpointStore
	submitter TransferSubmitter
	directory WalletDirectory
	retry     *RetryController
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     clockwork.Clock

	batchSize int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDistributor validates cfg and builds a Distributor.
func NewDistributor(cfg Config) (*Distributor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("transfer submitter is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("wallet directory is required")
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("endpoint pool is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Distributor{
		store:     cfg.Store,
		submitter: cfg.Submitter,
		directory: cfg.Directory,
		retry: NewRetryController(
			cfg.Pool, cfg.MaxAttempts, cfg.BackoffBase,
			cfg.Clock, cfg.Metrics, cfg.Logger,
		),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		batchSize: cfg.BatchSize,
		rng:       cfg.Rand,
	}, nil
}

// plan pairs a recipient index with its allotted amount.
type plannedTransfer struct {
	index    int64
	lamports uint64
}

// Distribute runs (or resumes) the distribution named by params.OwnerID.
// It returns an outcome for every recipient it attempted. On early stop
// the error is a *FatalError (payer cannot pay, do not resume blindly) or
// a *ResumableError (checkpoint persisted, call again to continue).
func (d *Distributor) Distribute(ctx context.Context, params DistributeParams) ([]TransferOutcome, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	state, err := d.store.GetState(ctx, params.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var plan []plannedTransfer
	if state == nil {
		state, plan, err = d.startFresh(ctx, params)
	} else {
		plan, err = d.resumeRun(ctx, params, state)
	}
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		// Checkpoint exists but every recipient is already paid. Finish
		// the bookkeeping the interrupted run never got to.
		return nil, d.complete(ctx, params, state)
	}

	outcomes, runErr := d.processBatches(ctx, params, state, plan)
	if runErr != nil {
		return outcomes, runErr
	}
	return outcomes, d.complete(ctx, params, state)
}

func validateParams(params DistributeParams) error {
	if params.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if params.Payer == nil {
		return fmt.Errorf("payer key is required")
	}
	if len(params.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for i := 1; i < len(params.Recipients); i++ {
		if params.Recipients[i] <= params.Recipients[i-1] {
			return fmt.Errorf("recipient indices must be strictly ascending")
		}
	}
	return nil
}

// startFresh plans a new run and persists its initial checkpoint before any
// transfer is attempted.
func (d *Distributor) startFresh(
	ctx context.Context,
	params DistributeParams,
) (*db.DistributionState, []plannedTransfer, error) {
	if params.TotalLamports == 0 {
		return nil, nil, fmt.Errorf("total lamports must be positive")
	}

	n := len(params.Recipients)
	base := params.BaseLamports
	if base == 0 {
		base = params.TotalLamports / uint64(n)
	}

	var amounts []uint64
	var err error
	if params.BaseLamports != 0 {
		amounts, err = FixedAllocate(base, params.TotalLamports, n)
	} else {
		d.mu.Lock()
		amounts, err = Allocate(params.TotalLamports, n, d.rng)
		d.mu.Unlock()
	}
	if err != nil {
		return nil, nil, err
	}

	// The sentinel index sits just below the first recipient so resumption
	// arithmetic needs no special first-batch case.
	sentinel := params.Recipients[0] - 1
	state, err := d.saveState(ctx, db.SaveStateParams{
		OwnerID:            params.OwnerID,
		LastProcessedIndex: sentinel,
		RemainingAmount:    params.TotalLamports,
		BaseAmount:         base,
		FailedAttempts:     0,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist initial checkpoint: %w", err)
	}

	plan := make([]plannedTransfer, n)
	for i, idx := range params.Recipients {
		plan[i] = plannedTransfer{index: idx, lamports: amounts[i]}
	}

	d.logger.InfoContext(ctx, "distribution run started",
		"owner_id", params.OwnerID,
		"recipients", n,
		"total_lamports", params.TotalLamports,
		"base_lamports", base,
	)
	d.emit(ctx, params, ProgressEvent{
		OwnerID:   params.OwnerID,
		Kind:      EventRunStarted,
		Remaining: params.TotalLamports,
		NextIndex: params.Recipients[0],
		Message: fmt.Sprintf("starting distribution of %d lamports to %d recipients",
			params.TotalLamports, n),
	})
	return state, plan, nil
}

// resumeRun replans the unpaid tail of an interrupted run from its
// checkpoint. Amounts come from the persisted base amount rather than a new
// random draw, so a resumed run stays consistent with what was recorded.
func (d *Distributor) resumeRun(
	ctx context.Context,
	params DistributeParams,
	state *db.DistributionState,
) ([]plannedTransfer, error) {
	var remaining []int64
	for _, idx := range params.Recipients {
		if idx > state.LastProcessedIndex {
			remaining = append(remaining, idx)
		}
	}
	if len(remaining) == 0 {
		return nil, nil
	}

	amounts, err := FixedAllocate(state.BaseAmount, state.RemainingAmount, len(remaining))
	if err != nil {
		return nil, fmt.Errorf("checkpoint for %s is not resumable: %w", params.OwnerID, err)
	}

	plan := make([]plannedTransfer, len(remaining))
	for i, idx := range remaining {
		plan[i] = plannedTransfer{index: idx, lamports: amounts[i]}
	}

	d.logger.InfoContext(ctx, "distribution run resumed",
		"owner_id", params.OwnerID,
		"next_index", remaining[0],
		"remaining_recipients", len(remaining),
		"remaining_lamports", state.RemainingAmount,
		"failed_attempts", state.FailedAttempts,
	)
	d.emit(ctx, params, ProgressEvent{
		OwnerID:   params.OwnerID,
		Kind:      EventRunResumed,
		Remaining: state.RemainingAmount,
		NextIndex: remaining[0],
		Message: fmt.Sprintf("resuming distribution at recipient %d, %d lamports remaining",
			remaining[0], state.RemainingAmount),
	})
	return plan, nil
}

// processBatches fans the plan out in bounded batches, committing a
// checkpoint after each one.
func (d *Distributor) processBatches(
	ctx context.Context,
	params DistributeParams,
	state *db.DistributionState,
	plan []plannedTransfer,
) ([]TransferOutcome, error) {
	var outcomes []TransferOutcome

	for start := 0; start < len(plan); start += d.batchSize {
		if err := ctx.Err(); err != nil {
			// The previous batch is already checkpointed; stop cleanly.
			return outcomes, &ResumableError{
				OwnerID:   params.OwnerID,
				NextIndex: state.LastProcessedIndex + 1,
				Remaining: state.RemainingAmount,
				Err:       err,
			}
		}

		end := min(start+d.batchSize, len(plan))
		batch := plan[start:end]

		batchStart := d.clock.Now()
		batchOutcomes := d.runBatch(ctx, params, batch)
		outcomes = append(outcomes, batchOutcomes...)

		stopErr := d.commitBatch(ctx, params, state, batchOutcomes)

		status := "success"
		if stopErr != nil {
			status = "error"
		}
		if d.metrics != nil {
			d.metrics.RecordBatchDuration(params.OwnerID, status,
				d.clock.Since(batchStart).Seconds())
		}
		if stopErr != nil {
			return outcomes, stopErr
		}

		d.emit(ctx, params, ProgressEvent{
			OwnerID:   params.OwnerID,
			Kind:      EventBatchCommitted,
			Remaining: state.RemainingAmount,
			NextIndex: state.LastProcessedIndex + 1,
			Message: fmt.Sprintf("batch committed through recipient %d, %d lamports remaining",
				state.LastProcessedIndex, state.RemainingAmount),
		})
	}

	return outcomes, nil
}

// runBatch submits one batch concurrently and returns its outcomes in
// recipient order. Every goroutine records an outcome; a failure in one
// transfer never cancels its siblings.
func (d *Distributor) runBatch(
	ctx context.Context,
	params DistributeParams,
	batch []plannedTransfer,
) []TransferOutcome {
	outcomes := make([]TransferOutcome, len(batch))

	var wg sync.WaitGroup
	for i, transfer := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.sendOne(ctx, params, transfer)
		}()
	}
	wg.Wait()

	// Positional assignment from an ascending batch keeps outcomes in
	// recipient order without a sort.
	return outcomes
}

// sendOne resolves and pays a single recipient through the retry controller.
func (d *Distributor) sendOne(
	ctx context.Context,
	params DistributeParams,
	transfer plannedTransfer,
) TransferOutcome {
	outcome := TransferOutcome{Index: transfer.index, Lamports: transfer.lamports}

	if transfer.lamports == 0 {
		// Tiny splits can floor an allotment to zero, whether from a
		// caller-fixed base or a randomized share of a small total. There
		// is nothing to send, record the skip and move on.
		outcome.Skipped = true
		return outcome
	}

	ref, err := d.directory.Resolve(ctx, transfer.index)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to resolve recipient %d: %w", transfer.index, err)
		return outcome
	}
	if ref == nil {
		outcome.Err = fmt.Errorf("recipient %d is not in the wallet directory", transfer.index)
		return outcome
	}
	outcome.Address = ref.Address.String()

	sig, err := d.retry.Execute(ctx, func(ctx context.Context, endpoint string) (solana.Signature, error) {
		return d.submitter.Submit(ctx, endpoint, params.Payer, ref.Address, transfer.lamports)
	})

	status := "success"
	if err != nil {
		status = "error"
		outcome.Err = err
	} else {
		outcome.Signature = sig.String()
		if d.metrics != nil {
			d.metrics.RecordTransferLamports(params.OwnerID, float64(transfer.lamports))
		}
	}
	if d.metrics != nil {
		d.metrics.RecordTransferSubmitted(params.OwnerID, status)
	}

	d.emitOutcome(ctx, params, outcome)
	return outcome
}

func (d *Distributor) emitOutcome(ctx context.Context, params DistributeParams, outcome TransferOutcome) {
	event := ProgressEvent{
		OwnerID:   params.OwnerID,
		Index:     outcome.Index,
		Lamports:  outcome.Lamports,
		Signature: outcome.Signature,
	}
	switch {
	case outcome.Skipped:
		event.Kind = EventRecipientPaid
		event.Message = fmt.Sprintf("recipient %d skipped (zero amount)", outcome.Index)
	case outcome.Err != nil:
		event.Kind = EventRecipientError
		event.Message = fmt.Sprintf("recipient %d failed: %v", outcome.Index, outcome.Err)
	default:
		event.Kind = EventRecipientPaid
		event.Message = fmt.Sprintf("recipient %d paid %d lamports (%s)",
			outcome.Index, outcome.Lamports, outcome.Signature)
	}
	d.emit(ctx, params, event)
}

// commitBatch folds a batch's outcomes into the checkpoint and persists it.
// Progress advances through the contiguous prefix of successes only;
// anything at or beyond the first failure stays unclaimed so resumption
// never skips an unpaid recipient. A nil return means the run continues.
func (d *Distributor) commitBatch(
	ctx context.Context,
	params DistributeParams,
	state *db.DistributionState,
	batch []TransferOutcome,
) error {
	var firstFailure *TransferOutcome
	for i := range batch {
		outcome := &batch[i]
		if outcome.Err != nil {
			firstFailure = outcome
			break
		}
		state.LastProcessedIndex = outcome.Index
		if !outcome.Skipped {
			state.RemainingAmount -= outcome.Lamports
		}
	}

	// A success that landed after the batch's first failure was still paid
	// on chain but cannot be claimed by the checkpoint without skipping
	// the failed recipient on resume. Flag it loudly for reconciliation.
	if firstFailure != nil {
		for i := range batch {
			outcome := &batch[i]
			if outcome.Index > firstFailure.Index && outcome.Err == nil && !outcome.Skipped {
				d.logger.WarnContext(ctx, "paid recipient beyond checkpoint, resume will retry it",
					"owner_id", params.OwnerID,
					"index", outcome.Index,
					"lamports", outcome.Lamports,
					"signature", outcome.Signature,
				)
			}
		}
	}

	failedAttempts := state.FailedAttempts
	if firstFailure == nil {
		failedAttempts = 0
	} else if !isFatal(firstFailure.Err) {
		failedAttempts++
	}

	saved, err := d.saveState(ctx, db.SaveStateParams{
		OwnerID:            params.OwnerID,
		LastProcessedIndex: state.LastProcessedIndex,
		RemainingAmount:    state.RemainingAmount,
		BaseAmount:         state.BaseAmount,
		FailedAttempts:     failedAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to persist checkpoint: %w", err)
	}
	*state = *saved

	if firstFailure == nil {
		return nil
	}

	if isFatal(firstFailure.Err) {
		d.logger.ErrorContext(ctx, "distribution aborted, payer cannot fund transfer",
			"owner_id", params.OwnerID,
			"index", firstFailure.Index,
			"error", firstFailure.Err,
		)
		if d.metrics != nil {
			d.metrics.RecordDistributionRun(params.OwnerID, "aborted")
		}
		d.emit(ctx, params, ProgressEvent{
			OwnerID:   params.OwnerID,
			Kind:      EventRunAborted,
			Index:     firstFailure.Index,
			Remaining: state.RemainingAmount,
			Message: fmt.Sprintf("aborted at recipient %d: %v",
				firstFailure.Index, firstFailure.Err),
		})
		return &FatalError{
			OwnerID: params.OwnerID,
			Index:   firstFailure.Index,
			Err:     firstFailure.Err,
		}
	}

	d.logger.WarnContext(ctx, "distribution paused",
		"owner_id", params.OwnerID,
		"next_index", state.LastProcessedIndex+1,
		"remaining_lamports", state.RemainingAmount,
		"failed_attempts", failedAttempts,
		"error", firstFailure.Err,
	)
	if d.metrics != nil {
		d.metrics.RecordDistributionRun(params.OwnerID, "paused")
	}
	d.emit(ctx, params, ProgressEvent{
		OwnerID:   params.OwnerID,
		Kind:      EventRunPaused,
		Index:     firstFailure.Index,
		Remaining: state.RemainingAmount,
		NextIndex: state.LastProcessedIndex + 1,
		Message: fmt.Sprintf("paused at recipient %d, %d lamports remaining: %v",
			firstFailure.Index, state.RemainingAmount, firstFailure.Err),
	})
	return &ResumableError{
		OwnerID:   params.OwnerID,
		NextIndex: state.LastProcessedIndex + 1,
		Remaining: state.RemainingAmount,
		Err:       firstFailure.Err,
	}
}

// complete clears the checkpoint once every recipient is paid.
func (d *Distributor) complete(ctx context.Context, params DistributeParams, state *db.DistributionState) error {
	if err := d.store.DeleteState(ctx, params.OwnerID); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	if d.metrics != nil {
		d.metrics.RecordCheckpointDelete(params.OwnerID, "completed")
		d.metrics.RecordDistributionRun(params.OwnerID, "completed")
	}
	d.logger.InfoContext(ctx, "distribution run completed",
		"owner_id", params.OwnerID,
		"last_index", state.LastProcessedIndex,
	)
	d.emit(ctx, params, ProgressEvent{
		OwnerID: params.OwnerID,
		Kind:    EventRunCompleted,
		Message: "distribution complete, all recipients paid",
	})
	return nil
}

func (d *Distributor) saveState(ctx context.Context, params db.SaveStateParams) (*db.DistributionState, error) {
	saved, err := d.store.SaveState(ctx, params)
	if d.metrics != nil {
		d.metrics.RecordCheckpointWrite(params.OwnerID, err)
	}
	return saved, err
}

func (d *Distributor) emit(ctx context.Context, params DistributeParams, event ProgressEvent) {
	if params.Sink != nil {
		params.Sink.Publish(ctx, event)
	}
}

func isFatal(err error) bool {
	return Classify(err) == InsufficientFunds
}

// HasUnfinishedRun reports whether a checkpoint exists for the owner.
func (d *Distributor) HasUnfinishedRun(ctx context.Context, ownerID string) (bool, error) {
	state, err := d.store.GetState(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return state != nil, nil
}

// CurrentState returns the owner's checkpoint, or nil if none exists.
func (d *Distributor) CurrentState(ctx context.Context, ownerID string) (*db.DistributionState, error) {
	return d.store.GetState(ctx, ownerID)
}

// Reset discards the owner's checkpoint so the next Distribute call starts
// from scratch. Resetting an owner with no checkpoint is a no-op.
func (d *Distributor) Reset(ctx context.Context, ownerID string) error {
	if err := d.store.DeleteState(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	if d.metrics != nil {
		d.metrics.RecordCheckpointDelete(ownerID, "reset")
	}
	d.logger.InfoContext(ctx, "checkpoint reset", "owner_id", ownerID)
	return nil
}
