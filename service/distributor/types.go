package distributor

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// RecipientRef is an opaque handle to a funds-receiving account: a stable
// integer index within a recipient range and its resolved address.
type RecipientRef struct {
	Index   int64
	Address solana.PublicKey
}

// WalletDirectory resolves recipient indices to addresses. It is consumed,
// not implemented, by this package; Resolve returns (nil, nil) for an
// unknown index rather than an error.
type WalletDirectory interface {
	Resolve(ctx context.Context, index int64) (*RecipientRef, error)
	BalanceOf(ctx context.Context, ref *RecipientRef) (uint64, error)
}

// TransferSubmitter submits one signed transfer via the given endpoint and
// reports its terminal status. Failures carry enough context for Classify.
type TransferSubmitter interface {
	Submit(
		ctx context.Context,
		endpoint string,
		payer solana.PrivateKey,
		recipient solana.PublicKey,
		lamports uint64,
	) (solana.Signature, error)
}

// TransferOutcome is the recorded result of one attempted recipient payment.
// Every recipient the orchestrator touches produces exactly one outcome;
// failures are never silently dropped.
type TransferOutcome struct {
	Index     int64  `json:"index"`
	Address   string `json:"address"`
	Lamports  uint64 `json:"lamports"`
	Signature string `json:"signature,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Err       error  `json:"-"`
}

// ProgressEventKind identifies the granularity of a progress event.
type ProgressEventKind string

const (
	EventRunStarted     ProgressEventKind = "run_started"
	EventRunResumed     ProgressEventKind = "run_resumed"
	EventRecipientPaid  ProgressEventKind = "recipient_paid"
	EventRecipientError ProgressEventKind = "recipient_error"
	EventBatchCommitted ProgressEventKind = "batch_committed"
	EventRunCompleted   ProgressEventKind = "run_completed"
	EventRunPaused      ProgressEventKind = "run_paused"
	EventRunAborted     ProgressEventKind = "run_aborted"
)

// ProgressEvent is a purely observational status report. Message always
// carries a human-readable rendering; the structured fields are populated
// where they apply.
type ProgressEvent struct {
	OwnerID   string            `json:"owner_id"`
	Kind      ProgressEventKind `json:"kind"`
	Index     int64             `json:"index,omitempty"`
	Lamports  uint64            `json:"lamports,omitempty"`
	Signature string            `json:"signature,omitempty"`
	Remaining uint64            `json:"remaining,omitempty"`
	NextIndex int64             `json:"next_index,omitempty"`
	Message   string            `json:"message"`
}

// ProgressSink receives progress events. Sinks must never influence control
// flow; the orchestrator ignores anything a sink does.
type ProgressSink interface {
	Publish(ctx context.Context, event ProgressEvent)
}

// ProgressFunc adapts a plain string callback to a ProgressSink.
type ProgressFunc func(message string)

// Publish implements ProgressSink.
func (f ProgressFunc) Publish(_ context.Context, event ProgressEvent) {
	if f != nil {
		f(event.Message)
	}
}
