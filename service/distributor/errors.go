package distributor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// FailureClass partitions transfer submission failures into the categories
// the retry controller treats differently.
type FailureClass int

const (
	// Unclassified failures get exponential backoff before retrying.
	Unclassified FailureClass = iota
	// RateLimited means the endpoint rejected us for sending too fast.
	RateLimited
	// StaleReference means the transaction referenced expired chain state
	// and must be rebuilt from scratch.
	StaleReference
	// Timeout means the endpoint did not answer within the submission budget.
	Timeout
	// InsufficientFunds means the payer cannot cover the transfer. Retrying
	// cannot help.
	InsufficientFunds
)

func (f FailureClass) String() string {
	switch f {
	case RateLimited:
		return "rate_limited"
	case StaleReference:
		return "stale_reference"
	case Timeout:
		return "timeout"
	case InsufficientFunds:
		return "insufficient_funds"
	default:
		return "unclassified"
	}
}

// Classify maps a transfer submission error to its failure class. It checks
// structured JSON-RPC error codes first, then falls back to message text,
// since public endpoints are inconsistent about which they use.
func Classify(err error) FailureClass {
	if err == nil {
		return Unclassified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == 429 {
		return RateLimited
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return RateLimited
	case strings.Contains(msg, "blockhash not found"),
		strings.Contains(msg, "block height exceeded"):
		return StaleReference
	case strings.Contains(msg, "insufficient lamports"),
		strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "found no record of a prior credit"):
		return InsufficientFunds
	case strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "timeout"):
		return Timeout
	default:
		return Unclassified
	}
}

// RetryExhaustedError reports that a transfer burned through its full retry
// budget without ever being accepted.
type RetryExhaustedError struct {
	Class    FailureClass
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts (%s): %v", e.Attempts, e.Class, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// FatalError reports a run aborted by a non-recoverable payer failure.
// The checkpoint is preserved so the run can be inspected, but resuming
// will hit the same wall until the payer is funded.
type FatalError struct {
	OwnerID string
	Index   int64
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("distribution %s aborted at recipient %d: %v", e.OwnerID, e.Index, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ResumableError reports a run that stopped early with its checkpoint
// persisted. A later call with the same owner ID picks up at NextIndex.
type ResumableError struct {
	OwnerID   string
	NextIndex int64
	Remaining uint64
	Err       error
}

func (e *ResumableError) Error() string {
	return fmt.Sprintf(
		"distribution %s paused at recipient %d with %d lamports remaining: %v",
		e.OwnerID, e.NextIndex, e.Remaining, e.Err,
	)
}

func (e *ResumableError) Unwrap() error { return e.Err }
