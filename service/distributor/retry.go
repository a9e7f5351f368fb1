package distributor

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/solspray/solspray/service/metrics"
	solpool "github.com/solspray/solspray/service/solana"
)

// Operation is one full transfer submission attempt against a specific
// endpoint. Each invocation rebuilds the transaction from scratch, so a
// retry never reuses stale chain state.
type Operation func(ctx context.Context, endpoint string) (solana.Signature, error)

// RetryController drives an Operation to completion across the endpoint
// pool, applying a per-class policy:
//
//   - rate limits rotate to the next endpoint and retry immediately; only
//     when every endpoint is rate limited does an attempt burn and a
//     backoff apply
//   - stale chain references rotate and retry, burning an attempt
//   - timeouts rotate and retry, burning an attempt
//   - insufficient funds aborts immediately, no retry
//   - anything else backs off exponentially before retrying
type RetryController struct {
	pool        *solpool.EndpointPool
	maxAttempts int
	backoffBase time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewRetryController creates a controller over the given endpoint pool.
// maxAttempts bounds how many times a single transfer burns an attempt;
// backoffBase is the first exponential backoff delay.
func NewRetryController(
	pool *solpool.EndpointPool,
	maxAttempts int,
	backoffBase time.Duration,
	clock clockwork.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RetryController {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RetryController{
		pool:        pool,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		clock:       clock,
		logger:      logger,
		metrics:     m,
	}
}

// Execute runs op until it succeeds, fails fatally, or exhausts the retry
// budget. The returned error for an exhausted budget is a
// *RetryExhaustedError carrying the class of the final failure.
func (rc *RetryController) Execute(ctx context.Context, op Operation) (solana.Signature, error) {
	var lastErr error
	var lastClass FailureClass

	// Consecutive rate-limit rotations that have not burned an attempt.
	// Once every endpoint in the pool has rejected us, rotating further
	// is pointless and we back off instead.
	rotations := 0

	for attempt := 0; attempt < rc.maxAttempts; {
		if err := ctx.Err(); err != nil {
			return solana.Signature{}, err
		}

		endpoint := rc.pool.Current()
		sig, err := op(ctx, endpoint)
		if err == nil {
			return sig, nil
		}

		lastErr = err
		lastClass = Classify(err)
		if rc.metrics != nil {
			rc.metrics.RecordRetry(lastClass.String())
		}

		switch lastClass {
		case InsufficientFunds:
			rc.logger.WarnContext(ctx, "transfer failed fatally",
				"endpoint", endpoint, "error", err)
			return solana.Signature{}, err

		case RateLimited:
			if rc.metrics != nil {
				rc.metrics.RecordRateLimitHit(endpoint)
			}
			rc.rotate(ctx, endpoint, "rate_limited")
			rotations++
			if rotations >= rc.pool.Size() {
				rotations = 0
				if err := rc.sleep(ctx, rc.backoff(attempt)); err != nil {
					return solana.Signature{}, err
				}
				attempt++
			}

		case StaleReference:
			rc.rotate(ctx, endpoint, "stale_reference")
			rotations = 0
			attempt++

		case Timeout:
			rc.rotate(ctx, endpoint, "timeout")
			rotations = 0
			attempt++

		default:
			rc.logger.WarnContext(ctx, "transfer failed, backing off",
				"endpoint", endpoint,
				"attempt", attempt+1,
				"max_attempts", rc.maxAttempts,
				"error", err,
			)
			rotations = 0
			if err := rc.sleep(ctx, rc.backoff(attempt)); err != nil {
				return solana.Signature{}, err
			}
			attempt++
		}
	}

	return solana.Signature{}, &RetryExhaustedError{
		Class:    lastClass,
		Attempts: rc.maxAttempts,
		Err:      lastErr,
	}
}

func (rc *RetryController) rotate(ctx context.Context, from, reason string) {
	next := rc.pool.Rotate()
	if rc.metrics != nil {
		rc.metrics.RecordEndpointRotation(next)
	}
	rc.logger.InfoContext(ctx, "rotating rpc endpoint",
		"from", from, "to", next, "reason", reason)
}

func (rc *RetryController) backoff(attempt int) time.Duration {
	return rc.backoffBase * (1 << attempt)
}

func (rc *RetryController) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-rc.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
