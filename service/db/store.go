package db

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// Store provides database operations for distribution checkpoints.
// Durability here is what makes resumption possible: a distribution
// interrupted mid-run picks up from the last row written by SaveState.
type Store struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:  pool,
		clock: clockwork.NewRealClock(),
	}
}

// NewStoreWithClock creates a Store with an injected clock. Tests use this
// to control the updated_at column deterministically.
func NewStoreWithClock(pool *pgxpool.Pool, clock clockwork.Clock) *Store {
	return &Store{pool: pool, clock: clock}
}

// DistributionState is the durable checkpoint for one distribution run.
// At most one row exists per owner; the row existing at all is the sole
// signal that a run is incomplete.
type DistributionState struct {
	OwnerID            string    `json:"owner_id"`
	LastProcessedIndex int64     `json:"last_processed_index"`
	RemainingAmount    uint64    `json:"remaining_amount"`
	BaseAmount         uint64    `json:"base_amount"`
	FailedAttempts     int32     `json:"failed_attempts"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SaveStateParams contains the parameters for persisting a checkpoint.
type SaveStateParams struct {
	OwnerID            string
	LastProcessedIndex int64
	RemainingAmount    uint64
	BaseAmount         uint64
	FailedAttempts     int32
}

// SaveState upserts the checkpoint row for an owner.
// The updated_at column is stamped with the store's clock on every write.
func (s *Store) SaveState(ctx context.Context, params SaveStateParams) (*DistributionState, error) {
	if params.OwnerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	now := s.clock.Now().Unix()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO distribution_states (owner_id, last_processed_index, remaining_amount, base_amount, failed_attempts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO UPDATE SET
			last_processed_index = EXCLUDED.last_processed_index,
			remaining_amount     = EXCLUDED.remaining_amount,
			base_amount          = EXCLUDED.base_amount,
			failed_attempts      = EXCLUDED.failed_attempts,
			updated_at           = EXCLUDED.updated_at
		RETURNING owner_id, last_processed_index, remaining_amount, base_amount, failed_attempts, updated_at`,
		params.OwnerID,
		params.LastProcessedIndex,
		numericFromLamports(params.RemainingAmount),
		numericFromLamports(params.BaseAmount),
		params.FailedAttempts,
		now,
	)

	return scanState(row)
}

// GetState retrieves the checkpoint for an owner.
// Returns (nil, nil) when no checkpoint exists; absence means no unfinished run.
func (s *Store) GetState(ctx context.Context, ownerID string) (*DistributionState, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	row := s.pool.QueryRow(ctx, `
		SELECT owner_id, last_processed_index, remaining_amount, base_amount, failed_attempts, updated_at
		FROM distribution_states
		WHERE owner_id = $1`,
		ownerID,
	)

	state, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DeleteState removes the checkpoint for an owner.
// Deleting an absent checkpoint is not an error.
func (s *Store) DeleteState(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id is required")
	}

	_, err := s.pool.Exec(ctx, `DELETE FROM distribution_states WHERE owner_id = $1`, ownerID)
	return err
}

// ListStates retrieves all checkpoints ordered by last write time, newest first.
func (s *Store) ListStates(ctx context.Context) ([]*DistributionState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT owner_id, last_processed_index, remaining_amount, base_amount, failed_attempts, updated_at
		FROM distribution_states
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStates(rows)
}

// ListStaleStates retrieves checkpoints whose last write is older than the cutoff.
// Used by housekeeping to evict abandoned runs.
func (s *Store) ListStaleStates(ctx context.Context, olderThan time.Time) ([]*DistributionState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT owner_id, last_processed_index, remaining_amount, base_amount, failed_attempts, updated_at
		FROM distribution_states
		WHERE updated_at < $1
		ORDER BY updated_at ASC`,
		olderThan.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStates(rows)
}

// CountStates counts all checkpoints.
func (s *Store) CountStates(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM distribution_states`).Scan(&count)
	return count, err
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*DistributionState, error) {
	var (
		state     DistributionState
		remaining pgtype.Numeric
		base      pgtype.Numeric
		updatedAt int64
	)

	err := row.Scan(
		&state.OwnerID,
		&state.LastProcessedIndex,
		&remaining,
		&base,
		&state.FailedAttempts,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.RemainingAmount = lamportsFromNumeric(remaining)
	state.BaseAmount = lamportsFromNumeric(base)
	state.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &state, nil
}

func collectStates(rows pgx.Rows) ([]*DistributionState, error) {
	var states []*DistributionState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return states, nil
}

// Helper functions to convert between pgtype values and lamport amounts.
// Amounts are stored as NUMERIC but are always whole lamports in practice.

func numericFromLamports(v uint64) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   new(big.Int).SetUint64(v),
		Valid: true,
	}
}

func lamportsFromNumeric(n pgtype.Numeric) uint64 {
	if !n.Valid || n.Int == nil {
		return 0
	}
	i := new(big.Int).Set(n.Int)
	if n.Exp > 0 {
		i.Mul(i, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	} else if n.Exp < 0 {
		i.Div(i, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil))
	}
	return i.Uint64()
}
