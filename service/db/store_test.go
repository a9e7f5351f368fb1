package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveState(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("create checkpoint", func(t *testing.T) {
		params := SaveStateParams{
			OwnerID:            "owner-1",
			LastProcessedIndex: 0,
			RemainingAmount:    10_000_000_000,
			BaseAmount:         500_000_000,
			FailedAttempts:     0,
		}

		state, err := store.SaveState(ctx, params)
		require.NoError(t, err)
		require.NotNil(t, state)

		assert.Equal(t, params.OwnerID, state.OwnerID)
		assert.Equal(t, params.LastProcessedIndex, state.LastProcessedIndex)
		assert.Equal(t, params.RemainingAmount, state.RemainingAmount)
		assert.Equal(t, params.BaseAmount, state.BaseAmount)
		assert.Equal(t, int32(0), state.FailedAttempts)
		assert.WithinDuration(t, time.Now(), state.UpdatedAt, 5*time.Second)
	})

	t.Run("upsert replaces existing checkpoint", func(t *testing.T) {
		_, err := store.SaveState(ctx, SaveStateParams{
			OwnerID:            "owner-2",
			LastProcessedIndex: 3,
			RemainingAmount:    7_000_000_000,
			BaseAmount:         500_000_000,
		})
		require.NoError(t, err)

		updated, err := store.SaveState(ctx, SaveStateParams{
			OwnerID:            "owner-2",
			LastProcessedIndex: 8,
			RemainingAmount:    4_500_000_000,
			BaseAmount:         500_000_000,
			FailedAttempts:     1,
		})
		require.NoError(t, err)

		assert.Equal(t, int64(8), updated.LastProcessedIndex)
		assert.Equal(t, uint64(4_500_000_000), updated.RemainingAmount)
		assert.Equal(t, int32(1), updated.FailedAttempts)

		// Still exactly one row for this owner
		count, err := store.CountStates(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count) // owner-1 from previous subtest + owner-2
	})

	t.Run("empty owner id rejected", func(t *testing.T) {
		_, err := store.SaveState(ctx, SaveStateParams{OwnerID: ""})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner id is required")
	})
}

func TestGetState(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("missing checkpoint returns nil without error", func(t *testing.T) {
		state, err := store.GetState(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("round trip", func(t *testing.T) {
		saved, err := store.SaveState(ctx, SaveStateParams{
			OwnerID:            "owner-rt",
			LastProcessedIndex: 12,
			RemainingAmount:    2_340_000_000,
			BaseAmount:         450_000_000,
			FailedAttempts:     2,
		})
		require.NoError(t, err)

		loaded, err := store.GetState(ctx, "owner-rt")
		require.NoError(t, err)
		require.NotNil(t, loaded)

		assert.Equal(t, saved.OwnerID, loaded.OwnerID)
		assert.Equal(t, saved.LastProcessedIndex, loaded.LastProcessedIndex)
		assert.Equal(t, saved.RemainingAmount, loaded.RemainingAmount)
		assert.Equal(t, saved.BaseAmount, loaded.BaseAmount)
		assert.Equal(t, saved.FailedAttempts, loaded.FailedAttempts)
	})

	t.Run("empty owner id rejected", func(t *testing.T) {
		_, err := store.GetState(ctx, "")
		require.Error(t, err)
	})
}

func TestDeleteState(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("delete removes checkpoint", func(t *testing.T) {
		_, err := store.SaveState(ctx, SaveStateParams{
			OwnerID:            "owner-del",
			LastProcessedIndex: 5,
			RemainingAmount:    1_000_000_000,
			BaseAmount:         200_000_000,
		})
		require.NoError(t, err)

		err = store.DeleteState(ctx, "owner-del")
		require.NoError(t, err)

		state, err := store.GetState(ctx, "owner-del")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		err := store.DeleteState(ctx, "owner-del")
		assert.NoError(t, err)

		err = store.DeleteState(ctx, "never-existed")
		assert.NoError(t, err)
	})
}

func TestListStaleStates(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	// A checkpoint written in the past, via direct insert to control updated_at.
	staleAt := time.Now().Add(-96 * time.Hour).Unix()
	store.MustExec(t, `
		INSERT INTO distribution_states (owner_id, last_processed_index, remaining_amount, base_amount, failed_attempts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"owner-stale", int64(4), int64(1_000_000_000), int64(250_000_000), int32(0), staleAt,
	)

	_, err := store.SaveState(ctx, SaveStateParams{
		OwnerID:            "owner-fresh",
		LastProcessedIndex: 1,
		RemainingAmount:    9_000_000_000,
		BaseAmount:         1_000_000_000,
	})
	require.NoError(t, err)

	stale, err := store.ListStaleStates(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "owner-stale", stale[0].OwnerID)

	all, err := store.ListStates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
