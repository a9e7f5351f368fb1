package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/solspray/solspray/service/db"
	"github.com/solspray/solspray/service/metrics"
)

const maxOwnerIDLength = 128

// Owner IDs are caller-chosen names; keep them shell- and URL-safe.
var validOwnerIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// StateStore defines the checkpoint operations the HTTP handlers need.
// *db.Store satisfies it.
type StateStore interface {
	ListStates(ctx context.Context) ([]*db.DistributionState, error)
	GetState(ctx context.Context, ownerID string) (*db.DistributionState, error)
	DeleteState(ctx context.Context, ownerID string) error
}

// distributionResponse is the wire representation of a checkpoint.
type distributionResponse struct {
	OwnerID            string    `json:"owner_id"`
	LastProcessedIndex int64     `json:"last_processed_index"`
	NextIndex          int64     `json:"next_index"`
	RemainingLamports  uint64    `json:"remaining_lamports"`
	BaseLamports       uint64    `json:"base_lamports"`
	FailedAttempts     int32     `json:"failed_attempts"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func stateToResponse(state *db.DistributionState) distributionResponse {
	return distributionResponse{
		OwnerID:            state.OwnerID,
		LastProcessedIndex: state.LastProcessedIndex,
		NextIndex:          state.LastProcessedIndex + 1,
		RemainingLamports:  state.RemainingAmount,
		BaseLamports:       state.BaseAmount,
		FailedAttempts:     state.FailedAttempts,
		UpdatedAt:          state.UpdatedAt,
	}
}

// handleListDistributions returns a handler that lists all unfinished runs.
// GET /api/v1/distributions
func handleListDistributions(store StateStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		states, err := store.ListStates(r.Context())
		if err != nil {
			logger.Error("failed to list distribution states", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("distribution states listed", "count", len(states))

		resp := make([]distributionResponse, len(states))
		for i, state := range states {
			resp[i] = stateToResponse(state)
		}

		writeJSON(w, map[string]interface{}{
			"distributions": resp,
		}, http.StatusOK)
	})
}

// handleGetDistribution returns a handler that retrieves one run's checkpoint.
// GET /api/v1/distributions/{owner_id}
func handleGetDistribution(store StateStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.PathValue("owner_id")

		if err := validateOwnerID(ownerID); err != nil {
			logger.Debug("invalid owner id", "owner_id", ownerID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		state, err := store.GetState(r.Context(), ownerID)
		if err != nil {
			logger.Error("failed to get distribution state", "owner_id", ownerID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if state == nil {
			writeError(w, "distribution not found", http.StatusNotFound)
			return
		}

		logger.Debug("distribution state retrieved", "owner_id", ownerID)
		writeJSON(w, stateToResponse(state), http.StatusOK)
	})
}

// handleResetDistribution returns a handler that discards a run's checkpoint
// so its next invocation starts from scratch.
// DELETE /api/v1/distributions/{owner_id}
func handleResetDistribution(store StateStore, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.PathValue("owner_id")

		if err := validateOwnerID(ownerID); err != nil {
			logger.Debug("invalid owner id", "owner_id", ownerID, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		state, err := store.GetState(r.Context(), ownerID)
		if err != nil {
			logger.Error("failed to check distribution state", "owner_id", ownerID, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if state == nil {
			writeError(w, "distribution not found", http.StatusNotFound)
			return
		}

		if err := store.DeleteState(r.Context(), ownerID); err != nil {
			logger.Error("failed to reset distribution state", "owner_id", ownerID, "error", err)
			writeError(w, "failed to reset distribution", http.StatusInternalServerError)
			return
		}

		if m != nil {
			m.RecordCheckpointDelete(ownerID, "reset")
		}

		logger.Info("distribution state reset", "owner_id", ownerID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func validateOwnerID(ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if len(ownerID) > maxOwnerIDLength {
		return fmt.Errorf("owner id exceeds %d characters", maxOwnerIDLength)
	}
	if !validOwnerIDRegex.MatchString(ownerID) {
		return fmt.Errorf("owner id contains invalid characters")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, map[string]string{"error": msg}, status)
}
