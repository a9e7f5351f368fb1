package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solspray/solspray/service/db"
)

// fakeStateStore implements StateStore for handler tests.
type fakeStateStore struct {
	states  map[string]*db.DistributionState
	listErr error
	getErr  error
	delErr  error
	deleted []string
}

func newFakeStateStore(states ...*db.DistributionState) *fakeStateStore {
	m := make(map[string]*db.DistributionState)
	for _, s := range states {
		m[s.OwnerID] = s
	}
	return &fakeStateStore{states: m}
}

func (s *fakeStateStore) ListStates(context.Context) ([]*db.DistributionState, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*db.DistributionState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	return out, nil
}

func (s *fakeStateStore) GetState(_ context.Context, ownerID string) (*db.DistributionState, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.states[ownerID], nil
}

func (s *fakeStateStore) DeleteState(_ context.Context, ownerID string) error {
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.states, ownerID)
	s.deleted = append(s.deleted, ownerID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds the full route table so path parameters resolve the
// same way they do in production.
func newTestServer(store StateStore) *httptest.Server {
	mux := http.NewServeMux()
	logger := testLogger()
	mux.Handle("GET /api/v1/distributions", handleListDistributions(store, logger))
	mux.Handle("GET /api/v1/distributions/{owner_id}", handleGetDistribution(store, logger))
	mux.Handle("DELETE /api/v1/distributions/{owner_id}", handleResetDistribution(store, nil, logger))
	return httptest.NewServer(mux)
}

func sampleState(ownerID string) *db.DistributionState {
	return &db.DistributionState{
		OwnerID:            ownerID,
		LastProcessedIndex: 7,
		RemainingAmount:    300_000,
		BaseAmount:         100_000,
		FailedAttempts:     1,
		UpdatedAt:          time.Now().UTC(),
	}
}

func TestHandleListDistributions(t *testing.T) {
	store := newFakeStateStore(sampleState("run-a"), sampleState("run-b"))
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/distributions")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Distributions []distributionResponse `json:"distributions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Distributions, 2)
}

func TestHandleListDistributions_StoreError(t *testing.T) {
	store := newFakeStateStore()
	store.listErr = errors.New("boom")
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/distributions")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleGetDistribution(t *testing.T) {
	store := newFakeStateStore(sampleState("run-a"))
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/distributions/run-a")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body distributionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-a", body.OwnerID)
	assert.Equal(t, int64(7), body.LastProcessedIndex)
	assert.Equal(t, int64(8), body.NextIndex)
	assert.Equal(t, uint64(300_000), body.RemainingLamports)
	assert.Equal(t, uint64(100_000), body.BaseLamports)
	assert.Equal(t, int32(1), body.FailedAttempts)
}

func TestHandleGetDistribution_NotFound(t *testing.T) {
	store := newFakeStateStore()
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/distributions/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleGetDistribution_InvalidOwnerID(t *testing.T) {
	store := newFakeStateStore()
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/distributions/bad%20owner%21")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleResetDistribution(t *testing.T) {
	store := newFakeStateStore(sampleState("run-a"))
	ts := newTestServer(store)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/distributions/run-a", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"run-a"}, store.deleted)
}

func TestHandleResetDistribution_NotFound(t *testing.T) {
	store := newFakeStateStore()
	ts := newTestServer(store)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/distributions/unknown", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, store.deleted)
}

func TestValidateOwnerID(t *testing.T) {
	assert.NoError(t, validateOwnerID("run-1"))
	assert.NoError(t, validateOwnerID("airdrop_2026.08"))

	assert.Error(t, validateOwnerID(""))
	assert.Error(t, validateOwnerID("has space"))
	assert.Error(t, validateOwnerID("-leading-dash"))

	long := make([]byte, maxOwnerIDLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, validateOwnerID(string(long)))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run for OPTIONS")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/distributions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
