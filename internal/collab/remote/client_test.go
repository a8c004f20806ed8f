package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/internal/collab/remote"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

func newClient(t *testing.T, handler http.HandlerFunc) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return remote.New(remote.Config{
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
		Burst:             100,
		Breaker:           collab.BreakerConfig{MaxFailures: 2, Timeout: time.Hour},
	}, nil)
}

func testNetwork() *types.Network {
	return &types.Network{
		ID:        "net",
		Objective: "bio1",
		Reactions: []*types.Reaction{{ID: "bio1", Upper: 1000}},
	}
}

func TestClient_Optimize(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/optimize", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req collab.SolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bio1", req.Objective)
		assert.True(t, req.Maximize)

		_ = json.NewEncoder(w).Encode(collab.Solution{
			Status:         types.SolveOptimal,
			ObjectiveValue: 0.87,
			Fluxes:         map[string]float64{"bio1": 0.87},
		})
	})

	sol, err := client.Optimize(context.Background(), collab.SolveRequest{
		Network: testNetwork(), Objective: "bio1", Maximize: true,
	})
	require.NoError(t, err)
	assert.Equal(t, types.SolveOptimal, sol.Status)
	assert.InDelta(t, 0.87, sol.ObjectiveValue, 1e-9)
}

func TestClient_OptimizeRejectsUnknownStatus(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"weird"}`))
	})

	_, err := client.Optimize(context.Background(), collab.SolveRequest{Network: testNetwork(), Objective: "bio1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCollaborator))
}

func TestClient_GapfillNoSolution(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/gapfill", r.URL.Path)
		var req collab.GapfillRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 10.0, req.Medium.Uptake["EX_cpd00027_e0"])
		_, _ = w.Write([]byte(`{"found":false,"growth_before":0,"growth_after":0}`))
	})

	sol, err := client.Gapfill(context.Background(), collab.GapfillRequest{
		Network: testNetwork(),
		Medium:  collab.Medium{ID: "m", Uptake: map[string]float64{"EX_cpd00027_e0": 10}},
		Target:  "bio1",
	})
	require.NoError(t, err)
	assert.False(t, sol.Found)
	assert.Empty(t, sol.Added)
}

func TestClient_ClientErrorIsReconstructionError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"network has no biomass reaction"}`))
	})

	_, err := client.Correct(context.Background(), testNetwork(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrReconstruction))
	assert.Contains(t, err.Error(), "network has no biomass reaction")

	var recErr *types.ReconstructionError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, types.StageCorrected, recErr.Stage)
	assert.Equal(t, "closed", client.BreakerState())
}

func TestClient_ServerErrorsTripBreaker(t *testing.T) {
	var hits atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "solver crashed", http.StatusInternalServerError)
	})
	ctx := context.Background()
	req := collab.SolveRequest{Network: testNetwork(), Objective: "bio1"}

	for i := 0; i < 2; i++ {
		_, err := client.Optimize(ctx, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrCollaborator))
		assert.Contains(t, err.Error(), "solver crashed")
	}
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.Optimize(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, collab.ErrCircuitOpen))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_CorrectRequiresNetwork(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"conditions":[],"passed":0,"failed":0}`))
	})

	_, err := client.Correct(context.Background(), testNetwork(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCollaborator))
}
