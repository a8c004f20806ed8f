package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jplfaria/gem-flux-mcp/internal/analysis"
	"github.com/jplfaria/gem-flux-mcp/internal/collab/collabtest"
	"github.com/jplfaria/gem-flux-mcp/internal/library"
	"github.com/jplfaria/gem-flux-mcp/internal/metrics"
	"github.com/jplfaria/gem-flux-mcp/internal/session"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

type names map[string]string

func (n names) CompoundName(_ context.Context, id string) (string, error) {
	if name, ok := n[id]; ok {
		return name, nil
	}
	return "", &types.NotFoundError{Kind: "compound", ID: id}
}

func setup(t *testing.T, solver *collabtest.Solver) (*analysis.Gateway, *session.Session, *metrics.Metrics) {
	t.Helper()
	ctx := context.Background()
	lib, err := library.Default()
	require.NoError(t, err)
	sess, err := session.New(ctx, session.Options{Library: lib})
	require.NoError(t, err)

	net := collabtest.Network("Core")
	require.NoError(t, sess.Models.Put(ctx, &types.ModelRecord{
		ID:           "ecoli.draft",
		Network:      net,
		StageMarkers: []types.Stage{types.StageBuilt},
		Stats:        net.Stats(),
		Template:     "Core",
	}))

	m := metrics.New(prometheus.NewRegistry())
	gw := analysis.New(sess, solver, names{"cpd00027": "D-Glucose", "cpd00007": "O2"}, m, nil, analysis.Config{})
	return gw, sess, m
}

func TestAnalyze_Optimal(t *testing.T) {
	solver := &collabtest.Solver{}
	gw, _, m := setup(t, solver)

	res, err := gw.Analyze(context.Background(), "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{})
	require.NoError(t, err)

	assert.Equal(t, types.SolveOptimal, res.Status)
	assert.Equal(t, "bio1", res.Objective)
	assert.True(t, res.Maximize)
	// glucose 5 + oxygen 10 + ammonia capped at 100
	assert.InDelta(t, 1.15, res.ObjectiveValue, 1e-9)
	assert.InDelta(t, 1.15, res.Fluxes["bio1"], 1e-9)
	assert.NotContains(t, res.Fluxes, "rxn05226_c0", "zero fluxes are filtered")

	require.Len(t, res.Uptake, 3)
	assert.Equal(t, "EX_cpd00013_e0", res.Uptake[0].Reaction)
	assert.Equal(t, -100.0, res.Uptake[0].Flux)
	assert.Equal(t, "cpd00007", res.Uptake[1].Compound)
	assert.Equal(t, "O2", res.Uptake[1].Name)
	assert.Equal(t, "D-Glucose", res.Uptake[2].Name)
	assert.Empty(t, res.Secretion)
	assert.NotEmpty(t, res.Missing)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues("optimal")))
}

func TestAnalyze_WorksOnACopy(t *testing.T) {
	solver := &collabtest.Solver{}
	gw, sess, _ := setup(t, solver)
	ctx := context.Background()

	stored, err := sess.Models.Get(ctx, "ecoli.draft")
	require.NoError(t, err)
	before := stored.Stats
	exchange := *stored.Network.Reaction("EX_cpd00027_e0")

	first, err := gw.Analyze(ctx, "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{})
	require.NoError(t, err)
	second, err := gw.Analyze(ctx, "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{})
	require.NoError(t, err)

	assert.Equal(t, first.ObjectiveValue, second.ObjectiveValue)
	assert.Equal(t, first.Fluxes, second.Fluxes)
	assert.Equal(t, before, stored.Stats)
	assert.Equal(t, before, stored.Network.Stats())
	assert.Equal(t, exchange.Lower, stored.Network.Reaction("EX_cpd00027_e0").Lower)

	for _, net := range solver.Networks() {
		assert.NotSame(t, stored.Network, net)
	}
	assert.Equal(t, 1, sess.Models.Len())
}

func TestAnalyze_MediumRestrictsExchanges(t *testing.T) {
	solver := &collabtest.Solver{}
	gw, sess, _ := setup(t, solver)
	ctx := context.Background()
	require.NoError(t, sess.Media.Put(ctx, &types.MediaRecord{
		ID:     "glucose_only",
		Bounds: types.BoundsMap{"cpd00027": {Lower: -10, Upper: 100}, "cpd00007": {Lower: 0, Upper: 0}},
	}))

	res, err := gw.Analyze(ctx, "ecoli.draft", "glucose_only", analysis.Options{})
	require.NoError(t, err)
	require.Len(t, res.Uptake, 1)
	assert.Equal(t, -10.0, res.Uptake[0].Flux)
	assert.Empty(t, res.Missing)

	net := solver.Networks()[0]
	assert.Equal(t, 0.0, net.Reaction("EX_cpd00007_e0").Lower)
	assert.Equal(t, 0.0, net.Reaction("EX_cpd00013_e0").Lower, "compounds outside the medium cannot be taken up")
}

func TestAnalyze_NonOptimalStatusesAreResults(t *testing.T) {
	for _, status := range []types.SolveStatus{types.SolveInfeasible, types.SolveUnbounded} {
		t.Run(string(status), func(t *testing.T) {
			gw, sess, m := setup(t, &collabtest.Solver{Status: status})

			res, err := gw.Analyze(context.Background(), "ecoli.draft", "glucose_minimal_anaerobic", analysis.Options{})
			require.NoError(t, err)
			assert.Equal(t, status, res.Status)
			assert.Zero(t, res.ObjectiveValue)
			assert.Empty(t, res.Fluxes)
			assert.Equal(t, 1, sess.Models.Len())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyses.WithLabelValues(string(status))))
		})
	}
}

func TestAnalyze_Options(t *testing.T) {
	solver := &collabtest.Solver{}
	gw, _, _ := setup(t, solver)
	ctx := context.Background()

	minimize := false
	res, err := gw.Analyze(ctx, "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{
		Objective: "rxn05226_c0",
		Maximize:  &minimize,
	})
	require.NoError(t, err)
	assert.Equal(t, "rxn05226_c0", res.Objective)
	assert.False(t, res.Maximize)
	assert.Equal(t, "rxn05226_c0", solver.Networks()[0].Objective)

	res, err = gw.Analyze(ctx, "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{FluxThreshold: 50})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"EX_cpd00013_e0": -100}, res.Fluxes)
}

func TestAnalyze_Errors(t *testing.T) {
	gw, _, _ := setup(t, &collabtest.Solver{})
	ctx := context.Background()

	_, err := gw.Analyze(ctx, "missing", "glucose_minimal_aerobic", analysis.Options{})
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"ecoli.draft"}, nf.Known)

	_, err = gw.Analyze(ctx, "ecoli.draft", "missing", analysis.Options{})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = gw.Analyze(ctx, "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{Objective: "bio2"})
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "objective", ve.Field)
	assert.Contains(t, ve.Message, "bio2")

	_, err = gw.Analyze(ctx, "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{FluxThreshold: -1})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestAnalyze_SolverFailure(t *testing.T) {
	gw, _, _ := setup(t, &collabtest.Solver{Err: errors.New("connection refused")})

	_, err := gw.Analyze(context.Background(), "ecoli.draft", "glucose_minimal_aerobic", analysis.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCollaborator)
	assert.Contains(t, err.Error(), "connection refused")
}
