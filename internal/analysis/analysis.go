// Package analysis runs flux balance analysis on stored models. It never
// writes to the session: every request works on a disposable copy of the
// stored network.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jplfaria/gem-flux-mcp/internal/bridge"
	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/internal/metrics"
	"github.com/jplfaria/gem-flux-mcp/internal/session"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// DefaultObjective is used when neither the request nor the network names one.
const DefaultObjective = "bio1"

// Config holds analysis settings.
type Config struct {
	FluxThreshold float64
	DefaultUptake float64
}

// Options tune a single analysis.
type Options struct {
	Objective     string
	Maximize      *bool   // nil means maximize
	FluxThreshold float64 // 0 uses Config.FluxThreshold
}

// ExchangeFlux is a nonzero flux through an exchange reaction.
type ExchangeFlux struct {
	Reaction string  `json:"reaction_id"`
	Compound string  `json:"compound_id"`
	Name     string  `json:"compound_name,omitempty"`
	Flux     float64 `json:"flux"`
}

// Result is the outcome of Analyze. Infeasible and unbounded solutions are
// results too; they carry no fluxes.
type Result struct {
	ModelID        string                   `json:"model_id"`
	MediaID        string                   `json:"media_id"`
	Objective      string                   `json:"objective"`
	Maximize       bool                     `json:"maximize"`
	Status         types.SolveStatus        `json:"status"`
	ObjectiveValue float64                  `json:"objective_value"`
	Fluxes         map[string]float64       `json:"fluxes"`
	Uptake         []ExchangeFlux           `json:"uptake_fluxes"`
	Secretion      []ExchangeFlux           `json:"secretion_fluxes"`
	Missing        []bridge.MissingCompound `json:"missing_compounds,omitempty"`
}

// Gateway delegates optimization of stored models to a solver.
type Gateway struct {
	session *session.Session
	solver  collab.Solver
	names   bridge.CompoundNamer
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     Config
}

// New creates a Gateway. names, m and logger may be nil.
func New(sess *session.Session, solver collab.Solver, names bridge.CompoundNamer, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Gateway {
	if cfg.FluxThreshold <= 0 {
		cfg.FluxThreshold = 1e-6
	}
	if cfg.DefaultUptake <= 0 {
		cfg.DefaultUptake = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{session: sess, solver: solver, names: names, metrics: m, logger: logger, cfg: cfg}
}

// Analyze optimizes the objective of a stored model on a stored medium.
func (g *Gateway) Analyze(ctx context.Context, modelID, mediaID string, opts Options) (*Result, error) {
	model, err := g.session.Models.Get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	medium, err := g.session.Media.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	objective := opts.Objective
	if objective == "" {
		objective = model.Network.Objective
	}
	if objective == "" {
		objective = DefaultObjective
	}
	if !model.Network.HasReaction(objective) {
		return nil, &types.ValidationError{
			Field:   "objective",
			Message: fmt.Sprintf("reaction %q is not in model %q", objective, model.ID),
		}
	}
	threshold := opts.FluxThreshold
	if threshold == 0 {
		threshold = g.cfg.FluxThreshold
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, &types.ValidationError{Field: "flux_threshold", Message: "must be a non-negative number"}
	}
	maximize := opts.Maximize == nil || *opts.Maximize

	working := model.Network.Clone()
	sm := bridge.ToSolverMedium(ctx, working, medium.Bounds, g.cfg.DefaultUptake, g.names)
	working.ApplyUptake(sm.Uptake)
	working.Objective = objective

	sol, err := g.solver.Optimize(ctx, collab.SolveRequest{Network: working, Objective: objective, Maximize: maximize})
	if err != nil {
		g.metrics.ObserveAnalysis(metrics.OutcomeError)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, types.ErrCollaborator) || errors.Is(err, types.ErrReconstruction) {
			return nil, err
		}
		return nil, &types.CollaboratorError{Collaborator: "solver", Op: "optimize", Err: err}
	}
	if sol == nil || !types.IsValidSolveStatus(sol.Status) {
		g.metrics.ObserveAnalysis(metrics.OutcomeError)
		return nil, &types.CollaboratorError{Collaborator: "solver", Op: "optimize", Err: errors.New("no usable solution returned")}
	}

	result := &Result{
		ModelID:   model.ID,
		MediaID:   medium.ID,
		Objective: objective,
		Maximize:  maximize,
		Status:    sol.Status,
		Fluxes:    map[string]float64{},
		Uptake:    []ExchangeFlux{},
		Secretion: []ExchangeFlux{},
		Missing:   sm.Missing,
	}
	if sol.Status == types.SolveOptimal {
		result.ObjectiveValue = sol.ObjectiveValue
		g.splitFluxes(ctx, result, sol.Fluxes, threshold)
	}

	g.metrics.ObserveAnalysis(string(sol.Status))
	g.logger.Debug("analysis finished",
		zap.String("model_id", model.ID),
		zap.String("media_id", medium.ID),
		zap.String("status", string(sol.Status)),
		zap.Float64("objective_value", result.ObjectiveValue))
	return result, nil
}

// splitFluxes keeps fluxes above threshold and sorts exchange fluxes into
// uptake (negative) and secretion (positive), largest magnitude first.
func (g *Gateway) splitFluxes(ctx context.Context, result *Result, fluxes map[string]float64, threshold float64) {
	for id, v := range fluxes {
		if math.Abs(v) <= threshold {
			continue
		}
		result.Fluxes[id] = v
		if !strings.HasPrefix(id, types.ExchangePrefix) {
			continue
		}
		ex := ExchangeFlux{Reaction: id, Compound: compoundOf(id), Flux: v}
		if g.names != nil {
			if name, err := g.names.CompoundName(ctx, ex.Compound); err == nil {
				ex.Name = name
			}
		}
		if v < 0 {
			result.Uptake = append(result.Uptake, ex)
		} else {
			result.Secretion = append(result.Secretion, ex)
		}
	}
	byMagnitude := func(list []ExchangeFlux) {
		sort.Slice(list, func(i, j int) bool {
			a, b := math.Abs(list[i].Flux), math.Abs(list[j].Flux)
			if a != b {
				return a > b
			}
			return list[i].Reaction < list[j].Reaction
		})
	}
	byMagnitude(result.Uptake)
	byMagnitude(result.Secretion)
}

// compoundOf returns the bare compound id of an exchange reaction id:
// EX_cpd00027_e0 -> cpd00027.
func compoundOf(exchangeID string) string {
	id := strings.TrimPrefix(exchangeID, types.ExchangePrefix)
	if i := strings.IndexByte(id, '_'); i > 0 {
		return id[:i]
	}
	return id
}
