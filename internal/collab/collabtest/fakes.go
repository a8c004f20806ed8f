// Package collabtest provides in-memory collaborators for tests.
package collabtest

import (
	"context"
	"sort"
	"sync"

	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// Corrector records calls and produces one passing test condition per
// battery medium.
type Corrector struct {
	Err error

	mu    sync.Mutex
	calls int
}

// Correct implements collab.Corrector.
func (c *Corrector) Correct(ctx context.Context, net *types.Network, battery []collab.Medium) (*collab.CorrectionResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	out := &collab.CorrectionResult{Network: net.Clone()}
	for _, m := range battery {
		out.Conditions = append(out.Conditions, types.TestCondition{
			MediaID:      m.ID,
			Target:       "rxn00062_c0",
			MinObjective: 0.01,
		})
	}
	out.Passed = len(out.Conditions)
	return out, nil
}

// Calls returns the number of Correct invocations.
func (c *Corrector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Gapfiller returns a fixed solution. When NoSolution is true it reports
// "no solution" instead. Every request is kept for inspection.
type Gapfiller struct {
	Added      []collab.Addition
	NoSolution bool
	Growth     float64
	Err        error

	mu       sync.Mutex
	requests []collab.GapfillRequest
}

// Gapfill implements collab.Gapfiller.
func (g *Gapfiller) Gapfill(ctx context.Context, req collab.GapfillRequest) (*collab.GapfillSolution, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Err != nil {
		return nil, g.Err
	}
	if g.NoSolution {
		return &collab.GapfillSolution{Found: false}, nil
	}
	growth := g.Growth
	if growth == 0 {
		growth = 0.5
	}
	return &collab.GapfillSolution{
		Found:       true,
		Added:       append([]collab.Addition(nil), g.Added...),
		GrowthAfter: growth,
	}, nil
}

// Requests returns the requests received so far.
func (g *Gapfiller) Requests() []collab.GapfillRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]collab.GapfillRequest(nil), g.requests...)
}

// Solver returns Status for every request. For optimal solutions every
// reaction carries a flux derived from its bounds, so results are a pure
// function of the network.
type Solver struct {
	Status types.SolveStatus
	Err    error

	mu       sync.Mutex
	networks []*types.Network
}

// Optimize implements collab.Solver.
func (s *Solver) Optimize(ctx context.Context, req collab.SolveRequest) (*collab.Solution, error) {
	s.mu.Lock()
	s.networks = append(s.networks, req.Network)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	status := s.Status
	if status == "" {
		status = types.SolveOptimal
	}
	if status != types.SolveOptimal {
		return &collab.Solution{Status: status}, nil
	}

	fluxes := make(map[string]float64, len(req.Network.Reactions))
	var uptake float64
	for _, r := range req.Network.Reactions {
		switch {
		case r.IsExchange() && r.Lower < 0:
			fluxes[r.ID] = r.Lower
			uptake -= r.Lower
		case r.IsExchange():
			fluxes[r.ID] = r.Upper / 1000
		default:
			fluxes[r.ID] = 0
		}
	}
	value := uptake / 100
	if !req.Maximize {
		value = 0
	}
	fluxes[req.Objective] = value
	return &collab.Solution{Status: status, ObjectiveValue: value, Fluxes: fluxes}, nil
}

// Networks returns the networks passed to Optimize.
func (s *Solver) Networks() []*types.Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.Network(nil), s.networks...)
}

// Reconstructor returns a small fixed network for any genome with features.
type Reconstructor struct {
	Err error
}

// BuildDraft implements collab.Reconstructor.
func (r *Reconstructor) BuildDraft(ctx context.Context, genome *types.Genome, template string) (*types.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if genome == nil || len(genome.Features) == 0 {
		return nil, &types.ReconstructionError{Stage: types.StageBuilt, Message: "genome has no features"}
	}
	return Network(template), nil
}

// Network builds a tiny network with glucose, oxygen and ammonia exchanges
// and a biomass reaction.
func Network(template string) *types.Network {
	mets := []*types.Metabolite{
		{ID: "cpd00027_e0", Name: "D-Glucose", Compartment: "e"},
		{ID: "cpd00027_c0", Name: "D-Glucose", Compartment: "c"},
		{ID: "cpd00007_e0", Name: "O2", Compartment: "e"},
		{ID: "cpd00013_e0", Name: "NH3", Compartment: "e"},
	}
	return &types.Network{
		ID:          "fake",
		Template:    template,
		Objective:   "bio1",
		Metabolites: mets,
		Genes:       []string{"peg.1"},
		Reactions: []*types.Reaction{
			{ID: "rxn05226_c0", Stoichiometry: map[string]float64{"cpd00027_e0": -1, "cpd00027_c0": 1}, Lower: 0, Upper: 1000, GeneRule: "peg.1"},
			{ID: "bio1", Stoichiometry: map[string]float64{"cpd00027_c0": -1}, Lower: 0, Upper: 1000},
			{ID: "EX_cpd00027_e0", Stoichiometry: map[string]float64{"cpd00027_e0": -1}, Lower: -1000, Upper: 1000},
			{ID: "EX_cpd00007_e0", Stoichiometry: map[string]float64{"cpd00007_e0": -1}, Lower: -1000, Upper: 1000},
			{ID: "EX_cpd00013_e0", Stoichiometry: map[string]float64{"cpd00013_e0": -1}, Lower: -1000, Upper: 1000},
		},
	}
}

// Catalog is a TemplateCatalog over a fixed set of template reactions.
type Catalog struct {
	Reactions map[string]*types.Reaction // template-form id -> reaction (indexed ids)
}

// Templates implements collab.TemplateCatalog.
func (c *Catalog) Templates() []collab.TemplateInfo {
	return []collab.TemplateInfo{{ID: "Core", Reactions: len(c.Reactions), Biomass: "bio1"}}
}

// TemplateReaction implements collab.TemplateCatalog.
func (c *Catalog) TemplateReaction(template, id string) (*types.Reaction, []*types.Metabolite, bool) {
	r, ok := c.Reactions[id]
	if !ok {
		return nil, nil, false
	}
	cp := *r
	cp.Stoichiometry = make(map[string]float64, len(r.Stoichiometry))
	ids := make([]string, 0, len(r.Stoichiometry))
	for k, v := range r.Stoichiometry {
		cp.Stoichiometry[k] = v
		ids = append(ids, k)
	}
	sort.Strings(ids)
	mets := make([]*types.Metabolite, 0, len(ids))
	for _, id := range ids {
		mets = append(mets, &types.Metabolite{ID: id})
	}
	return &cp, mets, true
}
