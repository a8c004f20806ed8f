// Package collab declares the narrow contracts of the external collaborators
// the pipeline delegates numerical work to: draft reconstruction, correction,
// gapfilling and optimization.
package collab

import (
	"context"

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// TemplateInfo describes a reconstruction template.
type TemplateInfo struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Reactions   int    `json:"num_reactions"`
	Biomass     string `json:"biomass_reaction"`
}

// Reconstructor turns an annotated genome into a draft network.
type Reconstructor interface {
	BuildDraft(ctx context.Context, genome *types.Genome, template string) (*types.Network, error)
}

// TemplateCatalog resolves template reaction definitions. Ids are in template
// form (compartment letter without index).
type TemplateCatalog interface {
	Templates() []TemplateInfo
	TemplateReaction(template, id string) (*types.Reaction, []*types.Metabolite, bool)
}

// Medium is a medium in solver form.
type Medium struct {
	ID     string             `json:"id"`
	Uptake map[string]float64 `json:"uptake"` // exchange reaction id -> positive uptake magnitude
}

// CorrectionResult is the output of a correction run.
type CorrectionResult struct {
	Network    *types.Network        `json:"network"`
	Conditions []types.TestCondition `json:"conditions"`
	Passed     int                   `json:"passed"`
	Failed     int                   `json:"failed"`
}

// Corrector tests energy metabolism across a battery of media and returns the
// corrected network with the resulting test conditions.
type Corrector interface {
	Correct(ctx context.Context, net *types.Network, battery []Medium) (*CorrectionResult, error)
}

// GapfillRequest is the input of a gapfilling run. Conditions is nil when no
// test battery is available.
type GapfillRequest struct {
	Network    *types.Network        `json:"network"`
	Medium     Medium                `json:"medium"`
	Conditions []types.TestCondition `json:"conditions,omitempty"`
	Target     string                `json:"target"`
	MinGrowth  float64               `json:"min_growth"`
}

// Addition is one reaction reported by a gapfilling solution. Stoichiometry
// is only set when the reaction is not part of the model's template.
type Addition struct {
	ID            string             `json:"id"`
	Direction     types.Direction    `json:"direction"`
	Name          string             `json:"name,omitempty"`
	Stoichiometry map[string]float64 `json:"stoichiometry,omitempty"`
}

// GapfillSolution is the outcome of a gapfilling run. Found is false when no
// feasible solution exists; that is a normal result, not an error.
type GapfillSolution struct {
	Found        bool       `json:"found"`
	Added        []Addition `json:"added"`
	GrowthBefore float64    `json:"growth_before"`
	GrowthAfter  float64    `json:"growth_after"`
}

// Gapfiller searches for reactions that let a network reach the target growth.
type Gapfiller interface {
	Gapfill(ctx context.Context, req GapfillRequest) (*GapfillSolution, error)
}

// SolveRequest is the input of an optimization. The network's exchange bounds
// already encode the medium.
type SolveRequest struct {
	Network   *types.Network `json:"network"`
	Objective string         `json:"objective"`
	Maximize  bool           `json:"maximize"`
}

// Solution is the outcome of an optimization. Infeasible and unbounded are
// statuses, not errors.
type Solution struct {
	Status         types.SolveStatus  `json:"status"`
	ObjectiveValue float64            `json:"objective_value"`
	Fluxes         map[string]float64 `json:"fluxes"`
}

// Solver optimizes a network for an objective.
type Solver interface {
	Optimize(ctx context.Context, req SolveRequest) (*Solution, error)
}
