package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jplfaria/gem-flux-mcp/internal/bridge"
	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/internal/lifecycle"
	"github.com/jplfaria/gem-flux-mcp/internal/metrics"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// RefineStatus is the outcome of a refine call.
type RefineStatus string

const (
	RefineGapfilled  RefineStatus = "gapfilled"
	RefineNoSolution RefineStatus = "no_solution"
)

// RefineRequest describes a gapfilling run.
type RefineRequest struct {
	ModelID         string
	MediaID         string
	Target          string  // objective reaction; default: the network's objective
	MinGrowth       float64 // default: Config.MinGrowth
	ForceCorrection bool    // recompute test conditions even when inherited
	SkipCorrection  bool    // gapfill without a test battery (built -> gapfilled)
}

// CorrectionInfo reports how the correction stage was handled.
type CorrectionInfo struct {
	Ran            bool   `json:"ran"`
	Reused         bool   `json:"reused"`
	ConditionSetID string `json:"condition_set_id,omitempty"`
	OwnerID        string `json:"owner_id,omitempty"` // record holding the set
	Conditions     int    `json:"num_conditions"`
	Passed         int    `json:"passed"`
	Failed         int    `json:"failed"`

	// BatteryMissing lists, per battery medium, compounds the network has no
	// exchange for. Set only when correction ran.
	BatteryMissing map[string][]string `json:"battery_missing,omitempty"`
}

// RefineResult is the outcome of Refine. Model is nil when no solution was
// found; growth then stays at GrowthBefore.
type RefineResult struct {
	Status       RefineStatus             `json:"status"`
	Model        *types.ModelRecord       `json:"-"`
	SourceID     string                   `json:"source_model_id"`
	MediaID      string                   `json:"media_id"`
	Added        []types.AddedReaction    `json:"added_reactions"`
	GrowthBefore float64                  `json:"growth_rate_before"`
	GrowthAfter  float64                  `json:"growth_rate_after"`
	Correction   CorrectionInfo           `json:"correction"`
	Missing      []bridge.MissingCompound `json:"missing_compounds,omitempty"`
}

// Refine gapfills a stored model against a stored medium and stores the
// result as a new descendant record.
//
// When the lineage already holds a test condition set it is passed to the
// gapfiller as is and correction is skipped. Otherwise, or when forced,
// correction runs first and the single new record carries both stages and
// owns the new set. "No solution" is a normal result and stores nothing.
func (p *Pipeline) Refine(ctx context.Context, req RefineRequest) (*RefineResult, error) {
	parent, err := p.session.Models.Get(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	medium, err := p.session.Media.Get(ctx, req.MediaID)
	if err != nil {
		return nil, err
	}
	if req.ForceCorrection && req.SkipCorrection {
		return nil, &types.ValidationError{Field: "force_correction", Message: "cannot be combined with skip_correction"}
	}

	target := req.Target
	if target == "" {
		target = parent.Network.Objective
	}
	if !parent.Network.HasReaction(target) {
		return nil, &types.ValidationError{
			Field:   "target",
			Message: fmt.Sprintf("reaction %q is not in model %q", target, parent.ID),
		}
	}
	minGrowth := req.MinGrowth
	if minGrowth == 0 {
		minGrowth = p.cfg.MinGrowth
	}
	if minGrowth < 0 || math.IsNaN(minGrowth) || math.IsInf(minGrowth, 0) {
		return nil, &types.ValidationError{Field: "min_growth", Message: "must be a non-negative number"}
	}
	if err := bridge.ValidateBounds(medium.Bounds); err != nil {
		return nil, err
	}

	result := &RefineResult{SourceID: parent.ID, MediaID: medium.ID, Added: []types.AddedReaction{}}
	working := parent.Network.Clone()

	stages := []types.Stage{types.StageGapfilled}
	var conditions *types.TestConditionSet // inherited or newly created
	var owned *types.TestConditionSet      // newly created, stored on the new record

	if !req.SkipCorrection {
		if !req.ForceCorrection {
			if set, owner, ok := p.FindTestConditions(ctx, parent); ok {
				conditions = set
				result.Correction = correctionInfo(set, owner, false)
				result.Correction.Reused = true
				p.metrics.ReusedCorrection()
				p.metrics.ObserveStage(string(types.StageCorrected), metrics.OutcomeSkipped, 0)
				p.logger.Debug("reusing test conditions",
					zap.String("model_id", parent.ID),
					zap.String("owner_id", owner),
					zap.String("condition_set_id", set.ID))
			}
		}
		if conditions == nil {
			res, missing, err := p.correct(ctx, working)
			if err != nil {
				return nil, err
			}
			working = res.Network
			owned = p.conditionSet(res, p.session.Now())
			conditions = owned
			stages = []types.Stage{types.StageCorrected, types.StageGapfilled}
			result.Correction = correctionInfo(owned, "", true)
			result.Correction.BatteryMissing = missing
		}
	}

	sm := bridge.ToSolverMedium(ctx, working, medium.Bounds, p.cfg.DefaultUptake, p.names)
	result.Missing = sm.Missing

	gapReq := collab.GapfillRequest{
		Network:   working,
		Medium:    collab.Medium{ID: medium.ID, Uptake: sm.Uptake},
		Target:    target,
		MinGrowth: minGrowth,
	}
	if conditions != nil {
		gapReq.Conditions = conditions.Conditions
	}

	var solution *collab.GapfillSolution
	err = p.runStage(ctx, types.StageGapfilled, func(ctx context.Context) (string, error) {
		sol, err := p.gapfiller.Gapfill(ctx, gapReq)
		if err != nil {
			return metrics.OutcomeError, err
		}
		solution = sol
		if !sol.Found {
			return metrics.OutcomeNoSolution, nil
		}
		return metrics.OutcomeOK, nil
	})
	if err != nil {
		return nil, err
	}

	result.GrowthBefore = solution.GrowthBefore
	if !solution.Found {
		result.Status = RefineNoSolution
		result.GrowthAfter = solution.GrowthBefore
		p.logger.Info("gapfilling found no solution",
			zap.String("model_id", parent.ID),
			zap.String("media_id", medium.ID))
		return result, nil
	}

	added, err := p.integrate(working, parent.Template, solution.Added)
	if err != nil {
		return nil, err
	}
	result.Added = added
	result.GrowthAfter = solution.GrowthAfter

	id, markers, err := lifecycle.Chain(parent, stages...)
	if err != nil {
		return nil, err
	}
	now := p.session.Now()
	rec, err := p.put(ctx, id, markers, func(id string) *types.ModelRecord {
		return &types.ModelRecord{
			ID:             id,
			Network:        working,
			ParentID:       parent.ID,
			StageMarkers:   markers,
			Stats:          working.Stats(),
			Template:       parent.Template,
			TestConditions: owned,
			CreatedAt:      now,
		}
	})
	if err != nil {
		return nil, err
	}
	if owned != nil {
		result.Correction.OwnerID = rec.ID
	}
	result.Status = RefineGapfilled
	result.Model = rec

	p.metrics.SetRecords(p.session.Models.Len(), p.session.Media.Len())
	p.logger.Info("model gapfilled",
		zap.String("model_id", rec.ID),
		zap.String("parent_id", parent.ID),
		zap.String("media_id", medium.ID),
		zap.Int("added", len(added)),
		zap.Bool("correction_ran", result.Correction.Ran))
	return result, nil
}

func correctionInfo(set *types.TestConditionSet, owner string, ran bool) CorrectionInfo {
	return CorrectionInfo{
		Ran:            ran,
		ConditionSetID: set.ID,
		OwnerID:        owner,
		Conditions:     len(set.Conditions),
		Passed:         set.Passed,
		Failed:         set.Failed,
	}
}

// integrate applies a gapfilling solution to net, which must be a private
// copy. Reactions already present are widened; new ones are resolved from the
// template through the compartment bridge.
func (p *Pipeline) integrate(net *types.Network, template string, additions []collab.Addition) ([]types.AddedReaction, error) {
	out := make([]types.AddedReaction, 0, len(additions))
	for _, a := range additions {
		lower, upper, err := bridge.DirectionBounds(a.Direction)
		if err != nil {
			return nil, &types.CollaboratorError{
				Collaborator: "gapfiller", Op: "integrate",
				Err: fmt.Errorf("reaction %s: %w", a.ID, err),
			}
		}
		id := bridge.AddCompartmentIndex(a.ID)

		if existing := net.Reaction(id); existing != nil {
			existing.Lower, existing.Upper = bridge.Widen(existing.Lower, existing.Upper, lower, upper)
			out = append(out, types.AddedReaction{
				ID:        id,
				Name:      existing.Name,
				Direction: bridge.BoundsDirection(existing.Lower, existing.Upper),
				Lower:     existing.Lower,
				Upper:     existing.Upper,
			})
			continue
		}

		rxn, mets, err := p.resolve(template, id, a)
		if err != nil {
			return nil, err
		}
		rxn.Lower, rxn.Upper = lower, upper
		net.AddReaction(rxn, mets)
		out = append(out, types.AddedReaction{
			ID:        id,
			Name:      rxn.Name,
			Direction: a.Direction,
			Lower:     lower,
			Upper:     upper,
			New:       true,
		})
	}
	return out, nil
}

// resolve finds the definition of an added reaction: the template first, then
// the definition carried by the solution, then the implicit exchange form.
func (p *Pipeline) resolve(template, id string, a collab.Addition) (*types.Reaction, []*types.Metabolite, error) {
	if p.catalog != nil {
		if rxn, mets, ok := p.catalog.TemplateReaction(template, bridge.StripCompartmentIndex(id)); ok {
			if rxn.Name == "" {
				rxn.Name = a.Name
			}
			return rxn, mets, nil
		}
	}

	stoich := a.Stoichiometry
	if len(stoich) == 0 && strings.HasPrefix(id, types.ExchangePrefix) {
		stoich = map[string]float64{strings.TrimPrefix(id, types.ExchangePrefix): -1}
	}
	if len(stoich) == 0 {
		return nil, nil, &types.CollaboratorError{
			Collaborator: "gapfiller", Op: "integrate",
			Err: fmt.Errorf("reaction %s is not in template %q and has no definition", id, template),
		}
	}

	rxn := &types.Reaction{ID: id, Name: a.Name, Stoichiometry: make(map[string]float64, len(stoich))}
	ids := make([]string, 0, len(stoich))
	for met := range stoich {
		ids = append(ids, met)
	}
	sort.Strings(ids)
	mets := make([]*types.Metabolite, 0, len(stoich))
	for _, met := range ids {
		indexed := bridge.AddCompartmentIndex(met)
		rxn.Stoichiometry[indexed] = stoich[met]
		mets = append(mets, &types.Metabolite{ID: indexed, Compartment: bridge.Compartment(indexed)})
	}
	return rxn, mets, nil
}
