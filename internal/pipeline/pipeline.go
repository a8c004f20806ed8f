// Package pipeline orchestrates the staged build of model records: draft
// reconstruction, energy-metabolism correction and gapfilling. Each stage
// produces a new record; stored records are never modified.
//
// The correction stage is expensive. Its output, a test condition set, is
// attached to the record that produced it and reused by reference by every
// gapfilling descendant found through the parent_id lineage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jplfaria/gem-flux-mcp/internal/bridge"
	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/internal/idgen"
	"github.com/jplfaria/gem-flux-mcp/internal/lifecycle"
	"github.com/jplfaria/gem-flux-mcp/internal/metrics"
	"github.com/jplfaria/gem-flux-mcp/internal/session"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// Config holds pipeline settings.
type Config struct {
	StageTimeout    time.Duration // 0 disables
	MaxLineageDepth int
	DefaultTemplate string
	DefaultUptake   float64
	MinGrowth       float64
	CorrectionMedia []string // media ids forming the correction battery
}

// Deps are the collaborators the pipeline delegates to.
type Deps struct {
	Reconstructor collab.Reconstructor
	Catalog       collab.TemplateCatalog
	Corrector     collab.Corrector
	Gapfiller     collab.Gapfiller
	Names         bridge.CompoundNamer // optional
	Metrics       *metrics.Metrics     // optional
	Logger        *zap.Logger          // optional
}

// Pipeline runs build and refine requests against one session.
type Pipeline struct {
	session       *session.Session
	reconstructor collab.Reconstructor
	catalog       collab.TemplateCatalog
	corrector     collab.Corrector
	gapfiller     collab.Gapfiller
	names         bridge.CompoundNamer
	metrics       *metrics.Metrics
	logger        *zap.Logger
	cfg           Config
}

// New creates a Pipeline. Zero config values take defaults.
func New(sess *session.Session, deps Deps, cfg Config) *Pipeline {
	if cfg.MaxLineageDepth <= 0 {
		cfg.MaxLineageDepth = 64
	}
	if cfg.DefaultTemplate == "" {
		cfg.DefaultTemplate = "Core"
	}
	if cfg.DefaultUptake <= 0 {
		cfg.DefaultUptake = 100
	}
	if cfg.MinGrowth <= 0 {
		cfg.MinGrowth = 0.01
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		session:       sess,
		reconstructor: deps.Reconstructor,
		catalog:       deps.Catalog,
		corrector:     deps.Corrector,
		gapfiller:     deps.Gapfiller,
		names:         deps.Names,
		metrics:       deps.Metrics,
		logger:        logger,
		cfg:           cfg,
	}
}

// BuildRequest describes a draft reconstruction.
type BuildRequest struct {
	Genome    *types.Genome
	Template  string // default: Config.DefaultTemplate
	ModelName string // requested base name; a taken name falls back to a synthesized id
	Correct   bool   // run the correction stage right after the draft
}

// BuildResult holds the records created by Build. Corrected is nil unless
// correction was requested.
type BuildResult struct {
	Draft     *types.ModelRecord
	Corrected *types.ModelRecord

	// BatteryMissing lists, per battery medium, compounds the draft has no
	// exchange for. Set only when correction ran.
	BatteryMissing map[string][]string
}

// Build reconstructs a draft from a genome and stores it. With Correct set,
// a corrected descendant owning a new test condition set is stored as well.
// Any failure leaves the store untouched; a stored draft is removed again
// when its corrected descendant cannot be stored.
func (p *Pipeline) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	base := strings.TrimSuffix(strings.TrimSpace(req.ModelName), "."+types.StageBuilt.Marker())
	if strings.ContainsAny(base, " \t\r\n/") {
		return nil, &types.ValidationError{Field: "model_name", Message: "must not contain whitespace or '/'"}
	}
	template := req.Template
	if template == "" {
		template = p.cfg.DefaultTemplate
	}

	var draftNet *types.Network
	err := p.runStage(ctx, types.StageBuilt, func(ctx context.Context) (string, error) {
		net, err := p.reconstructor.BuildDraft(ctx, req.Genome, template)
		if err != nil {
			return metrics.OutcomeError, err
		}
		draftNet = net
		return metrics.OutcomeOK, nil
	})
	if err != nil {
		return nil, err
	}
	if draftNet.Template == "" {
		draftNet.Template = template
	}

	var (
		correction *collab.CorrectionResult
		missing    map[string][]string
	)
	if req.Correct {
		correction, missing, err = p.correct(ctx, draftNet.Clone())
		if err != nil {
			return nil, err
		}
	}

	now := p.session.Now()
	preferred := ""
	if base != "" {
		preferred = lifecycle.DraftID(base)
	}
	draftMarkers := []types.Stage{types.StageBuilt}
	draft, err := p.put(ctx, preferred, draftMarkers, func(id string) *types.ModelRecord {
		return &types.ModelRecord{
			ID:           id,
			Network:      draftNet,
			StageMarkers: draftMarkers,
			Stats:        draftNet.Stats(),
			Template:     template,
			CreatedAt:    now,
		}
	})
	if err != nil {
		return nil, err
	}
	result := &BuildResult{Draft: draft, BatteryMissing: missing}

	if correction != nil {
		id, markers, err := lifecycle.Transition(draft, types.StageCorrected)
		if err != nil {
			return nil, p.discard(ctx, draft.ID, err)
		}
		conditions := p.conditionSet(correction, now)
		result.Corrected, err = p.put(ctx, id, markers, func(id string) *types.ModelRecord {
			return &types.ModelRecord{
				ID:             id,
				Network:        correction.Network,
				ParentID:       draft.ID,
				StageMarkers:   markers,
				Stats:          correction.Network.Stats(),
				Template:       template,
				TestConditions: conditions,
				CreatedAt:      now,
			}
		})
		if err != nil {
			return nil, p.discard(ctx, draft.ID, err)
		}
	}

	p.metrics.SetRecords(p.session.Models.Len(), p.session.Media.Len())
	p.logger.Info("model built",
		zap.String("model_id", draft.ID),
		zap.String("template", template),
		zap.Int("reactions", draft.Stats.Reactions),
		zap.Bool("corrected", result.Corrected != nil))
	return result, nil
}

// discard removes a record stored earlier in a request that failed with
// cause. The removal runs even when ctx is already cancelled.
func (p *Pipeline) discard(ctx context.Context, id string, cause error) error {
	if err := p.session.Models.Delete(context.WithoutCancel(ctx), id); err != nil {
		p.logger.Error("failed to remove partial build",
			zap.String("model_id", id),
			zap.Error(err))
		return fmt.Errorf("%w (draft %s left in session: %v)", cause, id, err)
	}
	p.logger.Warn("build failed after storing draft, draft removed",
		zap.String("model_id", id),
		zap.Error(cause))
	return cause
}

// FindTestConditions walks the parent_id lineage of rec, rec included, and
// returns the first test condition set found together with the id of the
// record that owns it. A missing ancestor ends the walk; so does the depth
// limit.
func (p *Pipeline) FindTestConditions(ctx context.Context, rec *types.ModelRecord) (*types.TestConditionSet, string, bool) {
	cur := rec
	for depth := 0; depth < p.cfg.MaxLineageDepth; depth++ {
		if cur.TestConditions != nil {
			return cur.TestConditions, cur.ID, true
		}
		if cur.ParentID == "" {
			return nil, "", false
		}
		parent, err := p.session.Models.Get(ctx, cur.ParentID)
		if err != nil {
			p.logger.Debug("lineage walk ended at missing ancestor",
				zap.String("model_id", rec.ID),
				zap.String("missing", cur.ParentID))
			return nil, "", false
		}
		cur = parent
	}
	p.logger.Warn("lineage walk hit depth limit",
		zap.String("model_id", rec.ID),
		zap.Int("max_depth", p.cfg.MaxLineageDepth))
	return nil, "", false
}

// correct runs the correction stage over the configured battery. The map
// returned lists battery compounds net has no exchange for, by medium.
func (p *Pipeline) correct(ctx context.Context, net *types.Network) (*collab.CorrectionResult, map[string][]string, error) {
	battery, missing, err := p.battery(ctx, net)
	if err != nil {
		return nil, nil, err
	}

	var result *collab.CorrectionResult
	err = p.runStage(ctx, types.StageCorrected, func(ctx context.Context) (string, error) {
		res, err := p.corrector.Correct(ctx, net, battery)
		if err != nil {
			return metrics.OutcomeError, err
		}
		if res == nil || res.Network == nil {
			return metrics.OutcomeError, &types.CollaboratorError{
				Collaborator: "corrector", Op: "correct",
				Err: errors.New("no corrected network returned"),
			}
		}
		result = res
		return metrics.OutcomeOK, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, missing, nil
}

// battery converts the correction media to solver form against net.
// Compounds without an exchange in net are logged and returned by medium id.
func (p *Pipeline) battery(ctx context.Context, net *types.Network) ([]collab.Medium, map[string][]string, error) {
	out := make([]collab.Medium, 0, len(p.cfg.CorrectionMedia))
	var missing map[string][]string
	for _, id := range p.cfg.CorrectionMedia {
		m, err := p.session.Media.Get(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("correction battery: %w", err)
		}
		sm := bridge.ToSolverMedium(ctx, net, m.Bounds, p.cfg.DefaultUptake, nil)
		out = append(out, collab.Medium{ID: m.ID, Uptake: sm.Uptake})
		if len(sm.Missing) == 0 {
			continue
		}
		ids := make([]string, 0, len(sm.Missing))
		for _, mc := range sm.Missing {
			ids = append(ids, mc.ID)
		}
		if missing == nil {
			missing = make(map[string][]string)
		}
		missing[m.ID] = ids
		p.logger.Warn("battery medium compounds have no exchange reaction",
			zap.String("media_id", m.ID),
			zap.Strings("compounds", ids))
	}
	return out, missing, nil
}

func (p *Pipeline) conditionSet(res *collab.CorrectionResult, now time.Time) *types.TestConditionSet {
	return &types.TestConditionSet{
		ID:         uuid.NewString(),
		Conditions: append([]types.TestCondition(nil), res.Conditions...),
		Passed:     res.Passed,
		Failed:     res.Failed,
		CreatedAt:  now,
	}
}

// put stores the record built for preferred, falling back to synthesized ids
// carrying the marker chain when the id is taken. A writer that grabs a
// synthesized id between generation and Put costs one retry.
func (p *Pipeline) put(ctx context.Context, preferred string, markers []types.Stage, build func(id string) *types.ModelRecord) (*types.ModelRecord, error) {
	models := p.session.Models
	if preferred != "" {
		rec := build(preferred)
		err := models.Put(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, types.ErrCollision) {
			return nil, err
		}
		p.logger.Debug("model id taken, synthesizing", zap.String("requested", preferred))
	}

	chain := lifecycle.MarkerChain(markers)
	retries := p.session.IDs.Retries()
	for attempt := 0; attempt < retries; attempt++ {
		id, err := p.session.IDs.Synthesize(idgen.KindModel, chain, models.Has)
		if err != nil {
			return nil, err
		}
		rec := build(id)
		err = models.Put(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, types.ErrCollision) {
			return nil, err
		}
	}
	return nil, &types.StorageCollisionError{Kind: string(idgen.KindModel), Attempts: retries}
}

// runStage applies the stage timeout, records metrics and normalizes
// collaborator errors.
func (p *Pipeline) runStage(ctx context.Context, stage types.Stage, fn func(context.Context) (string, error)) error {
	stageCtx := ctx
	if p.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.cfg.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := fn(stageCtx)
	elapsed := time.Since(start)
	p.metrics.ObserveStage(string(stage), outcome, elapsed)

	if err == nil {
		p.logger.Debug("stage finished",
			zap.String("stage", string(stage)),
			zap.String("outcome", outcome),
			zap.Duration("duration", elapsed))
		return nil
	}

	p.logger.Warn("stage failed",
		zap.String("stage", string(stage)),
		zap.Duration("duration", elapsed),
		zap.Error(err))

	switch {
	case errors.Is(err, types.ErrReconstruction), errors.Is(err, types.ErrCollaborator), errors.Is(err, types.ErrValidation):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return &types.CollaboratorError{
			Collaborator: string(stage) + " stage",
			Op:           "run",
			Err:          fmt.Errorf("timed out after %s: %w", p.cfg.StageTimeout, err),
		}
	case stage == types.StageBuilt:
		return &types.ReconstructionError{Stage: stage, Message: err.Error(), Err: err}
	default:
		return &types.CollaboratorError{Collaborator: string(stage) + " stage", Op: "run", Err: err}
	}
}
