package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jplfaria/gem-flux-mcp/internal/analysis"
	"github.com/jplfaria/gem-flux-mcp/internal/biochem"
	"github.com/jplfaria/gem-flux-mcp/internal/bridge"
	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/internal/idgen"
	"github.com/jplfaria/gem-flux-mcp/internal/lifecycle"
	"github.com/jplfaria/gem-flux-mcp/internal/metrics"
	"github.com/jplfaria/gem-flux-mcp/internal/pipeline"
	"github.com/jplfaria/gem-flux-mcp/internal/session"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"

// biochemistry is the subset of *biochem.Database used by the MCP server.
// Using an interface keeps the MCP package loosely coupled and testable.
type biochemistry interface {
	Compound(ctx context.Context, id string) (*biochem.Compound, error)
	CompoundName(ctx context.Context, id string) (string, error)
	Reaction(ctx context.Context, id string) (*biochem.Reaction, error)
	SearchCompounds(ctx context.Context, query string, limit int) ([]biochem.Compound, error)
	SearchReactions(ctx context.Context, query string, limit int) ([]biochem.Reaction, error)
}

// toolHandler decodes raw params and runs one tool.
type toolHandler func(ctx context.Context, params interface{}) (interface{}, error)

// Server implements the Model Context Protocol (MCP) for GEM-Flux.
// It provides JSON-RPC 2.0 based tools over one session.
type Server struct {
	session   *session.Session
	pipeline  *pipeline.Pipeline
	analysis  *analysis.Gateway
	templates collab.TemplateCatalog
	biochem   biochemistry
	metrics   *metrics.Metrics
	logger    *zap.Logger
	validate  *validator.Validate
	tools     map[string]toolHandler

	defaultTemplate string
	defaultUptake   float64
	version         string
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithTemplates injects the template catalog behind list_templates.
func WithTemplates(c collab.TemplateCatalog) ServerOption {
	return func(s *Server) {
		s.templates = c
	}
}

// WithBiochem injects the biochemistry database. Without it the lookup and
// search tools report an error and build_media skips compound validation.
func WithBiochem(db biochemistry) ServerOption {
	return func(s *Server) {
		s.biochem = db
	}
}

// WithMetrics records tool calls.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the server logger. It must not write to stdout.
func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithDefaults sets the template reported by list_templates and the uptake
// used by build_media when none is given.
func WithDefaults(template string, uptake float64) ServerOption {
	return func(s *Server) {
		s.defaultTemplate = template
		s.defaultUptake = uptake
	}
}

// WithVersion sets the version reported in serverInfo.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new MCP server instance over sess.
func NewServer(sess *session.Session, p *pipeline.Pipeline, gw *analysis.Gateway, opts ...ServerOption) *Server {
	s := &Server{
		session:         sess,
		pipeline:        p,
		analysis:        gw,
		logger:          zap.NewNop(),
		validate:        newValidator(),
		defaultTemplate: "Core",
		defaultUptake:   100,
		version:         "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tools = map[string]toolHandler{
		"build_model":       s.handleBuildModel,
		"gapfill_model":     s.handleGapfillModel,
		"run_fba":           s.handleRunFBA,
		"list_models":       s.handleListModels,
		"get_model":         s.handleGetModel,
		"delete_model":      s.handleDeleteModel,
		"build_media":       s.handleBuildMedia,
		"list_media":        s.handleListMedia,
		"delete_media":      s.handleDeleteMedia,
		"list_templates":    s.handleListTemplates,
		"get_compound_name": s.handleGetCompoundName,
		"search_compounds":  s.handleSearchCompounds,
		"get_reaction_name": s.handleGetReactionName,
		"search_reactions":  s.handleSearchReactions,
	}
	s.logger.Info("mcp server ready", zap.String("session_id", sess.ID), zap.Int("tools", len(s.tools)))
	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// Notifications get a nil response, which the transports do not write.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}

	// Validate JSON-RPC version
	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized", "notifications/initialized":
		if req.ID == nil {
			return nil, nil
		}
		result = map[string]interface{}{}
	case "ping":
		result = map[string]interface{}{}
	case "tools/list":
		result = MCPToolsListResult{Tools: buildToolsList()}
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			return nil, nil
		}
		handler, ok := s.tools[req.Method]
		if !ok {
			return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
		}
		// Native JSON-RPC method: the tool name used directly.
		result, err = s.runTool(ctx, req.Method, handler, req.Params)
		if err != nil {
			body := errorBody(err)
			return s.errorResponse(req.ID, errorCode(err), body.Message, body)
		}
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}
	return s.successResponse(req.ID, result)
}

// runTool executes a tool handler and records the outcome.
func (s *Server) runTool(ctx context.Context, name string, handler toolHandler, params interface{}) (interface{}, error) {
	result, err := handler(ctx, params)
	s.metrics.ObserveTool(name, err)
	if err != nil {
		s.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return nil, err
	}
	s.logger.Debug("tool finished", zap.String("tool", name))
	return result, nil
}

// ---------------------------------------------------------------------------
// Standard MCP protocol handlers
// ---------------------------------------------------------------------------

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPInitializeParams
	if params != nil {
		if err := s.unmarshalParams(params, &p); err != nil {
			return nil, err
		}
	}
	s.logger.Info("client connected",
		zap.String("client", p.ClientInfo.Name),
		zap.String("client_version", p.ClientInfo.Version),
		zap.String("protocol", p.ProtocolVersion))
	return MCPInitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "gem-flux",
			Version: s.version,
		},
		Instructions: "Build a draft model with build_model, gapfill it on a medium with gapfill_model, " +
			"then run flux balance analysis with run_fba. Models and media live only for this session.",
	}, nil
}

// handleToolsCall dispatches a tools/call request to the appropriate handler
// and wraps the result in the MCP content envelope. Tool failures are
// reported inside the envelope with isError set.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	handler, ok := s.tools[p.Name]
	if !ok {
		return toolCallResult(ErrorBody{
			ErrorType:    errTypeUnknownTool,
			Message:      fmt.Sprintf("unknown tool: %s", p.Name),
			AvailableIDs: s.toolNames(),
		}, true)
	}

	var args interface{} = p.Arguments
	if p.Arguments == nil {
		args = map[string]interface{}{}
	}
	result, err := s.runTool(ctx, p.Name, handler, args)
	if err != nil {
		return toolCallResult(errorBody(err), true)
	}
	return toolCallResult(result, false)
}

func toolCallResult(v interface{}, isError bool) (*MCPToolCallResult, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
		IsError: isError,
	}, nil
}

func (s *Server) toolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Model tools
// ---------------------------------------------------------------------------

// BuildModel reconstructs a draft model from annotated features.
func (s *Server) BuildModel(ctx context.Context, args BuildModelArgs) (*BuildModelResult, error) {
	genome := &types.Genome{ID: args.GenomeID, Features: make([]types.Feature, 0, len(args.Features))}
	for _, f := range args.Features {
		genome.Features = append(genome.Features, types.Feature{ID: f.ID, Functions: f.Functions})
	}

	res, err := s.pipeline.Build(ctx, pipeline.BuildRequest{
		Genome:    genome,
		Template:  args.Template,
		ModelName: args.ModelName,
		Correct:   args.Correct,
	})
	if err != nil {
		return nil, err
	}

	out := &BuildModelResult{
		Success:        true,
		ModelID:        res.Draft.ID,
		Draft:          summarizeModel(res.Draft),
		BatteryMissing: res.BatteryMissing,
		Message: fmt.Sprintf("Draft model %s built from %d features with template %s.",
			res.Draft.ID, len(genome.Features), res.Draft.Template),
	}
	if res.Corrected != nil {
		corrected := summarizeModel(res.Corrected)
		out.Corrected = &corrected
		out.ModelID = res.Corrected.ID
		out.Message += fmt.Sprintf(" Corrected model %s passed %d of %d test conditions.",
			res.Corrected.ID, res.Corrected.TestConditions.Passed, len(res.Corrected.TestConditions.Conditions))
	}
	return out, nil
}

// GapfillModel gapfills a stored model on a stored medium.
func (s *Server) GapfillModel(ctx context.Context, args GapfillModelArgs) (*GapfillModelResult, error) {
	res, err := s.pipeline.Refine(ctx, pipeline.RefineRequest{
		ModelID:         args.ModelID,
		MediaID:         args.MediaID,
		Target:          args.Target,
		MinGrowth:       args.MinGrowth,
		ForceCorrection: args.ForceCorrection,
		SkipCorrection:  args.SkipCorrection,
	})
	if err != nil {
		return nil, err
	}

	out := &GapfillModelResult{Success: true, RefineResult: *res}
	if res.Status == pipeline.RefineNoSolution {
		out.Message = fmt.Sprintf("No gapfilling solution found for %s on %s; no model was created.", res.SourceID, res.MediaID)
		return out, nil
	}
	summary := summarizeModel(res.Model)
	out.ModelID = res.Model.ID
	out.Model = &summary
	out.Message = fmt.Sprintf("Gapfilled model %s created with %d added reactions; growth %.4g -> %.4g.",
		res.Model.ID, len(res.Added), res.GrowthBefore, res.GrowthAfter)
	return out, nil
}

// RunFBA runs flux balance analysis on a stored model.
func (s *Server) RunFBA(ctx context.Context, args RunFBAArgs) (*RunFBAResult, error) {
	res, err := s.analysis.Analyze(ctx, args.ModelID, args.MediaID, analysis.Options{
		Objective:     args.Objective,
		Maximize:      args.Maximize,
		FluxThreshold: args.FluxThreshold,
	})
	if err != nil {
		return nil, err
	}
	return &RunFBAResult{Success: true, Result: *res}, nil
}

// ListModels lists the session's models, optionally filtered by state.
func (s *Server) ListModels(ctx context.Context, args ListModelsArgs) (*ListModelsResult, error) {
	if !lifecycle.IsValidFilter(args.Filter) {
		return nil, &types.ValidationError{Field: "filter_state", Message: "must be one of all, draft, gapfilled"}
	}
	records, err := s.session.Models.List(ctx, func(m *types.ModelRecord) bool {
		return lifecycle.MatchesState(m, args.Filter)
	})
	if err != nil {
		return nil, err
	}

	out := &ListModelsResult{Success: true, Models: make([]ModelSummary, 0, len(records)), Total: len(records)}
	for _, rec := range records {
		summary := summarizeModel(rec)
		if summary.State == lifecycle.FilterGapfilled {
			out.Gapfilled++
		} else {
			out.Drafts++
		}
		out.Models = append(out.Models, summary)
	}
	return out, nil
}

// GetModel describes one model, its surviving lineage and the test
// conditions it would reuse.
func (s *Server) GetModel(ctx context.Context, args GetModelArgs) (*GetModelResult, error) {
	rec, err := s.session.Models.Get(ctx, args.ModelID)
	if err != nil {
		return nil, err
	}
	out := &GetModelResult{Success: true, Model: summarizeModel(rec), Lineage: []string{}}

	for parentID, depth := rec.ParentID, 0; parentID != "" && depth < len(rec.StageMarkers); depth++ {
		parent, err := s.session.Models.Get(ctx, parentID)
		if err != nil {
			break
		}
		out.Lineage = append(out.Lineage, parent.ID)
		parentID = parent.ParentID
	}

	if set, owner, ok := s.pipeline.FindTestConditions(ctx, rec); ok {
		out.TestConditions = &TestConditionsInfo{
			ID:         set.ID,
			OwnerID:    owner,
			Inherited:  owner != rec.ID,
			Conditions: set.Conditions,
			Passed:     set.Passed,
			Failed:     set.Failed,
		}
	}

	if args.IncludeReactions {
		out.Reactions = make([]ReactionSummary, 0, len(rec.Network.Reactions))
		for _, r := range rec.Network.Reactions {
			out.Reactions = append(out.Reactions, ReactionSummary{
				ID:        r.ID,
				Name:      r.Name,
				Direction: bridge.BoundsDirection(r.Lower, r.Upper),
				Lower:     r.Lower,
				Upper:     r.Upper,
				GeneRule:  r.GeneRule,
			})
		}
	}
	return out, nil
}

// DeleteModel removes a model. Descendants are left intact.
func (s *Server) DeleteModel(ctx context.Context, args DeleteModelArgs) (*DeleteResult, error) {
	if err := s.session.Models.Delete(ctx, args.ModelID); err != nil {
		return nil, err
	}
	s.metrics.SetRecords(s.session.Models.Len(), s.session.Media.Len())
	return &DeleteResult{Success: true, DeletedID: args.ModelID, Message: "Model deleted."}, nil
}

// ---------------------------------------------------------------------------
// Media tools
// ---------------------------------------------------------------------------

// BuildMedia stores a new medium. Compounds without custom bounds get
// (-default_uptake, 100).
func (s *Server) BuildMedia(ctx context.Context, args BuildMediaArgs) (*BuildMediaResult, error) {
	uptake := s.defaultUptake
	if args.DefaultUptake != nil {
		uptake = *args.DefaultUptake
	}

	bounds := make(types.BoundsMap, len(args.Compounds))
	for _, cpd := range args.Compounds {
		bounds[strings.TrimSpace(cpd)] = types.Bounds{Lower: -uptake, Upper: 100}
	}
	for key, pair := range args.CustomBounds {
		cpd := strings.TrimSpace(key)
		if _, ok := bounds[cpd]; !ok {
			return nil, &types.ValidationError{
				Field:   fmt.Sprintf("custom_bounds[%s]", cpd),
				Message: "compound is not in the compounds list",
			}
		}
		if len(pair) != 2 {
			return nil, &types.ValidationError{
				Field:   fmt.Sprintf("custom_bounds[%s]", cpd),
				Message: fmt.Sprintf("expected [lower, upper], got %d values", len(pair)),
			}
		}
		bounds[cpd] = types.Bounds{Lower: pair[0], Upper: pair[1]}
	}
	if err := bridge.ValidateBounds(bounds); err != nil {
		return nil, err
	}

	compounds := make([]MediaCompound, 0, len(bounds))
	var unknown []string
	for _, cpd := range sortedKeys(bounds) {
		mc := MediaCompound{ID: cpd, Lower: bounds[cpd].Lower, Upper: bounds[cpd].Upper}
		if s.biochem != nil {
			c, err := s.biochem.Compound(ctx, cpd)
			switch {
			case err == nil:
				mc.Name = c.Name
			case errors.Is(err, types.ErrNotFound):
				unknown = append(unknown, cpd)
			default:
				return nil, err
			}
		}
		compounds = append(compounds, mc)
	}
	if len(unknown) > 0 {
		return nil, &types.ValidationError{
			Field:   "compounds",
			Message: "unknown compound ids: " + strings.Join(unknown, ", "),
		}
	}

	rec, err := s.putMedia(ctx, strings.TrimSpace(args.MediaName), func(id string) *types.MediaRecord {
		return &types.MediaRecord{
			ID:          id,
			Description: args.Description,
			Bounds:      bounds,
			CreatedAt:   s.session.Now(),
		}
	})
	if err != nil {
		return nil, err
	}
	id := rec.ID
	s.metrics.SetRecords(s.session.Models.Len(), s.session.Media.Len())

	return &BuildMediaResult{
		Success:       true,
		MediaID:       id,
		Compounds:     compounds,
		NumCompounds:  len(compounds),
		DefaultUptake: uptake,
		CustomBounds:  len(args.CustomBounds),
	}, nil
}

// putMedia stores the record built for the requested name, or for a
// synthesized id when the name is taken. An id taken between generation and
// Put costs one retry.
func (s *Server) putMedia(ctx context.Context, requested string, build func(id string) *types.MediaRecord) (*types.MediaRecord, error) {
	media := s.session.Media
	id, err := s.session.IDs.Generate(idgen.KindMedia, requested, "", media.Has)
	if err != nil {
		return nil, err
	}
	retries := s.session.IDs.Retries()
	for attempt := 0; attempt < retries; attempt++ {
		rec := build(id)
		err := media.Put(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, types.ErrCollision) {
			return nil, err
		}
		s.logger.Debug("media id taken, synthesizing", zap.String("media_id", id))
		if id, err = s.session.IDs.Synthesize(idgen.KindMedia, "", media.Has); err != nil {
			return nil, err
		}
	}
	return nil, &types.StorageCollisionError{Kind: string(idgen.KindMedia), Attempts: retries}
}

// ListMedia lists predefined and user-created media.
func (s *Server) ListMedia(ctx context.Context) (*ListMediaResult, error) {
	records, err := s.session.Media.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := &ListMediaResult{Success: true, Media: make([]MediaSummary, 0, len(records)), Total: len(records)}
	for _, m := range records {
		compounds := m.Compounds()
		preview := compounds
		if len(preview) > 3 {
			preview = preview[:3]
		}
		out.Media = append(out.Media, MediaSummary{
			MediaID:      m.ID,
			Description:  m.Description,
			NumCompounds: len(compounds),
			IsPredefined: m.IsPredefined,
			Preview:      preview,
			CreatedAt:    m.CreatedAt,
		})
		if m.IsPredefined {
			out.Predefined++
		} else {
			out.UserCreated++
		}
	}
	return out, nil
}

// DeleteMedia removes a user-created medium. Predefined media are rejected.
func (s *Server) DeleteMedia(ctx context.Context, args DeleteMediaArgs) (*DeleteResult, error) {
	if err := s.session.Media.Delete(ctx, args.MediaID); err != nil {
		return nil, err
	}
	s.metrics.SetRecords(s.session.Models.Len(), s.session.Media.Len())
	return &DeleteResult{Success: true, DeletedID: args.MediaID, Message: "Media deleted."}, nil
}

// ---------------------------------------------------------------------------
// Template and biochemistry tools
// ---------------------------------------------------------------------------

// ListTemplates lists the reconstruction templates.
func (s *Server) ListTemplates() (*ListTemplatesResult, error) {
	out := &ListTemplatesResult{Success: true, Templates: []collab.TemplateInfo{}, Default: s.defaultTemplate}
	if s.templates != nil {
		out.Templates = s.templates.Templates()
	}
	return out, nil
}

// GetCompoundName looks up a compound in the biochemistry database.
func (s *Server) GetCompoundName(ctx context.Context, args LookupArgs) (*CompoundResult, error) {
	if err := s.requireBiochem(); err != nil {
		return nil, err
	}
	c, err := s.biochem.Compound(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return &CompoundResult{Success: true, Compound: *c}, nil
}

// GetReactionName looks up a reaction in the biochemistry database.
func (s *Server) GetReactionName(ctx context.Context, args LookupArgs) (*ReactionResult, error) {
	if err := s.requireBiochem(); err != nil {
		return nil, err
	}
	r, err := s.biochem.Reaction(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return &ReactionResult{Success: true, Reaction: *r}, nil
}

// SearchCompounds searches compounds by id, name or abbreviation.
func (s *Server) SearchCompounds(ctx context.Context, args SearchArgs) (*SearchCompoundsResult, error) {
	if err := s.requireBiochem(); err != nil {
		return nil, err
	}
	found, err := s.biochem.SearchCompounds(ctx, args.Query, args.Limit)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []biochem.Compound{}
	}
	return &SearchCompoundsResult{Success: true, Query: args.Query, Results: found, Count: len(found)}, nil
}

// SearchReactions searches reactions by id, name or abbreviation.
func (s *Server) SearchReactions(ctx context.Context, args SearchArgs) (*SearchReactionsResult, error) {
	if err := s.requireBiochem(); err != nil {
		return nil, err
	}
	found, err := s.biochem.SearchReactions(ctx, args.Query, args.Limit)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []biochem.Reaction{}
	}
	return &SearchReactionsResult{Success: true, Query: args.Query, Results: found, Count: len(found)}, nil
}

func (s *Server) requireBiochem() error {
	if s.biochem == nil {
		return &types.CollaboratorError{Collaborator: "biochem", Op: "lookup", Err: errors.New("biochemistry database not configured")}
	}
	return nil
}

// ---------------------------------------------------------------------------
// JSON-RPC method handlers
// ---------------------------------------------------------------------------

func (s *Server) handleBuildModel(ctx context.Context, params interface{}) (interface{}, error) {
	var args BuildModelArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.BuildModel(ctx, args)
}

func (s *Server) handleGapfillModel(ctx context.Context, params interface{}) (interface{}, error) {
	var args GapfillModelArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.GapfillModel(ctx, args)
}

func (s *Server) handleRunFBA(ctx context.Context, params interface{}) (interface{}, error) {
	var args RunFBAArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.RunFBA(ctx, args)
}

func (s *Server) handleListModels(ctx context.Context, params interface{}) (interface{}, error) {
	var args ListModelsArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.ListModels(ctx, args)
}

func (s *Server) handleGetModel(ctx context.Context, params interface{}) (interface{}, error) {
	var args GetModelArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.GetModel(ctx, args)
}

func (s *Server) handleDeleteModel(ctx context.Context, params interface{}) (interface{}, error) {
	var args DeleteModelArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.DeleteModel(ctx, args)
}

func (s *Server) handleBuildMedia(ctx context.Context, params interface{}) (interface{}, error) {
	var args BuildMediaArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.BuildMedia(ctx, args)
}

func (s *Server) handleListMedia(ctx context.Context, _ interface{}) (interface{}, error) {
	return s.ListMedia(ctx)
}

func (s *Server) handleDeleteMedia(ctx context.Context, params interface{}) (interface{}, error) {
	var args DeleteMediaArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.DeleteMedia(ctx, args)
}

func (s *Server) handleListTemplates(_ context.Context, _ interface{}) (interface{}, error) {
	return s.ListTemplates()
}

func (s *Server) handleGetCompoundName(ctx context.Context, params interface{}) (interface{}, error) {
	var args LookupArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.GetCompoundName(ctx, args)
}

func (s *Server) handleSearchCompounds(ctx context.Context, params interface{}) (interface{}, error) {
	var args SearchArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.SearchCompounds(ctx, args)
}

func (s *Server) handleGetReactionName(ctx context.Context, params interface{}) (interface{}, error) {
	var args LookupArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.GetReactionName(ctx, args)
}

func (s *Server) handleSearchReactions(ctx context.Context, params interface{}) (interface{}, error) {
	var args SearchArgs
	if err := s.decode(params, &args); err != nil {
		return nil, err
	}
	return s.SearchReactions(ctx, args)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func summarizeModel(rec *types.ModelRecord) ModelSummary {
	state := lifecycle.FilterDraft
	if rec.HasStage(types.StageGapfilled) {
		state = lifecycle.FilterGapfilled
	}
	var objective string
	if rec.Network != nil {
		objective = rec.Network.Objective
	}
	return ModelSummary{
		ModelID:      rec.ID,
		ParentID:     rec.ParentID,
		State:        state,
		StageMarkers: rec.StageMarkers,
		Stats:        rec.Stats,
		Template:     rec.Template,
		Objective:    objective,
		CreatedAt:    rec.CreatedAt,
	}
}

func sortedKeys(b types.BoundsMap) []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decode unmarshals params into dest and validates it.
func (s *Server) decode(params interface{}, dest interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := s.unmarshalParams(params, dest); err != nil {
		return &types.ValidationError{Field: "params", Message: err.Error()}
	}
	return s.validate.Struct(dest)
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
