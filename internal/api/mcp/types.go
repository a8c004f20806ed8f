// Package mcp implements the Model Context Protocol (MCP) server for GEM-Flux.
// It provides JSON-RPC 2.0 based tools for building, gapfilling and analyzing
// metabolic models and for managing growth media.
package mcp

import (
	"time"

	"github.com/jplfaria/gem-flux-mcp/internal/analysis"
	"github.com/jplfaria/gem-flux-mcp/internal/biochem"
	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/internal/pipeline"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// FeatureArg is one annotated genome feature in build_model.
type FeatureArg struct {
	ID        string   `json:"id"`
	Functions []string `json:"functions"`
}

// BuildModelArgs contains arguments for the build_model tool.
type BuildModelArgs struct {
	GenomeID  string       `json:"genome_id,omitempty" validate:"omitempty,max=128"`
	Features  []FeatureArg `json:"features"`
	Template  string       `json:"template,omitempty" validate:"omitempty,max=64"`
	ModelName string       `json:"model_name,omitempty" validate:"omitempty,max=128"`
	Correct   bool         `json:"correct,omitempty"` // run energy-metabolism correction after the draft
}

// ModelSummary describes a stored model record.
type ModelSummary struct {
	ModelID      string           `json:"model_id"`
	ParentID     string           `json:"parent_id,omitempty"`
	State        string           `json:"state"` // draft or gapfilled
	StageMarkers []types.Stage    `json:"stage_markers"`
	Stats        types.ModelStats `json:"stats"`
	Template     string           `json:"template"`
	Objective    string           `json:"objective,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// BuildModelResult contains the result of build_model.
type BuildModelResult struct {
	Success   bool          `json:"success"`
	ModelID   string        `json:"model_id"` // the most derived record created
	Draft     ModelSummary  `json:"draft"`
	Corrected *ModelSummary `json:"corrected,omitempty"`
	Message   string        `json:"message"`

	BatteryMissing map[string][]string `json:"battery_missing,omitempty"`
}

// GapfillModelArgs contains arguments for the gapfill_model tool.
type GapfillModelArgs struct {
	ModelID         string  `json:"model_id" validate:"required"`
	MediaID         string  `json:"media_id" validate:"required"`
	Target          string  `json:"target,omitempty"`
	MinGrowth       float64 `json:"min_growth,omitempty" validate:"gte=0"`
	ForceCorrection bool    `json:"force_correction,omitempty"`
	SkipCorrection  bool    `json:"skip_correction,omitempty"`
}

// GapfillModelResult contains the result of gapfill_model. ModelID and Model
// are empty when no solution was found.
type GapfillModelResult struct {
	Success bool          `json:"success"`
	ModelID string        `json:"model_id,omitempty"`
	Model   *ModelSummary `json:"model,omitempty"`
	pipeline.RefineResult
	Message string `json:"message"`
}

// RunFBAArgs contains arguments for the run_fba tool.
type RunFBAArgs struct {
	ModelID       string  `json:"model_id" validate:"required"`
	MediaID       string  `json:"media_id" validate:"required"`
	Objective     string  `json:"objective,omitempty"`
	Maximize      *bool   `json:"maximize,omitempty"`
	FluxThreshold float64 `json:"flux_threshold,omitempty" validate:"gte=0"`
}

// RunFBAResult contains the result of run_fba.
type RunFBAResult struct {
	Success bool `json:"success"`
	analysis.Result
}

// ListModelsArgs contains arguments for the list_models tool.
type ListModelsArgs struct {
	Filter string `json:"filter_state,omitempty" validate:"omitempty,oneof=all draft gapfilled"`
}

// ListModelsResult contains the result of list_models.
type ListModelsResult struct {
	Success   bool           `json:"success"`
	Models    []ModelSummary `json:"models"`
	Total     int            `json:"total_models"`
	Drafts    int            `json:"draft_count"`
	Gapfilled int            `json:"gapfilled_count"`
}

// GetModelArgs contains arguments for the get_model tool.
type GetModelArgs struct {
	ModelID          string `json:"model_id" validate:"required"`
	IncludeReactions bool   `json:"include_reactions,omitempty"`
}

// ReactionSummary is one reaction of a model network.
type ReactionSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Direction types.Direction `json:"direction"`
	Lower     float64         `json:"lower_bound"`
	Upper     float64         `json:"upper_bound"`
	GeneRule  string          `json:"gene_rule,omitempty"`
}

// TestConditionsInfo reports the test condition set visible to a model.
type TestConditionsInfo struct {
	ID         string                `json:"id"`
	OwnerID    string                `json:"owner_model_id"`
	Inherited  bool                  `json:"inherited"`
	Conditions []types.TestCondition `json:"conditions"`
	Passed     int                   `json:"passed"`
	Failed     int                   `json:"failed"`
}

// GetModelResult contains the result of get_model.
type GetModelResult struct {
	Success        bool                `json:"success"`
	Model          ModelSummary        `json:"model"`
	Lineage        []string            `json:"lineage"` // ancestors still in the session, nearest first
	TestConditions *TestConditionsInfo `json:"test_conditions,omitempty"`
	Reactions      []ReactionSummary   `json:"reactions,omitempty"`
}

// DeleteModelArgs contains arguments for the delete_model tool.
type DeleteModelArgs struct {
	ModelID string `json:"model_id" validate:"required"`
}

// DeleteResult contains the result of delete_model and delete_media.
type DeleteResult struct {
	Success   bool   `json:"success"`
	DeletedID string `json:"deleted_id"`
	Message   string `json:"message"`
}

// BuildMediaArgs contains arguments for the build_media tool.
type BuildMediaArgs struct {
	Compounds     []string             `json:"compounds" validate:"required,min=1,dive,required"`
	CustomBounds  map[string][]float64 `json:"custom_bounds,omitempty"`
	DefaultUptake *float64             `json:"default_uptake,omitempty" validate:"omitempty,gte=0,lte=1000"`
	MediaName     string               `json:"media_name,omitempty" validate:"omitempty,max=128"`
	Description   string               `json:"description,omitempty" validate:"omitempty,max=512"`
}

// MediaCompound is one compound of a medium with its bounds.
type MediaCompound struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Lower float64 `json:"lower_bound"`
	Upper float64 `json:"upper_bound"`
}

// BuildMediaResult contains the result of build_media.
type BuildMediaResult struct {
	Success       bool            `json:"success"`
	MediaID       string          `json:"media_id"`
	Compounds     []MediaCompound `json:"compounds"`
	NumCompounds  int             `json:"num_compounds"`
	DefaultUptake float64         `json:"default_uptake"`
	CustomBounds  int             `json:"custom_bounds_applied"`
}

// MediaSummary describes a stored medium.
type MediaSummary struct {
	MediaID      string    `json:"media_id"`
	Description  string    `json:"description,omitempty"`
	NumCompounds int       `json:"num_compounds"`
	IsPredefined bool      `json:"is_predefined"`
	Preview      []string  `json:"compounds_preview"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListMediaResult contains the result of list_media.
type ListMediaResult struct {
	Success     bool           `json:"success"`
	Media       []MediaSummary `json:"media"`
	Total       int            `json:"total_media"`
	Predefined  int            `json:"predefined_count"`
	UserCreated int            `json:"user_created_count"`
}

// DeleteMediaArgs contains arguments for the delete_media tool.
type DeleteMediaArgs struct {
	MediaID string `json:"media_id" validate:"required"`
}

// ListTemplatesResult contains the result of list_templates.
type ListTemplatesResult struct {
	Success   bool                  `json:"success"`
	Templates []collab.TemplateInfo `json:"templates"`
	Default   string                `json:"default_template"`
}

// LookupArgs contains arguments for get_compound_name and get_reaction_name.
type LookupArgs struct {
	ID string `json:"id" validate:"required"`
}

// CompoundResult contains the result of get_compound_name.
type CompoundResult struct {
	Success bool `json:"success"`
	biochem.Compound
}

// ReactionResult contains the result of get_reaction_name.
type ReactionResult struct {
	Success bool `json:"success"`
	biochem.Reaction
}

// SearchArgs contains arguments for search_compounds and search_reactions.
type SearchArgs struct {
	Query string `json:"query" validate:"required,max=256"`
	Limit int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// SearchCompoundsResult contains the result of search_compounds.
type SearchCompoundsResult struct {
	Success bool               `json:"success"`
	Query   string             `json:"query"`
	Results []biochem.Compound `json:"results"`
	Count   int                `json:"num_results"`
}

// SearchReactionsResult contains the result of search_reactions.
type SearchReactionsResult struct {
	Success bool               `json:"success"`
	Query   string             `json:"query"`
	Results []biochem.Reaction `json:"results"`
	Count   int                `json:"num_results"`
}

// ErrorBody is the structured error returned by every tool.
type ErrorBody struct {
	Success      bool        `json:"success"` // always false
	ErrorType    string      `json:"error_type"`
	Message      string      `json:"message"`
	Details      interface{} `json:"details,omitempty"`
	AvailableIDs []string    `json:"available_ids,omitempty"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
	Instructions    string                `json:"instructions,omitempty"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
