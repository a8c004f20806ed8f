package mcp

// str, num, boolean and obj keep the schema literals below readable.
func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func num(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func boolean(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}

func obj(required []string, props map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// buildToolsList returns the canonical list of MCP tool definitions.
func buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name: "build_model",
			Description: "Reconstruct a draft metabolic model from annotated genome features using a template. " +
				"Returns a model id ending in .draft; set correct=true to also store a corrected model (.draft.corr) " +
				"whose test conditions are reused by later gapfilling.",
			InputSchema: obj([]string{"features"}, map[string]interface{}{
				"features": map[string]interface{}{
					"type":        "array",
					"description": "Annotated features: [{\"id\": \"peg.1\", \"functions\": [\"Glucose-6-phosphate isomerase (EC 5.3.1.9)\"]}]",
					"items": obj([]string{"id"}, map[string]interface{}{
						"id":        str("Feature id"),
						"functions": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					}),
				},
				"genome_id":  str("Optional genome identifier"),
				"template":   str("Template id from list_templates (default: Core)"),
				"model_name": str("Requested base name; a taken name falls back to a generated id"),
				"correct":    boolean("Run energy-metabolism correction after the draft (default: false)"),
			}),
		},
		{
			Name: "gapfill_model",
			Description: "Add reactions to a model so it grows on a medium. Creates a new model (suffix .gf); the input model is never modified. " +
				"Reuses test conditions from the model's lineage when available, otherwise runs correction first. " +
				"A no_solution status is a normal result and creates nothing.",
			InputSchema: obj([]string{"model_id", "media_id"}, map[string]interface{}{
				"model_id":         str("Model to gapfill"),
				"media_id":         str("Medium to grow on"),
				"target":           str("Objective reaction (default: the model's biomass reaction)"),
				"min_growth":       num("Minimum objective value to reach (default 0.01)"),
				"force_correction": boolean("Recompute test conditions even when inherited"),
				"skip_correction":  boolean("Gapfill without a test battery"),
			}),
		},
		{
			Name: "run_fba",
			Description: "Run flux balance analysis on a model in a medium. Read-only. " +
				"Status is optimal, infeasible or unbounded; optimal results include the objective value and nonzero fluxes.",
			InputSchema: obj([]string{"model_id", "media_id"}, map[string]interface{}{
				"model_id":       str("Model to analyze"),
				"media_id":       str("Medium constraining uptake"),
				"objective":      str("Objective reaction (default: bio1)"),
				"maximize":       boolean("Maximize the objective (default: true)"),
				"flux_threshold": num("Fluxes at or below this magnitude are omitted (default 1e-6)"),
			}),
		},
		{
			Name:        "list_models",
			Description: "List models in the session with their stage markers and sizes.",
			InputSchema: obj(nil, map[string]interface{}{
				"filter_state": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"all", "draft", "gapfilled"},
					"description": "Filter by state (default: all)",
				},
			}),
		},
		{
			Name:        "get_model",
			Description: "Describe one model: stage markers, statistics, lineage and the test conditions it would reuse.",
			InputSchema: obj([]string{"model_id"}, map[string]interface{}{
				"model_id":          str("Model id"),
				"include_reactions": boolean("Include the reaction list with bounds"),
			}),
		},
		{
			Name:        "delete_model",
			Description: "Delete a model from the session. Models derived from it are kept.",
			InputSchema: obj([]string{"model_id"}, map[string]interface{}{
				"model_id": str("Model id"),
			}),
		},
		{
			Name: "build_media",
			Description: "Create a growth medium from ModelSEED compound ids. Each compound gets bounds (-default_uptake, 100) " +
				"unless custom_bounds gives [lower, upper]. Lower bounds are uptake (negative).",
			InputSchema: obj([]string{"compounds"}, map[string]interface{}{
				"compounds": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Compound ids, e.g. [\"cpd00027\", \"cpd00007\"]",
				},
				"custom_bounds": map[string]interface{}{
					"type":                 "object",
					"description":          "Per-compound [lower, upper], e.g. {\"cpd00007\": [0, 0]} for anaerobic",
					"additionalProperties": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}, "minItems": 2, "maxItems": 2},
				},
				"default_uptake": num("Uptake magnitude for compounds without custom bounds (default 100)"),
				"media_name":     str("Requested media id; a taken name falls back to a generated id"),
				"description":    str("Free-text description"),
			}),
		},
		{
			Name:        "list_media",
			Description: "List predefined and user-created media.",
			InputSchema: obj(nil, map[string]interface{}{}),
		},
		{
			Name:        "delete_media",
			Description: "Delete a user-created medium. Predefined media cannot be deleted.",
			InputSchema: obj([]string{"media_id"}, map[string]interface{}{
				"media_id": str("Media id"),
			}),
		},
		{
			Name:        "list_templates",
			Description: "List reconstruction templates available to build_model.",
			InputSchema: obj(nil, map[string]interface{}{}),
		},
		{
			Name:        "get_compound_name",
			Description: "Look up a ModelSEED compound by id. Compartment suffixes such as _e0 are ignored.",
			InputSchema: obj([]string{"id"}, map[string]interface{}{
				"id": str("Compound id, e.g. cpd00027"),
			}),
		},
		{
			Name:        "search_compounds",
			Description: "Search compounds by id, name or abbreviation (case-insensitive).",
			InputSchema: obj([]string{"query"}, map[string]interface{}{
				"query": str("Search text"),
				"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 10, max 100)"},
			}),
		},
		{
			Name:        "get_reaction_name",
			Description: "Look up a ModelSEED reaction by id. Compartment suffixes such as _c0 are ignored.",
			InputSchema: obj([]string{"id"}, map[string]interface{}{
				"id": str("Reaction id, e.g. rxn00148"),
			}),
		},
		{
			Name:        "search_reactions",
			Description: "Search reactions by id, name or abbreviation (case-insensitive).",
			InputSchema: obj([]string{"query"}, map[string]interface{}{
				"query": str("Search text"),
				"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 10, max 100)"},
			}),
		},
	}
}
