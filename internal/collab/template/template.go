// Package template is the built-in reconstruction engine. It builds draft
// networks by matching genome feature functions against the roles of a
// template's reactions.
package template

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jplfaria/gem-flux-mcp/internal/bridge"
	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

//go:embed templates/*.yaml
var embedded embed.FS

var (
	_ collab.Reconstructor   = (*Registry)(nil)
	_ collab.TemplateCatalog = (*Registry)(nil)
)

// templateFile is the YAML layout of a template.
type templateFile struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Biomass     string            `yaml:"biomass"`
	Metabolites []metaboliteEntry `yaml:"metabolites"`
	Reactions   []reactionEntry   `yaml:"reactions"`
}

type metaboliteEntry struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Formula string `yaml:"formula"`
}

type reactionEntry struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Direction     types.Direction    `yaml:"direction"`
	Roles         []string           `yaml:"roles"`
	Universal     bool               `yaml:"universal"`
	Stoichiometry map[string]float64 `yaml:"stoichiometry"`
}

// Template is a parsed reconstruction template. Reaction and metabolite ids
// are in template form (compartment letter without index).
type Template struct {
	ID          string
	Description string
	Biomass     string

	reactions   []reactionEntry
	byID        map[string]int
	metabolites map[string]metaboliteEntry
	roleIndex   map[string][]int // normalized role -> reaction indexes
}

// Registry holds the available templates, keyed by id.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	logger    *zap.Logger
}

// Default loads the templates embedded in the binary.
func Default(logger *zap.Logger) (*Registry, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return Load(sub, logger)
}

// Load parses every *.yaml file at the root of fsys.
func Load(fsys fs.FS, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	templates, err := loadAll(fsys, logger)
	if err != nil {
		return nil, err
	}
	return &Registry{templates: templates, logger: logger}, nil
}

// Reload replaces the registry contents with the templates in fsys. On error
// the current templates stay in place.
func (r *Registry) Reload(fsys fs.FS) error {
	templates, err := loadAll(fsys, r.logger)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()

	r.logger.Info("templates reloaded", zap.Int("templates", len(templates)))
	return nil
}

func loadAll(fsys fs.FS, logger *zap.Logger) (map[string]*Template, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no templates found")
	}

	templates := make(map[string]*Template, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", path.Base(name), err)
		}
		if _, dup := templates[tmpl.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", tmpl.ID)
		}
		templates[tmpl.ID] = tmpl
		logger.Debug("loaded template",
			zap.String("template", tmpl.ID),
			zap.Int("reactions", len(tmpl.reactions)))
	}
	return templates, nil
}

// Parse decodes and indexes a single template document.
func Parse(raw []byte) (*Template, error) {
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if file.ID == "" {
		return nil, fmt.Errorf("template id is required")
	}

	t := &Template{
		ID:          file.ID,
		Description: file.Description,
		Biomass:     file.Biomass,
		reactions:   file.Reactions,
		byID:        make(map[string]int, len(file.Reactions)),
		metabolites: make(map[string]metaboliteEntry, len(file.Metabolites)),
		roleIndex:   make(map[string][]int),
	}
	for _, m := range file.Metabolites {
		t.metabolites[m.ID] = m
	}
	for i, rxn := range file.Reactions {
		if _, dup := t.byID[rxn.ID]; dup {
			return nil, fmt.Errorf("duplicate reaction %q", rxn.ID)
		}
		if _, _, err := bridge.DirectionBounds(rxn.Direction); err != nil {
			return nil, fmt.Errorf("reaction %s: %w", rxn.ID, err)
		}
		for met := range rxn.Stoichiometry {
			if _, ok := t.metabolites[met]; !ok {
				return nil, fmt.Errorf("reaction %s references unknown metabolite %q", rxn.ID, met)
			}
		}
		t.byID[rxn.ID] = i
		for _, role := range rxn.Roles {
			key := normalizeRole(role)
			t.roleIndex[key] = append(t.roleIndex[key], i)
		}
	}
	if t.Biomass != "" {
		if _, ok := t.byID[t.Biomass]; !ok {
			return nil, fmt.Errorf("biomass reaction %q is not defined", t.Biomass)
		}
	}
	return t, nil
}

// Templates implements collab.TemplateCatalog.
func (r *Registry) Templates() []collab.TemplateInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]collab.TemplateInfo, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, collab.TemplateInfo{
			ID:          t.ID,
			Description: t.Description,
			Reactions:   len(t.reactions),
			Biomass:     t.Biomass,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TemplateReaction implements collab.TemplateCatalog. The returned reaction
// and metabolites use compartment-indexed ids and are fresh copies.
func (r *Registry) TemplateReaction(template, id string) (*types.Reaction, []*types.Metabolite, bool) {
	t, ok := r.lookup(template)
	if !ok {
		return nil, nil, false
	}
	i, ok := t.byID[id]
	if !ok {
		return nil, nil, false
	}
	rxn, mets := t.instantiate(t.reactions[i])
	return rxn, mets, true
}

// BuildDraft implements collab.Reconstructor.
func (r *Registry) BuildDraft(ctx context.Context, genome *types.Genome, template string) (*types.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := r.lookup(template)
	if !ok {
		return nil, &types.ReconstructionError{
			Stage:   types.StageBuilt,
			Message: fmt.Sprintf("unknown template %q; available: %s", template, strings.Join(r.ids(), ", ")),
		}
	}
	if genome == nil || len(genome.Features) == 0 {
		return nil, &types.ReconstructionError{Stage: types.StageBuilt, Message: "genome has no features"}
	}

	// reaction index -> ids of features supporting it
	support := make(map[int][]string)
	genes := make([]string, 0, len(genome.Features))
	seenGene := make(map[string]bool)
	for i, f := range genome.Features {
		if f.ID == "" {
			return nil, &types.ReconstructionError{
				Stage:   types.StageBuilt,
				Message: fmt.Sprintf("feature at position %d has no id", i),
			}
		}
		matched := false
		for _, fn := range f.Functions {
			for _, role := range splitFunction(fn) {
				for _, idx := range t.roleIndex[role] {
					support[idx] = appendUnique(support[idx], f.ID)
					matched = true
				}
			}
		}
		if matched && !seenGene[f.ID] {
			seenGene[f.ID] = true
			genes = append(genes, f.ID)
		}
	}

	id := genome.ID
	if id == "" {
		id = "genome"
	}
	net := &types.Network{
		ID:        id,
		Template:  t.ID,
		Objective: t.Biomass,
		Genes:     genes,
	}
	for i, entry := range t.reactions {
		features, supported := support[i]
		if !supported && !entry.Universal && entry.ID != t.Biomass {
			continue
		}
		rxn, mets := t.instantiate(entry)
		rxn.GeneRule = strings.Join(features, " or ")
		net.AddReaction(rxn, mets)
	}
	addExchanges(net)

	r.logger.Info("draft reconstructed",
		zap.String("genome", id),
		zap.String("template", t.ID),
		zap.Int("features", len(genome.Features)),
		zap.Int("genes", len(genes)),
		zap.Int("reactions", len(net.Reactions)))
	return net, nil
}

// lookup returns a template. Templates are immutable once parsed, so the
// result stays valid after a concurrent Reload.
func (r *Registry) lookup(id string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

func (r *Registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates))
	for id := range r.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (t *Template) instantiate(entry reactionEntry) (*types.Reaction, []*types.Metabolite) {
	lower, upper, _ := bridge.DirectionBounds(entry.Direction)
	rxn := &types.Reaction{
		ID:            bridge.AddCompartmentIndex(entry.ID),
		Name:          entry.Name,
		Stoichiometry: make(map[string]float64, len(entry.Stoichiometry)),
		Lower:         lower,
		Upper:         upper,
	}
	mets := make([]*types.Metabolite, 0, len(entry.Stoichiometry))
	ids := make([]string, 0, len(entry.Stoichiometry))
	for id := range entry.Stoichiometry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		indexed := bridge.AddCompartmentIndex(id)
		rxn.Stoichiometry[indexed] = entry.Stoichiometry[id]
		m := t.metabolites[id]
		mets = append(mets, &types.Metabolite{
			ID:          indexed,
			Name:        m.Name,
			Compartment: bridge.Compartment(indexed),
			Formula:     m.Formula,
		})
	}
	return rxn, mets
}

// addExchanges opens an unconstrained exchange for every extracellular
// metabolite of the network.
func addExchanges(net *types.Network) {
	var ext []*types.Metabolite
	for _, m := range net.Metabolites {
		if m.Compartment == "e" {
			ext = append(ext, m)
		}
	}
	for _, m := range ext {
		net.AddReaction(&types.Reaction{
			ID:            types.ExchangePrefix + m.ID,
			Name:          m.Name + " exchange",
			Stoichiometry: map[string]float64{m.ID: -1},
			Lower:         -types.MaxFlux,
			Upper:         types.MaxFlux,
		}, nil)
	}
}

// splitFunction splits a functional annotation into normalized roles. Multiple
// roles are joined with " / ", " @ " or "; ".
func splitFunction(fn string) []string {
	fn = strings.NewReplacer(" / ", "\x00", " @ ", "\x00", "; ", "\x00").Replace(fn)
	parts := strings.Split(fn, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if role := normalizeRole(p); role != "" {
			out = append(out, role)
		}
	}
	return out
}

func normalizeRole(role string) string {
	if i := strings.Index(role, " #"); i >= 0 {
		role = role[:i]
	}
	return strings.ToLower(strings.Join(strings.Fields(role), " "))
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
