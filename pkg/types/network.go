package types

import "strings"

// MaxFlux is the network-wide "unconstrained" flux magnitude. Bounds at or
// beyond it are treated as unlimited.
const MaxFlux = 1000.0

// ExchangePrefix marks solver-facing exchange reactions.
const ExchangePrefix = "EX_"

// Reaction is a single reaction of a reconstructed network. Identifiers are in
// compartment-indexed form (e.g. "rxn00148_c0").
type Reaction struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	Stoichiometry map[string]float64 `json:"stoichiometry"`       // metabolite id -> coefficient
	Lower         float64            `json:"lower_bound"`         // signed lower flux bound
	Upper         float64            `json:"upper_bound"`         // signed upper flux bound
	GeneRule      string             `json:"gene_rule,omitempty"` // boolean gene-protein-reaction rule
}

// IsExchange reports whether the reaction moves a compound across the model boundary.
func (r *Reaction) IsExchange() bool {
	return strings.HasPrefix(r.ID, ExchangePrefix)
}

// Metabolite is a compartmentalized compound of a network.
type Metabolite struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Compartment string `json:"compartment"`
	Formula     string `json:"formula,omitempty"`
}

// Network is the reconstructed metabolic network owned by exactly one
// ModelRecord. It is never shared: derivations work on a Clone.
type Network struct {
	ID          string        `json:"id"`
	Template    string        `json:"template"`
	Objective   string        `json:"objective,omitempty"`
	Reactions   []*Reaction   `json:"reactions"`
	Metabolites []*Metabolite `json:"metabolites"`
	Genes       []string      `json:"genes"`
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	if n == nil {
		return nil
	}
	out := &Network{
		ID:          n.ID,
		Template:    n.Template,
		Objective:   n.Objective,
		Reactions:   make([]*Reaction, 0, len(n.Reactions)),
		Metabolites: make([]*Metabolite, 0, len(n.Metabolites)),
		Genes:       append([]string(nil), n.Genes...),
	}
	for _, r := range n.Reactions {
		cp := *r
		cp.Stoichiometry = make(map[string]float64, len(r.Stoichiometry))
		for k, v := range r.Stoichiometry {
			cp.Stoichiometry[k] = v
		}
		out.Reactions = append(out.Reactions, &cp)
	}
	for _, m := range n.Metabolites {
		cp := *m
		out.Metabolites = append(out.Metabolites, &cp)
	}
	return out
}

// Reaction returns the reaction with the given id, or nil.
func (n *Network) Reaction(id string) *Reaction {
	for _, r := range n.Reactions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Metabolite returns the metabolite with the given id, or nil.
func (n *Network) Metabolite(id string) *Metabolite {
	for _, m := range n.Metabolites {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// HasReaction reports whether a reaction with the given id exists.
func (n *Network) HasReaction(id string) bool {
	return n.Reaction(id) != nil
}

// AddReaction appends r and registers any metabolites it references that the
// network does not know yet. An existing reaction with the same id is left alone
// and false is returned.
func (n *Network) AddReaction(r *Reaction, mets []*Metabolite) bool {
	if n.HasReaction(r.ID) {
		return false
	}
	n.Reactions = append(n.Reactions, r)
	for _, m := range mets {
		if n.Metabolite(m.ID) == nil {
			n.Metabolites = append(n.Metabolites, m)
		}
	}
	return true
}

// Exchanges returns the exchange reactions in network order.
func (n *Network) Exchanges() []*Reaction {
	var out []*Reaction
	for _, r := range n.Reactions {
		if r.IsExchange() {
			out = append(out, r)
		}
	}
	return out
}

// ApplyUptake sets the medium of the network: every exchange listed in uptake
// gets lower bound -rate, every other exchange is closed for uptake. Upper
// bounds (secretion) are untouched.
func (n *Network) ApplyUptake(uptake map[string]float64) {
	for _, r := range n.Exchanges() {
		if rate, ok := uptake[r.ID]; ok {
			r.Lower = -rate
			continue
		}
		r.Lower = 0
	}
}

// Stats counts the network's reactions, metabolites and genes.
func (n *Network) Stats() ModelStats {
	if n == nil {
		return ModelStats{}
	}
	return ModelStats{
		Reactions:   len(n.Reactions),
		Metabolites: len(n.Metabolites),
		Genes:       len(n.Genes),
		Exchanges:   len(n.Exchanges()),
	}
}

// ModelStats are the sizes captured when a ModelRecord is created.
type ModelStats struct {
	Reactions   int `json:"num_reactions"`
	Metabolites int `json:"num_metabolites"`
	Genes       int `json:"num_genes"`
	Exchanges   int `json:"num_exchanges"`
}
