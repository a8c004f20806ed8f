package bridge

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// ExchangeConventions are the exchange naming patterns tried, in order, when
// locating the exchange reaction of a compound.
var ExchangeConventions = []string{
	types.ExchangePrefix + "%s_e0",
	types.ExchangePrefix + "%s_e",
	types.ExchangePrefix + "%s",
}

// CompoundNamer resolves human-readable compound names. It is optional; a nil
// namer leaves names empty.
type CompoundNamer interface {
	CompoundName(ctx context.Context, id string) (string, error)
}

// MissingCompound is a medium compound with no exchange reaction in the network.
type MissingCompound struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// SolverMedium is the solver-facing form of a medium.
type SolverMedium struct {
	Uptake  map[string]float64 // exchange reaction id -> positive uptake magnitude
	Applied map[string]string  // compound id -> exchange reaction id
	Missing []MissingCompound  // compounds without an exchange, sorted by id
}

// ExchangeFor locates the exchange reaction for a compound by trying
// ExchangeConventions against the network.
func ExchangeFor(net *types.Network, compound string) (string, bool) {
	for _, pattern := range ExchangeConventions {
		id := fmt.Sprintf(pattern, compound)
		if net.HasReaction(id) {
			return id, true
		}
	}
	return "", false
}

// UptakeRate converts a signed bound pair to a positive uptake magnitude:
// the absolute lower bound, with the unlimited sentinel capped to defaultUptake.
func UptakeRate(b types.Bounds, defaultUptake float64) float64 {
	rate := math.Abs(b.Lower)
	if rate >= types.MaxFlux {
		return defaultUptake
	}
	return rate
}

// ToSolverMedium converts a medium to solver form against a network. Compounds
// with no matching exchange are reported in Missing rather than dropped, so
// callers can act on partial application.
func ToSolverMedium(ctx context.Context, net *types.Network, bounds types.BoundsMap, defaultUptake float64, names CompoundNamer) SolverMedium {
	out := SolverMedium{
		Uptake:  make(map[string]float64, len(bounds)),
		Applied: make(map[string]string, len(bounds)),
	}

	ids := make([]string, 0, len(bounds))
	for id := range bounds {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, cpd := range ids {
		exID, ok := ExchangeFor(net, cpd)
		if !ok {
			missing := MissingCompound{ID: cpd}
			if names != nil {
				if name, err := names.CompoundName(ctx, cpd); err == nil {
					missing.Name = name
				}
			}
			out.Missing = append(out.Missing, missing)
			continue
		}
		out.Uptake[exID] = UptakeRate(bounds[cpd], defaultUptake)
		out.Applied[cpd] = exID
	}
	return out
}

// ValidateBounds checks a medium before it is stored: every pair must be
// finite, within ±MaxFlux, and ordered lower <= upper. Equal bounds are valid.
func ValidateBounds(bounds types.BoundsMap) error {
	if len(bounds) == 0 {
		return &types.ValidationError{Field: "compounds", Message: "medium must contain at least one compound"}
	}
	for id, b := range bounds {
		field := fmt.Sprintf("bounds[%s]", id)
		if id == "" {
			return &types.ValidationError{Field: "compounds", Message: "compound id must not be empty"}
		}
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || math.IsInf(b.Lower, 0) || math.IsInf(b.Upper, 0) {
			return &types.ValidationError{Field: field, Message: "bounds must be finite numbers"}
		}
		if b.Lower > b.Upper {
			return &types.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("lower bound %g is greater than upper bound %g", b.Lower, b.Upper),
			}
		}
		if b.Lower < -types.MaxFlux || b.Upper > types.MaxFlux {
			return &types.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("bounds must lie within [-%g, %g]", types.MaxFlux, types.MaxFlux),
			}
		}
	}
	return nil
}
