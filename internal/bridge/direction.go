package bridge

import (
	"fmt"

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// DirectionBounds converts a gapfilling direction symbol to the concrete bound
// pair the solver needs. Every symbol has its own case; an unknown symbol is a
// validation error rather than a silent default.
func DirectionBounds(d types.Direction) (lower, upper float64, err error) {
	switch d {
	case types.DirectionForward:
		return 0, types.MaxFlux, nil
	case types.DirectionReverse:
		return -types.MaxFlux, 0, nil
	case types.DirectionReversible:
		return -types.MaxFlux, types.MaxFlux, nil
	}
	return 0, 0, &types.ValidationError{
		Field:   "direction",
		Message: fmt.Sprintf("unknown direction symbol %q (expected >, < or =)", string(d)),
	}
}

// BoundsDirection is the inverse of DirectionBounds for reporting: it returns
// the symbol describing which directions a bound pair permits.
func BoundsDirection(lower, upper float64) types.Direction {
	switch {
	case lower < 0 && upper > 0:
		return types.DirectionReversible
	case lower < 0:
		return types.DirectionReverse
	default:
		return types.DirectionForward
	}
}

// Widen merges two bound pairs into the pair that permits both. Gapfilling
// uses it when a solution makes an existing reaction reversible.
func Widen(lower, upper, addLower, addUpper float64) (float64, float64) {
	if addLower < lower {
		lower = addLower
	}
	if addUpper > upper {
		upper = addUpper
	}
	return lower, upper
}
