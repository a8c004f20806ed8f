package types

// SolveStatus is the outcome of an optimization. All three values are normal
// results, never errors.
type SolveStatus string

// Solver status constants
const (
	SolveOptimal    SolveStatus = "optimal"
	SolveInfeasible SolveStatus = "infeasible"
	SolveUnbounded  SolveStatus = "unbounded"
)

// IsValidSolveStatus checks if the given status is one of the three reportable outcomes.
func IsValidSolveStatus(s SolveStatus) bool {
	switch s {
	case SolveOptimal, SolveInfeasible, SolveUnbounded:
		return true
	default:
		return false
	}
}
