// Package lifecycle defines the derivation graph of model records and the
// rule used to name descendants.
//
// Valid transitions:
//
//	(none)    -> built
//	built     -> corrected | gapfilled
//	corrected -> corrected | gapfilled
//	gapfilled -> corrected | gapfilled
//
// built is the only initial state and cannot be re-entered. There is no
// terminal state. corrected is re-entered only when a caller forces the
// correction stage to be recomputed.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// Filter values accepted by MatchesState.
const (
	FilterAll       = "all"
	FilterDraft     = "draft"
	FilterGapfilled = "gapfilled"
)

// IsValidTransition validates a stage transition. from is "" for a record that
// does not exist yet.
func IsValidTransition(from, to types.Stage) bool {
	switch from {
	case "":
		return to == types.StageBuilt
	case types.StageBuilt, types.StageCorrected, types.StageGapfilled:
		return to == types.StageCorrected || to == types.StageGapfilled
	default:
		return false
	}
}

// Successor derives the id of a descendant by appending the stage marker to
// the parent id (".draft" -> ".draft.gf", ".draft.gf" -> ".draft.gf.gf").
func Successor(parentID string, stage types.Stage) string {
	return parentID + "." + stage.Marker()
}

// Transition computes the id and stage markers of the record produced by
// applying stage to parent. It does not touch any store; the caller performs
// the Put.
func Transition(parent *types.ModelRecord, stage types.Stage) (string, []types.Stage, error) {
	from := parent.CurrentStage()
	if !IsValidTransition(from, stage) {
		return "", nil, &types.ValidationError{
			Field:   "stage",
			Message: fmt.Sprintf("cannot apply %q to model %q in state %q", stage, parent.ID, from),
		}
	}
	markers := make([]types.Stage, 0, len(parent.StageMarkers)+1)
	markers = append(markers, parent.StageMarkers...)
	markers = append(markers, stage)
	return Successor(parent.ID, stage), markers, nil
}

// Chain applies several stages in order and returns the final id and markers.
func Chain(parent *types.ModelRecord, stages ...types.Stage) (string, []types.Stage, error) {
	current := parent
	for _, stage := range stages {
		id, markers, err := Transition(current, stage)
		if err != nil {
			return "", nil, err
		}
		current = &types.ModelRecord{ID: id, StageMarkers: markers}
	}
	return current.ID, current.StageMarkers, nil
}

// DraftID returns the id of a freshly built record with the given base name.
// A base that already carries the initial marker is not extended twice.
func DraftID(base string) string {
	return base + DraftSuffix(base)
}

// DraftSuffix returns the suffix that must follow base to form a draft id.
func DraftSuffix(base string) string {
	initial := "." + types.StageBuilt.Marker()
	if strings.HasSuffix(base, initial) {
		return ""
	}
	return initial
}

// MarkerChain returns the id suffix that encodes markers, e.g.
// [built gapfilled] -> ".draft.gf".
func MarkerChain(markers []types.Stage) string {
	var b strings.Builder
	for _, m := range markers {
		b.WriteByte('.')
		b.WriteString(m.Marker())
	}
	return b.String()
}

// MatchesState reports whether a record passes a list filter. "draft" selects
// records with no gapfilling applied yet; "gapfilled" selects the rest.
func MatchesState(m *types.ModelRecord, filter string) bool {
	switch filter {
	case "", FilterAll:
		return true
	case FilterDraft:
		return !m.HasStage(types.StageGapfilled)
	case FilterGapfilled:
		return m.HasStage(types.StageGapfilled)
	default:
		return false
	}
}

// IsValidFilter checks a list filter value.
func IsValidFilter(filter string) bool {
	switch filter {
	case "", FilterAll, FilterDraft, FilterGapfilled:
		return true
	default:
		return false
	}
}
