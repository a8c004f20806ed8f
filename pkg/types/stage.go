package types

// Stage is a derivation stage applied to a model record.
type Stage string

// Stage constants for model derivation tracking
const (
	StageBuilt     Stage = "built"     // Draft wrapped from the reconstruction engine
	StageCorrected Stage = "corrected" // Energy-metabolism correction across the test battery
	StageGapfilled Stage = "gapfilled" // Reactions added to reach growth on a medium
)

// ValidStages contains all stage values in pipeline order.
var ValidStages = []Stage{
	StageBuilt,
	StageCorrected,
	StageGapfilled,
}

// IsValidStage checks if the given stage is known.
func IsValidStage(s Stage) bool {
	for _, v := range ValidStages {
		if s == v {
			return true
		}
	}
	return false
}

// Marker returns the id suffix marker for a stage.
func (s Stage) Marker() string {
	switch s {
	case StageBuilt:
		return "draft"
	case StageCorrected:
		return "corr"
	case StageGapfilled:
		return "gf"
	default:
		return ""
	}
}

// Direction is the symbolic reaction direction reported by gapfilling.
type Direction string

// Direction symbols
const (
	DirectionForward    Direction = ">"
	DirectionReverse    Direction = "<"
	DirectionReversible Direction = "="
)
