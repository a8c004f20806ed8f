package types

import (
	"sort"
	"time"
)

// ModelRecord is a stored, immutable model artifact. Pipeline stages never
// mutate a record; each stage produces a new record with a copied network.
type ModelRecord struct {
	ID             string            `json:"model_id"`
	Network        *Network          `json:"-"`                         // exclusively owned
	ParentID       string            `json:"parent_id,omitempty"`       // weak back-reference, lookup only
	StageMarkers   []Stage           `json:"stage_markers"`             // append-only derivation history
	Stats          ModelStats        `json:"stats"`                     // captured at creation
	Template       string            `json:"template"`                  // template the draft was built from
	TestConditions *TestConditionSet `json:"test_conditions,omitempty"` // only on the record that produced them
	CreatedAt      time.Time         `json:"created_at"`
}

// CurrentStage returns the most recently applied stage.
func (m *ModelRecord) CurrentStage() Stage {
	if len(m.StageMarkers) == 0 {
		return ""
	}
	return m.StageMarkers[len(m.StageMarkers)-1]
}

// HasStage reports whether the stage was ever applied to this record's lineage.
func (m *ModelRecord) HasStage(s Stage) bool {
	for _, v := range m.StageMarkers {
		if v == s {
			return true
		}
	}
	return false
}

// Bounds is a signed flux bound pair. Lower == Upper is allowed and represents
// a blocked compound (e.g. oxygen at (0, 0) for anaerobic media).
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// BoundsMap maps compound ids to bound pairs. It is the single media
// representation used from the tool surface down to the format bridge.
type BoundsMap map[string]Bounds

// MediaRecord is an immutable growth medium. "Modifying" a medium means
// creating a new record.
type MediaRecord struct {
	ID           string    `json:"media_id"`
	Description  string    `json:"description,omitempty"`
	Bounds       BoundsMap `json:"bounds"`
	IsPredefined bool      `json:"is_predefined"`
	CreatedAt    time.Time `json:"created_at"`
}

// Compounds returns the compound ids of the medium in sorted order.
func (m *MediaRecord) Compounds() []string {
	out := make([]string, 0, len(m.Bounds))
	for id := range m.Bounds {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TestCondition is a single entry of the correction test battery.
type TestCondition struct {
	MediaID      string  `json:"media_id"`
	Target       string  `json:"target"`        // objective reaction tested
	MinObjective float64 `json:"min_objective"` // minimum objective value required
}

// TestConditionSet is produced once per lineage by the correction stage and
// shared by reference with every gapfilling descendant.
type TestConditionSet struct {
	ID         string          `json:"id"`
	Conditions []TestCondition `json:"conditions"`
	Passed     int             `json:"passed"`
	Failed     int             `json:"failed"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Feature is an annotated genome feature.
type Feature struct {
	ID        string   `json:"id"`
	Functions []string `json:"functions"`
}

// Genome is the annotated genome input for draft reconstruction.
type Genome struct {
	ID       string    `json:"id,omitempty"`
	Features []Feature `json:"features"`
}

// AddedReaction is one reaction contributed by a gapfilling solution.
type AddedReaction struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Direction Direction `json:"direction"`
	Lower     float64   `json:"lower_bound"`
	Upper     float64   `json:"upper_bound"`
	New       bool      `json:"new"` // false when an existing reaction's bounds were widened
}

// RecordID implements storage.Record.
func (m *ModelRecord) RecordID() string { return m.ID }

// RecordID implements storage.Record.
func (m *MediaRecord) RecordID() string { return m.ID }
