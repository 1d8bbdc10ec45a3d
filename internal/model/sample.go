package model

import "time"

// RotationStatus tags how a selected unit relates to the previous period's
// sample. Rotation limits respondent burden by controlling the overlap
// between successive samples.
type RotationStatus string

const (
	RotationNew        RotationStatus = "new"        // not in the previous sample
	RotationContinuing RotationStatus = "continuing" // carried over from the previous sample
)

// SelectedUnit is one drawn location, tagged with its selection metadata.
type SelectedUnit struct {
	FacilityID    string         `json:"facility_id"`
	Name          string         `json:"name"`
	Region        string         `json:"region"`
	SizeMeasure   float64        `json:"size_measure"`
	Weight        float64        `json:"weight"`         // share of the stratum's total size measure
	InclusionProb float64        `json:"inclusion_prob"` // probability the unit was selected
	Rank          int            `json:"rank"`           // 1-based selection order within the stratum
	Certainty     bool           `json:"certainty"`      // selected with probability one
	Rotation      RotationStatus `json:"rotation"`
}

// Sample is the set of units drawn from a frame for one period.
type Sample struct {
	ID      string         `json:"id"`
	FrameID string         `json:"frame_id"`
	Period  string         `json:"period"`
	Seed    int64          `json:"seed"`
	DrawnAt time.Time      `json:"drawn_at"`
	Units   []SelectedUnit `json:"units"`
}

// UnitsByRegion groups the selected units by stratum.
func (s *Sample) UnitsByRegion() map[string][]SelectedUnit {
	byRegion := make(map[string][]SelectedUnit)
	for _, u := range s.Units {
		byRegion[u.Region] = append(byRegion[u.Region], u)
	}
	return byRegion
}

// Contains reports whether the sample includes the given facility.
func (s *Sample) Contains(facilityID string) bool {
	for _, u := range s.Units {
		if u.FacilityID == facilityID {
			return true
		}
	}
	return false
}

// DrawStatus is the terminal state of a sampler invocation.
type DrawStatus string

const (
	DrawStatusComplete DrawStatus = "complete"
	DrawStatusFailed   DrawStatus = "failed"
)

// DrawRun is the persisted record of a single sampler invocation.
type DrawRun struct {
	ID        string     `json:"id"`
	FrameID   string     `json:"frame_id"`
	SampleID  string     `json:"sample_id,omitempty"`
	Seed      int64      `json:"seed"`
	Status    DrawStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	UnitCount int        `json:"unit_count"`
	CreatedAt time.Time  `json:"created_at"`
}
