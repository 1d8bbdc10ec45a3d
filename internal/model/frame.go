// Package model defines the core types shared across the frame builder,
// the sampler, and the store.
package model

import "time"

// MergeRole labels a location's role in a paired-location merge.
// Paired locations arise when one retail site straddles an administrative
// boundary and is surveyed as two rows: the acceptor row keeps the combined
// figures, the donor row is dropped from the frame after its turnover and
// outlet count have been folded in.
type MergeRole int

const (
	MergeRoleNone     MergeRole = 0 // unpaired location
	MergeRoleAcceptor MergeRole = 1 // keeps merged figures
	MergeRoleDonor    MergeRole = 2 // contributes figures, then excluded
)

// Location is a single sampling unit on the frame.
type Location struct {
	FacilityID string    `json:"facility_id"`
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	MergeID    string    `json:"merge_id,omitempty"` // FacilityID of the paired donor
	MergeRole  MergeRole `json:"merge_role"`
	Turnover   float64   `json:"turnover"` // annual turnover reported on this row
	Outlets    int       `json:"outlets"`

	// Derived during frame build.
	DonorTurnover float64 `json:"donor_turnover,omitempty"`
	DonorOutlets  int     `json:"donor_outlets,omitempty"`
	TotalTurnover float64 `json:"total_turnover"`
	TotalOutlets  int     `json:"total_outlets"`
	AvgTurnover   float64 `json:"avg_turnover"` // size measure for PPS selection

	// Geom is the location's point geometry as EWKB (SRID 4326), when the
	// input carried coordinates. Nil otherwise.
	Geom []byte `json:"geom,omitempty"`
}

// SizeMeasure returns the measure used for probability-proportional
// selection. Zero means the unit carries no usable size.
func (l Location) SizeMeasure() float64 {
	if l.AvgTurnover > 0 {
		return l.AvgTurnover
	}
	return 0
}

// Frame is a full snapshot of eligible sampling units for one period.
// Frames are rebuilt from fresh inputs each run, never mutated in place.
type Frame struct {
	ID        string     `json:"id"`
	Period    string     `json:"period"`
	Source    string     `json:"source"` // input file the frame was built from
	BuiltAt   time.Time  `json:"built_at"`
	Locations []Location `json:"locations"`
}

// Strata partitions the frame by region. Every location belongs to exactly
// one stratum, so the partition is exhaustive and disjoint by construction.
func (f *Frame) Strata() map[string][]Location {
	strata := make(map[string][]Location)
	for _, loc := range f.Locations {
		strata[loc.Region] = append(strata[loc.Region], loc)
	}
	return strata
}

// DuplicateLink records a donor claimed by more than one acceptor row,
// found during frame build and reported for manual reassignment.
type DuplicateLink struct {
	MergeID     string   `json:"merge_id"`
	FacilityIDs []string `json:"facility_ids"` // acceptors claiming the donor
}

// BuildReport summarizes a frame build for logging and persistence.
type BuildReport struct {
	InputRows      int             `json:"input_rows"`
	Donors         int             `json:"donors"`
	BelowMinOutlet int             `json:"below_min_outlet"`
	Eligible       int             `json:"eligible"`
	DuplicateLinks []DuplicateLink `json:"duplicate_links,omitempty"`
}
