package frame

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/price-stats/sampling-cli/internal/model"
)

// BuildOptions configures a frame build.
type BuildOptions struct {
	Period     string
	Source     string
	MinOutlets int // locations below this combined outlet count are ineligible
}

// Build turns raw location records into a sampling frame:
//
//  1. reject duplicate facility IDs (the frame invariant),
//  2. fold each donor's turnover and outlet count onto its acceptor,
//  3. derive combined totals and average turnover per outlet,
//  4. drop donors and locations below the outlet threshold,
//  5. report donors claimed by more than one acceptor.
//
// The returned frame's locations are ordered by facility ID so downstream
// draws are reproducible.
func Build(locations []model.Location, opts BuildOptions) (*model.Frame, *model.BuildReport, error) {
	if len(locations) == 0 {
		return nil, nil, eris.New("frame: no locations in input")
	}
	if opts.MinOutlets < 0 {
		return nil, nil, eris.Errorf("frame: negative min outlets %d", opts.MinOutlets)
	}

	log := zap.L().With(zap.String("component", "frame.builder"))

	byID := make(map[string]model.Location, len(locations))
	for _, loc := range locations {
		if _, dup := byID[loc.FacilityID]; dup {
			return nil, nil, eris.Errorf("frame: duplicate facility ID %s in input", loc.FacilityID)
		}
		byID[loc.FacilityID] = loc
	}

	report := &model.BuildReport{InputRows: len(locations)}

	merged := make([]model.Location, 0, len(locations))
	for _, loc := range locations {
		if loc.MergeID != "" {
			donor, ok := byID[loc.MergeID]
			if !ok {
				log.Warn("merge link points at a missing facility",
					zap.String("facility_id", loc.FacilityID),
					zap.String("merge_id", loc.MergeID),
				)
			} else {
				loc.DonorTurnover = donor.Turnover
				loc.DonorOutlets = donor.Outlets
			}
		}

		loc.TotalTurnover = loc.Turnover + loc.DonorTurnover
		loc.TotalOutlets = loc.Outlets + loc.DonorOutlets
		if loc.TotalOutlets > 0 {
			loc.AvgTurnover = loc.TotalTurnover / float64(loc.TotalOutlets)
		}

		merged = append(merged, loc)
	}

	eligible := make([]model.Location, 0, len(merged))
	for _, loc := range merged {
		if loc.MergeRole == model.MergeRoleDonor {
			report.Donors++
			continue
		}
		if loc.TotalOutlets < opts.MinOutlets {
			report.BelowMinOutlet++
			continue
		}
		eligible = append(eligible, loc)
	}
	report.Eligible = len(eligible)
	report.DuplicateLinks = findDuplicateLinks(eligible)

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].FacilityID < eligible[j].FacilityID
	})

	log.Info("frame built",
		zap.String("period", opts.Period),
		zap.Int("input_rows", report.InputRows),
		zap.Int("donors_folded", report.Donors),
		zap.Int("below_min_outlet", report.BelowMinOutlet),
		zap.Int("eligible", report.Eligible),
		zap.Int("duplicate_links", len(report.DuplicateLinks)),
	)

	return &model.Frame{
		ID:        uuid.New().String(),
		Period:    opts.Period,
		Source:    opts.Source,
		BuiltAt:   time.Now().UTC(),
		Locations: eligible,
	}, report, nil
}

// findDuplicateLinks returns merge IDs claimed by more than one acceptor.
// These are data-entry mistakes: a donor can only be folded into one row,
// so the duplicates are reported for manual reassignment.
func findDuplicateLinks(locations []model.Location) []model.DuplicateLink {
	claims := make(map[string][]string)
	for _, loc := range locations {
		if loc.MergeID == "" {
			continue
		}
		claims[loc.MergeID] = append(claims[loc.MergeID], loc.FacilityID)
	}

	var dups []model.DuplicateLink
	for mergeID, facilityIDs := range claims {
		if len(facilityIDs) < 2 {
			continue
		}
		sort.Strings(facilityIDs)
		dups = append(dups, model.DuplicateLink{MergeID: mergeID, FacilityIDs: facilityIDs})
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].MergeID < dups[j].MergeID })
	return dups
}
