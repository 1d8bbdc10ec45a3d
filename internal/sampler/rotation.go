package sampler

import (
	"go.uber.org/zap"

	"github.com/price-stats/sampling-cli/internal/model"
)

// applyRotation removes units that have been selected for maxPeriods
// consecutive periods, limiting respondent burden. A stratum is never
// emptied by rotation: when exclusion would remove every unit, the
// longest-retained units are kept anyway and a warning is logged.
func applyRotation(units []model.Location, retained map[string]int, maxPeriods int) (available []model.Location, rotatedOut []string) {
	if maxPeriods <= 0 || len(retained) == 0 {
		return units, nil
	}

	available = make([]model.Location, 0, len(units))
	for _, u := range units {
		if retained[u.FacilityID] >= maxPeriods {
			rotatedOut = append(rotatedOut, u.FacilityID)
			continue
		}
		available = append(available, u)
	}

	if len(available) == 0 && len(units) > 0 {
		zap.L().Warn("rotation would empty the stratum, keeping retained units",
			zap.String("region", units[0].Region),
			zap.Int("units", len(units)),
		)
		return units, nil
	}

	return available, rotatedOut
}

// RetainedCounts derives, from sample history ordered most recent first,
// how many consecutive periods each facility has been selected. The count
// stops at the first period a facility was absent.
func RetainedCounts(history []model.Sample) map[string]int {
	counts := make(map[string]int)
	if len(history) == 0 {
		return counts
	}

	// Seed with the most recent sample, then extend streaks backwards.
	for _, u := range history[0].Units {
		counts[u.FacilityID] = 1
	}
	for i := 1; i < len(history); i++ {
		for id, streak := range counts {
			if streak == i && history[i].Contains(id) {
				counts[id] = streak + 1
			}
		}
	}
	return counts
}
