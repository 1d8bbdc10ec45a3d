package sampler

import (
	"math/rand"
	"sort"

	"github.com/price-stats/sampling-cli/internal/model"
)

// drawPPS selects target units with probability proportional to their size
// measure, by systematic selection over a randomized unit order.
//
// Units large enough that n·sᵢ/S ≥ 1 are first peeled off as certainty
// selections; the remainder are drawn systematically, which gives each an
// inclusion probability of exactly n'·sᵢ/S'. Per-stratum inclusion
// probabilities therefore sum to the realized target.
func drawPPS(rng *rand.Rand, units []model.Location, target int) []model.SelectedUnit {
	stratumTotal := stratumSize(units)

	certain, remainder, n := peelCertainty(units, target)

	var selected []model.SelectedUnit
	rank := 0
	for _, u := range certain {
		rank++
		selected = append(selected, model.SelectedUnit{
			FacilityID:    u.FacilityID,
			Name:          u.Name,
			Region:        u.Region,
			SizeMeasure:   u.SizeMeasure(),
			Weight:        share(u.SizeMeasure(), stratumTotal),
			InclusionProb: 1,
			Rank:          rank,
			Certainty:     true,
		})
	}

	if n == 0 || len(remainder) == 0 {
		return selected
	}

	// Randomize the order so the systematic pass carries no frame-order
	// bias, then walk the cumulative size with a fixed skip interval.
	rng.Shuffle(len(remainder), func(i, j int) {
		remainder[i], remainder[j] = remainder[j], remainder[i]
	})

	total := stratumSize(remainder)
	interval := total / float64(n)
	threshold := rng.Float64() * interval

	var cum float64
	for _, u := range remainder {
		size := u.SizeMeasure()
		cum += size
		if cum <= threshold {
			continue
		}
		rank++
		selected = append(selected, model.SelectedUnit{
			FacilityID:    u.FacilityID,
			Name:          u.Name,
			Region:        u.Region,
			SizeMeasure:   size,
			Weight:        share(size, stratumTotal),
			InclusionProb: float64(n) * size / total,
			Rank:          rank,
		})
		threshold += interval
		if len(selected) == len(certain)+n {
			break
		}
	}

	return selected
}

// peelCertainty repeatedly removes units whose size share forces an
// inclusion probability of one, reducing the residual target each pass.
// Returns certainty units (largest first), the remainder, and the residual
// target for the systematic pass.
func peelCertainty(units []model.Location, target int) (certain, remainder []model.Location, n int) {
	remainder = append([]model.Location(nil), units...)
	n = target

	for n > 0 {
		total := stratumSize(remainder)
		if total <= 0 {
			break
		}

		peeled := false
		kept := remainder[:0]
		for _, u := range remainder {
			if float64(n)*u.SizeMeasure()/total >= 1 {
				certain = append(certain, u)
				peeled = true
			} else {
				kept = append(kept, u)
			}
		}
		remainder = kept

		if !peeled {
			break
		}
		n = target - len(certain)
	}

	sort.Slice(certain, func(i, j int) bool {
		if certain[i].SizeMeasure() != certain[j].SizeMeasure() {
			return certain[i].SizeMeasure() > certain[j].SizeMeasure()
		}
		return certain[i].FacilityID < certain[j].FacilityID
	})
	return certain, remainder, n
}

// drawSRS selects target units by simple random sampling, used when the
// stratum has no positive size measure. Every unit's inclusion
// probability is n/N.
func drawSRS(rng *rand.Rand, units []model.Location, target int) []model.SelectedUnit {
	prob := float64(target) / float64(len(units))
	perm := rng.Perm(len(units))[:target]
	sort.Ints(perm)

	selected := make([]model.SelectedUnit, 0, target)
	for rank, idx := range perm {
		u := units[idx]
		selected = append(selected, model.SelectedUnit{
			FacilityID:    u.FacilityID,
			Name:          u.Name,
			Region:        u.Region,
			SizeMeasure:   u.SizeMeasure(),
			InclusionProb: prob,
			Rank:          rank + 1,
		})
	}
	return selected
}
