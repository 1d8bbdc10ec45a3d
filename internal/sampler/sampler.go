// Package sampler draws probability samples of locations from a frame,
// stratified by region, with rotation control against previous periods.
package sampler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/price-stats/sampling-cli/internal/model"
)

// Allocation maps strata to target sample sizes. Targets override the
// default; a zero default means only listed strata are sampled.
type Allocation struct {
	Default int
	Targets map[string]int
}

// TargetFor returns the target size for a region and whether one applies.
func (a Allocation) TargetFor(region string) (int, bool) {
	if n, ok := a.Targets[region]; ok {
		return n, true
	}
	if a.Default > 0 {
		return a.Default, true
	}
	return 0, false
}

// Options configures a draw.
type Options struct {
	Seed       int64
	Allocation Allocation
	Previous   *model.Sample  // previous period's sample, nil when none
	Retained   map[string]int // consecutive periods each facility has been selected
	MaxPeriods int            // rotate a unit out after this many consecutive periods (0 = never)
}

// Result is the outcome of a draw.
type Result struct {
	Sample     *model.Sample
	RotatedOut []string // facility IDs excluded from this draw by rotation
}

// Draw selects units from every allocated stratum of the frame. The same
// seed and frame always produce the same sample: strata are processed in
// sorted order and units are ordered by facility ID before any randomness
// is applied.
func Draw(f *model.Frame, opts Options) (*Result, error) {
	if err := validate(f, opts); err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "sampler"))
	rng := rand.New(rand.NewSource(opts.Seed))

	strata := f.Strata()
	regions := make([]string, 0, len(strata))
	for region := range strata {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	result := &Result{
		Sample: &model.Sample{
			ID:      uuid.New().String(),
			FrameID: f.ID,
			Period:  f.Period,
			Seed:    opts.Seed,
			DrawnAt: time.Now().UTC(),
		},
	}

	for _, region := range regions {
		target, ok := opts.Allocation.TargetFor(region)
		if !ok {
			log.Debug("stratum has no allocation, skipping", zap.String("region", region))
			continue
		}

		units := append([]model.Location(nil), strata[region]...)
		sort.Slice(units, func(i, j int) bool { return units[i].FacilityID < units[j].FacilityID })

		available, rotatedOut := applyRotation(units, opts.Retained, opts.MaxPeriods)
		result.RotatedOut = append(result.RotatedOut, rotatedOut...)

		selected := drawStratum(rng, region, available, target)
		for i := range selected {
			selected[i].Rotation = rotationStatus(opts.Previous, selected[i].FacilityID)
		}
		result.Sample.Units = append(result.Sample.Units, selected...)

		log.Info("stratum drawn",
			zap.String("region", region),
			zap.Int("target", target),
			zap.Int("available", len(available)),
			zap.Int("selected", len(selected)),
			zap.Int("rotated_out", len(rotatedOut)),
		)
	}

	return result, nil
}

// validate enforces the error taxonomy before any randomness is consumed.
func validate(f *model.Frame, opts Options) error {
	if len(f.Locations) == 0 {
		return eris.Errorf("sampler: frame %s has no locations", f.ID)
	}
	if opts.Allocation.Default < 0 {
		return eris.Errorf("sampler: invalid sample size %d", opts.Allocation.Default)
	}
	if opts.Allocation.Default == 0 && len(opts.Allocation.Targets) == 0 {
		return eris.New("sampler: no sample size or per-stratum targets given")
	}

	strata := f.Strata()
	for region, n := range opts.Allocation.Targets {
		if n <= 0 {
			return eris.Errorf("sampler: invalid sample size %d for stratum %q", n, region)
		}
		if len(strata[region]) == 0 {
			return eris.Errorf("sampler: stratum %q has no eligible units", region)
		}
	}
	return nil
}

// drawStratum selects up to target units from one stratum. When the
// stratum is no larger than the target every unit is taken. PPS on the
// size measure is used when the stratum carries one, otherwise SRS.
func drawStratum(rng *rand.Rand, region string, units []model.Location, target int) []model.SelectedUnit {
	if len(units) == 0 {
		zap.L().Warn("stratum empty after rotation, nothing to draw", zap.String("region", region))
		return nil
	}

	if target >= len(units) {
		if target > len(units) {
			zap.L().Warn("target exceeds stratum size, taking all units",
				zap.String("region", region),
				zap.Int("target", target),
				zap.Int("available", len(units)),
			)
		}
		return takeAll(units)
	}

	if stratumSize(units) > 0 {
		return drawPPS(rng, units, target)
	}
	return drawSRS(rng, units, target)
}

// takeAll returns every unit with inclusion probability one.
func takeAll(units []model.Location) []model.SelectedUnit {
	total := stratumSize(units)
	selected := make([]model.SelectedUnit, 0, len(units))
	for i, u := range units {
		selected = append(selected, model.SelectedUnit{
			FacilityID:    u.FacilityID,
			Name:          u.Name,
			Region:        u.Region,
			SizeMeasure:   u.SizeMeasure(),
			Weight:        share(u.SizeMeasure(), total),
			InclusionProb: 1,
			Rank:          i + 1,
			Certainty:     true,
		})
	}
	return selected
}

func rotationStatus(previous *model.Sample, facilityID string) model.RotationStatus {
	if previous != nil && previous.Contains(facilityID) {
		return model.RotationContinuing
	}
	return model.RotationNew
}

func stratumSize(units []model.Location) float64 {
	var total float64
	for _, u := range units {
		total += u.SizeMeasure()
	}
	return total
}

func share(size, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return size / total
}
