package export

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/price-stats/sampling-cli/internal/model"
)

// Manifest records everything needed to reproduce or audit a draw.
type Manifest struct {
	SampleID   string           `yaml:"sample_id"`
	FrameID    string           `yaml:"frame_id"`
	Period     string           `yaml:"period,omitempty"`
	Seed       int64            `yaml:"seed"`
	DrawnAt    time.Time        `yaml:"drawn_at"`
	Targets    map[string]int   `yaml:"targets,omitempty"`
	Default    int              `yaml:"default_size,omitempty"`
	MaxPeriods int              `yaml:"rotation_max_periods,omitempty"`
	RotatedOut []string         `yaml:"rotated_out,omitempty"`
	Strata     []StratumSummary `yaml:"strata"`
}

// StratumSummary tallies one stratum of the sample.
type StratumSummary struct {
	Region       string  `yaml:"region"`
	Selected     int     `yaml:"selected"`
	Certainty    int     `yaml:"certainty"`
	Continuing   int     `yaml:"continuing"`
	New          int     `yaml:"new"`
	SumInclusion float64 `yaml:"sum_inclusion_prob"`
}

// BuildManifest summarizes a sample for the manifest file.
func BuildManifest(s *model.Sample, targets map[string]int, defaultSize, maxPeriods int, rotatedOut []string) Manifest {
	m := Manifest{
		SampleID:   s.ID,
		FrameID:    s.FrameID,
		Period:     s.Period,
		Seed:       s.Seed,
		DrawnAt:    s.DrawnAt,
		Targets:    targets,
		Default:    defaultSize,
		MaxPeriods: maxPeriods,
		RotatedOut: rotatedOut,
	}

	byRegion := s.UnitsByRegion()
	regions := make([]string, 0, len(byRegion))
	for region := range byRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	for _, region := range regions {
		summary := StratumSummary{Region: region}
		for _, u := range byRegion[region] {
			summary.Selected++
			summary.SumInclusion += u.InclusionProb
			if u.Certainty {
				summary.Certainty++
			}
			if u.Rotation == model.RotationContinuing {
				summary.Continuing++
			} else {
				summary.New++
			}
		}
		m.Strata = append(m.Strata, summary)
	}

	return m
}

// WriteManifest writes the draw manifest as YAML.
func WriteManifest(m Manifest, path string, overwrite bool) error {
	if err := checkOverwrite(path, overwrite); err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
