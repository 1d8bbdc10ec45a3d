package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/price-stats/sampling-cli/internal/export"
	"github.com/price-stats/sampling-cli/internal/fetcher"
	"github.com/price-stats/sampling-cli/internal/frame"
	"github.com/price-stats/sampling-cli/internal/model"
	"github.com/price-stats/sampling-cli/internal/sampler"
	"github.com/price-stats/sampling-cli/internal/store"
)

var (
	drawFrameRef   string
	drawSize       int
	drawTargets    []string
	drawSeed       int64
	drawOut        string
	drawPrevious   string
	drawNoRotation bool
	drawForce      bool
)

var sampleDrawCmd = &cobra.Command{
	Use:   "draw",
	Short: "Draw a location sample from a frame",
	Long:  "Selects locations per region with probability proportional to average turnover per outlet, honoring rotation against the previous period's sample. The draw is reproducible under a fixed seed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		f, err := resolveFrame(ctx, st)
		if err != nil {
			return err
		}

		targets, err := parseTargets(drawTargets)
		if err != nil {
			return err
		}
		size := drawSize
		if size == 0 && len(targets) == 0 {
			size = cfg.Sample.Size
		}

		seed := drawSeed
		if seed == 0 {
			seed = cfg.Sample.Seed
		}
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		opts := sampler.Options{
			Seed: seed,
			Allocation: sampler.Allocation{
				Default: size,
				Targets: targets,
			},
		}
		if !drawNoRotation && cfg.Sample.Rotation.Enabled {
			if err := loadRotation(ctx, st, &opts); err != nil {
				return err
			}
		}

		run, err := st.CreateDrawRun(ctx, f.ID, seed)
		if err != nil {
			return eris.Wrap(err, "record draw run")
		}

		result, err := sampler.Draw(f, opts)
		if err != nil {
			if failErr := st.FailDrawRun(ctx, run.ID, err); failErr != nil {
				zap.L().Warn("could not record draw failure", zap.Error(failErr))
			}
			return eris.Wrap(err, "draw sample")
		}

		output := drawOut
		if output == "" {
			output = cfg.Sample.Output
		}
		manifest := export.BuildManifest(result.Sample, targets, size, opts.MaxPeriods, result.RotatedOut)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return st.SaveSample(gctx, result.Sample)
		})
		g.Go(func() error {
			return export.WriteSample(result.Sample, output, drawForce)
		})
		g.Go(func() error {
			return export.WriteManifest(manifest, cfg.Sample.Manifest, drawForce)
		})
		if err := g.Wait(); err != nil {
			if failErr := st.FailDrawRun(ctx, run.ID, err); failErr != nil {
				zap.L().Warn("could not record draw failure", zap.Error(failErr))
			}
			return eris.Wrap(err, "write sample outputs")
		}

		if err := st.CompleteDrawRun(ctx, run.ID, result.Sample.ID, len(result.Sample.Units)); err != nil {
			return eris.Wrap(err, "record draw run")
		}

		zap.L().Info("sample draw complete",
			zap.String("sample_id", result.Sample.ID),
			zap.String("frame_id", f.ID),
			zap.Int64("seed", seed),
			zap.Int("selected", len(result.Sample.Units)),
			zap.Int("rotated_out", len(result.RotatedOut)),
			zap.String("output", output),
		)
		return nil
	},
}

// resolveFrame loads the frame to sample from: a frame ID, "latest" for
// the newest stored frame, or a path to a built frame table.
func resolveFrame(ctx context.Context, st store.Store) (*model.Frame, error) {
	ref := drawFrameRef
	if ref == "" || ref == "latest" {
		f, err := st.LatestFrame(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load latest frame (run `frame build` first, or pass --frame)")
		}
		return f, nil
	}
	if isFramePath(ref) {
		f, err := frame.LoadFrameFile(ctx, ref, frame.ReadOptions{SheetName: cfg.Frame.SheetName})
		if err != nil {
			return nil, eris.Wrapf(err, "load frame file %s", ref)
		}
		return f, nil
	}
	f, err := st.GetFrame(ctx, ref)
	if err != nil {
		return nil, eris.Wrapf(err, "load frame %s", ref)
	}
	return f, nil
}

func isFramePath(ref string) bool {
	for _, ext := range []string{".xlsx", ".xls", ".csv", ".shp"} {
		if strings.HasSuffix(strings.ToLower(ref), ext) {
			return true
		}
	}
	return false
}

// loadRotation fills the sampler's rotation inputs from the previous
// sample: an explicit --previous file, or the store's sample history.
func loadRotation(ctx context.Context, st store.Store, opts *sampler.Options) error {
	opts.MaxPeriods = cfg.Sample.Rotation.MaxPeriods

	if drawPrevious != "" {
		prev, err := loadPreviousSampleFile(ctx, drawPrevious)
		if err != nil {
			return eris.Wrapf(err, "load previous sample %s", drawPrevious)
		}
		opts.Previous = prev
		opts.Retained = sampler.RetainedCounts([]model.Sample{*prev})
		return nil
	}

	history, err := st.RecentSamples(ctx, opts.MaxPeriods)
	if err != nil {
		return eris.Wrap(err, "load sample history")
	}
	if len(history) == 0 {
		return nil
	}
	opts.Previous = &history[0]
	opts.Retained = sampler.RetainedCounts(history)
	return nil
}

// loadPreviousSampleFile reads an exported sample table; only the facility
// IDs matter for rotation.
func loadPreviousSampleFile(ctx context.Context, path string) (*model.Sample, error) {
	var header []string
	var rows [][]string
	var err error

	if strings.HasSuffix(strings.ToLower(path), ".xlsx") || strings.HasSuffix(strings.ToLower(path), ".xls") {
		header, rows, err = fetcher.ReadXLSXFile(path, fetcher.XLSXOptions{})
	} else {
		header, rows, err = fetcher.ReadCSVFile(ctx, path, fetcher.CSVOptions{TrimSpace: true})
	}
	if err != nil {
		return nil, err
	}

	idIdx := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "FacilityID") {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return nil, eris.Errorf("%s has no FacilityID column", path)
	}

	prev := &model.Sample{ID: path}
	for _, row := range rows {
		if idIdx >= len(row) || row[idIdx] == "" {
			continue
		}
		prev.Units = append(prev.Units, model.SelectedUnit{FacilityID: row[idIdx]})
	}
	return prev, nil
}

// parseTargets parses repeated region=n pairs.
func parseTargets(pairs []string) (map[string]int, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	targets := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		region, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, eris.Errorf("invalid target %q (want region=n)", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, eris.Errorf("invalid target size in %q", pair)
		}
		targets[strings.TrimSpace(region)] = n
	}
	return targets, nil
}

func init() {
	sampleDrawCmd.Flags().StringVar(&drawFrameRef, "frame", "latest", "frame to draw from: frame ID, 'latest', or a frame table path")
	sampleDrawCmd.Flags().IntVar(&drawSize, "size", 0, "target sample size per region (default from config)")
	sampleDrawCmd.Flags().StringSliceVar(&drawTargets, "targets", nil, "per-region targets as region=n (comma separated or repeated, overrides --size)")
	sampleDrawCmd.Flags().Int64Var(&drawSeed, "seed", 0, "random seed for a reproducible draw (0 = time-based)")
	sampleDrawCmd.Flags().StringVar(&drawOut, "out", "", "output sample table")
	sampleDrawCmd.Flags().StringVar(&drawPrevious, "previous", "", "previous period's sample table for rotation (default: store history)")
	sampleDrawCmd.Flags().BoolVar(&drawNoRotation, "no-rotation", false, "disable rotation against previous samples")
	sampleDrawCmd.Flags().BoolVar(&drawForce, "force", false, "overwrite output files if they exist")
	sampleCmd.AddCommand(sampleDrawCmd)
}
