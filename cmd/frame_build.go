package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/price-stats/sampling-cli/internal/export"
	"github.com/price-stats/sampling-cli/internal/frame"
)

var (
	frameBuildIn     string
	frameBuildOut    string
	frameBuildPeriod string
	frameBuildForce  bool
)

var frameBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the sampling frame from an input file",
	Long:  "Loads location records, folds paired donor locations into their acceptors, applies eligibility rules, writes the frame table plus a duplicate-link report, and records the frame in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		input := frameBuildIn
		if input == "" {
			input = cfg.Frame.Input
		}
		output := frameBuildOut
		if output == "" {
			output = cfg.Frame.Output
		}
		period := frameBuildPeriod
		if period == "" {
			period = cfg.Frame.Period
		}

		locations, err := frame.ReadLocations(ctx, input, frame.ReadOptions{SheetName: cfg.Frame.SheetName})
		if err != nil {
			return eris.Wrapf(err, "read %s", input)
		}

		f, report, err := frame.Build(locations, frame.BuildOptions{
			Period:     period,
			Source:     input,
			MinOutlets: cfg.Frame.MinOutlets,
		})
		if err != nil {
			return eris.Wrap(err, "build frame")
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return st.SaveFrame(gctx, f)
		})
		g.Go(func() error {
			return export.WriteFrame(f, output, frameBuildForce)
		})
		if len(report.DuplicateLinks) > 0 {
			g.Go(func() error {
				return export.WriteDuplicateLinks(report.DuplicateLinks, cfg.Frame.DuplicatesOutput, frameBuildForce)
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "write frame outputs")
		}

		zap.L().Info("frame build complete",
			zap.String("frame_id", f.ID),
			zap.String("input", input),
			zap.String("output", output),
			zap.Int("eligible", report.Eligible),
			zap.Int("duplicate_links", len(report.DuplicateLinks)),
		)
		return nil
	},
}

func init() {
	frameBuildCmd.Flags().StringVar(&frameBuildIn, "in", "", "input file (.xlsx, .csv, or .shp)")
	frameBuildCmd.Flags().StringVar(&frameBuildOut, "out", "", "output frame table")
	frameBuildCmd.Flags().StringVar(&frameBuildPeriod, "period", "", "period label for the frame (e.g. 2022)")
	frameBuildCmd.Flags().BoolVar(&frameBuildForce, "force", false, "overwrite output files if they exist")
	frameCmd.AddCommand(frameBuildCmd)
}
