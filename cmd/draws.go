package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var drawsLimit int

var drawsCmd = &cobra.Command{
	Use:   "draws",
	Short: "List recorded draw runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListDrawRuns(ctx, drawsLimit)
		if err != nil {
			return eris.Wrap(err, "list draw runs")
		}
		if len(runs) == 0 {
			fmt.Println("no draw runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tRUN\tFRAME\tSAMPLE\tSEED\tSTATUS\tUNITS")
		for _, run := range runs {
			sampleID := run.SampleID
			if sampleID == "" {
				sampleID = "-"
			}
			status := string(run.Status)
			if run.Error != "" {
				status = fmt.Sprintf("%s (%s)", status, run.Error)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
				run.CreatedAt.Format("2006-01-02 15:04:05"),
				run.ID, run.FrameID, sampleID, run.Seed, status, run.UnitCount)
		}
		return w.Flush()
	},
}

func init() {
	drawsCmd.Flags().IntVar(&drawsLimit, "limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(drawsCmd)
}
