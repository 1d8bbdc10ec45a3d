package main

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/price-stats/sampling-cli/internal/fetcher"
)

var (
	fetchURL   string
	fetchOut   string
	fetchForce bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download an input file from the data owner's drop site",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dest := fetchOut
		if dest == "" {
			dest = path.Base(fetchURL)
		}
		if info, err := filepath.Abs(dest); err == nil {
			dest = info
		}

		timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second

		var (
			n   int64
			err error
		)
		switch {
		case strings.HasPrefix(fetchURL, "ftp://"):
			f := fetcher.NewFTPFetcher(fetcher.FTPOptions{
				Timeout:  timeout,
				User:     cfg.Fetch.FTPUser,
				Password: cfg.Fetch.FTPPassword,
			})
			n, err = f.DownloadToFile(ctx, fetchURL, dest, fetchForce)
		case strings.HasPrefix(fetchURL, "http://"), strings.HasPrefix(fetchURL, "https://"):
			f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				UserAgent:  cfg.Fetch.UserAgent,
				Timeout:    timeout,
				RatePerSec: cfg.Fetch.RatePerSec,
				Burst:      cfg.Fetch.Burst,
			})
			n, err = f.DownloadToFile(ctx, fetchURL, dest, fetchForce)
		default:
			return eris.Errorf("unsupported URL scheme in %q (want ftp:// or http(s)://)", fetchURL)
		}
		if err != nil {
			return eris.Wrapf(err, "fetch %s", fetchURL)
		}

		zap.L().Info("fetch complete",
			zap.String("url", fetchURL),
			zap.String("dest", dest),
			zap.Int64("bytes", n),
		)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "source URL (required)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "destination path (default: URL basename)")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "overwrite the destination if it exists")
	_ = fetchCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(fetchCmd)
}
