package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/datacache/internal/prefetch"
)

var (
	fetchRefresh bool
	fetchJobs    int
	fetchTimeout time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <reference>...",
	Short: "Fetch references into the cache and print their local paths.",
	Long: `fetch resolves each reference, downloads it into the cache unless a
published entry already exists, and prints one local path per line.
Multiple references are fetched through a bounded worker pool; a failing
reference is reported on stderr without stopping the rest of the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchRefresh, "refresh", false, "download again even when a cache entry exists")
	fetchCmd.Flags().IntVar(&fetchJobs, "jobs", 0, "concurrent downloads (defaults to the configured prefetch workers)")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 0, "per-download timeout override")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)
	facade := newFacade(cfg, logger)

	summary := prefetch.Run(
		cmd.Context(),
		&facade,
		args,
		prefetch.NewRunParam(cfg.PrefetchWorkers(), fetchRefresh),
	)

	for _, outcome := range summary.Outcomes() {
		if outcomeErr := outcome.Err(); outcomeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "fetch failed for %s: %v\n", outcome.Reference(), outcomeErr)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome.LocalPath())
	}

	logger.Info().
		Int("fetched", summary.Fetched()).
		Int("hits", summary.Hits()).
		Int("failures", summary.Failures()).
		Dur("elapsed", summary.Elapsed()).
		Msg("fetch finished")

	if summary.Failures() > 0 {
		return fmt.Errorf("%d of %d fetches failed", summary.Failures(), len(args))
	}
	return nil
}
