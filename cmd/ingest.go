package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skylinedata/rental-ingest/internal/geo"
	"github.com/skylinedata/rental-ingest/internal/ingest"
	"github.com/skylinedata/rental-ingest/internal/monitoring"
	"github.com/skylinedata/rental-ingest/internal/store"
)

// alertLookbackHours bounds the run-log window the post-run alert
// evaluation considers.
const alertLookbackHours = 24

var (
	ingestSources        []string
	ingestDryRun         bool
	ingestPartitionsFile string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, normalize, and load listings for the configured sources",
	Long:  "Runs every registered source (or the --sources subset) in order: drains each ZIP partition page by page, normalizes and deduplicates the records, and replaces the source's raw listing table in one transaction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Credential check before any network or DB activity.
		if err := cfg.RapidAPI.Validate(); err != nil {
			return err
		}

		sources, err := ingest.Filter(ingestSources)
		if err != nil {
			return err
		}

		ref, err := geo.Load(resolvePartitionsFile(ingestPartitionsFile, cfg.Geo.PartitionsFile))
		if err != nil {
			return err
		}

		var st store.Store
		if !ingestDryRun {
			st, err = store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
		}

		eng := ingest.NewEngine(ingest.EngineOptions{
			Store:     st,
			Config:    cfg,
			Reference: ref,
			DryRun:    ingestDryRun,
		})

		summary, err := eng.Run(ctx, sources)
		if err != nil {
			return err
		}

		if !ingestDryRun && cfg.Alert.WebhookURL != "" {
			evaluateAlerts(ctx, st)
		}

		return summaryError(summary)
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestSources, "sources", nil, "subset of sources to run (default all)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "fetch and report without touching the database")
	ingestCmd.Flags().StringVar(&ingestPartitionsFile, "partitions-file", "", "YAML geography reference replacing the built-ins")
	rootCmd.AddCommand(ingestCmd)
}

// resolvePartitionsFile prefers the flag value over the configured path.
func resolvePartitionsFile(flagPath, cfgPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return cfgPath
}

// summaryError converts per-source failures into a nonzero exit.
func summaryError(summary *ingest.Summary) error {
	failed := summary.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, len(failed))
	for i, run := range failed {
		names[i] = run.Source
	}
	return eris.Errorf("ingest: %d of %d sources failed: %s", len(failed), len(summary.Runs), strings.Join(names, ", "))
}

// evaluateAlerts posts webhook alerts for threshold breaches over the
// recent run log. Alerting is best-effort: failures are logged, never
// returned.
func evaluateAlerts(ctx context.Context, st store.Store) {
	snap, err := monitoring.NewCollector(st).Collect(ctx, alertLookbackHours)
	if err != nil {
		zap.L().Warn("alert evaluation skipped", zap.Error(err))
		return
	}

	alerter := monitoring.NewAlerter(cfg.Alert)
	if sent := alerter.SendAlerts(ctx, alerter.Evaluate(snap)); sent > 0 {
		zap.L().Info("alerts sent", zap.Int("count", sent))
	}
}
