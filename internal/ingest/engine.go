// Package ingest implements the listing ingestion pipeline: paginated
// fetching per ZIP partition, normalization onto flat listing columns,
// region enrichment, typed aggregation, and truncate-and-replace
// loading, plus the engine that runs each configured source end to end
// and records the outcome in the run log.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skylinedata/rental-ingest/internal/config"
	"github.com/skylinedata/rental-ingest/internal/fetcher"
	"github.com/skylinedata/rental-ingest/internal/geo"
	"github.com/skylinedata/rental-ingest/internal/model"
	"github.com/skylinedata/rental-ingest/internal/resilience"
)

// Store is the persistence surface the engine needs: replacing one
// source's listing table and keeping the run log.
type Store interface {
	ReplaceListings(ctx context.Context, table string, data *model.Table) (int64, error)
	CreateRun(ctx context.Context, run *model.IngestRun) error
	UpdateRun(ctx context.Context, run *model.IngestRun) error
}

// Engine runs ingestion sources one at a time: drain every partition,
// aggregate, replace the destination table, record the run. A source
// failure is recorded and does not halt the remaining sources.
type Engine struct {
	store      Store
	cfg        *config.Config
	ref        *geo.Reference
	dryRun     bool
	newFetcher func(Source) fetcher.Fetcher
	sleep      func(ctx context.Context, d time.Duration) error
	log        *zap.Logger
}

// EngineOptions configures an Engine. Store may be nil only in dry-run
// mode, which never touches persistence.
type EngineOptions struct {
	Store     Store
	Config    *config.Config
	Reference *geo.Reference
	DryRun    bool

	// NewFetcher overrides per-source fetcher construction; tests inject
	// fakes here.
	NewFetcher func(Source) fetcher.Fetcher

	// Sleep overrides the inter-partition sleeper.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		store:      opts.Store,
		cfg:        opts.Config,
		ref:        opts.Reference,
		dryRun:     opts.DryRun,
		newFetcher: opts.NewFetcher,
		sleep:      opts.Sleep,
		log:        zap.L().With(zap.String("component", "engine")),
	}
	if e.ref == nil {
		e.ref = geo.DefaultReference()
	}
	if e.newFetcher == nil {
		e.newFetcher = e.providerFetcher
	}
	if e.sleep == nil {
		e.sleep = resilience.Sleep
	}
	return e
}

func (e *Engine) providerFetcher(src Source) fetcher.Fetcher {
	provider := fetcher.RealtorProvider(e.cfg.Realtor)
	if src.Family == fetcher.FamilyRedfin {
		provider = fetcher.RedfinProvider(e.cfg.Redfin)
	}
	return fetcher.New(fetcher.Options{
		Provider: provider,
		APIKey:   e.cfg.RapidAPI.Key,
		Policy:   src.Policy,
	})
}

func (e *Engine) paginatorFor(src Source, f fetcher.Fetcher) *Paginator {
	opts := PaginatorOptions{PageDelay: src.PageDelay}
	if src.Family == fetcher.FamilyRedfin {
		opts.DeclaredTotal = true
	} else {
		opts.PageSize = e.cfg.Realtor.PageSize
	}
	return NewPaginator(f, opts)
}

// Summary reports one engine invocation across sources.
type Summary struct {
	Runs []*model.IngestRun
}

// Failed returns the runs that did not complete.
func (s *Summary) Failed() []*model.IngestRun {
	var failed []*model.IngestRun
	for _, run := range s.Runs {
		if run.Status == model.RunStatusFailed {
			failed = append(failed, run)
		}
	}
	return failed
}

// Run executes the given sources in order. The returned error is non-nil
// only when the context is cancelled; per-source failures live in the
// summary.
func (e *Engine) Run(ctx context.Context, sources []Source) (*Summary, error) {
	summary := &Summary{}
	for _, src := range sources {
		summary.Runs = append(summary.Runs, e.runSource(ctx, src))
		if ctx.Err() != nil {
			return summary, eris.Wrap(ctx.Err(), "ingest: run cancelled")
		}
	}
	return summary, nil
}

func (e *Engine) runSource(ctx context.Context, src Source) *model.IngestRun {
	log := e.log.With(zap.String("source", src.Name))
	run := &model.IngestRun{
		ID:        uuid.NewString(),
		Source:    src.Name,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	if !e.dryRun {
		if err := e.store.CreateRun(ctx, run); err != nil {
			e.fail(ctx, run, eris.Wrap(err, "ingest: record run start"))
			return run
		}
	}

	parts := src.Partitions(e.ref)
	lookup := src.Lookup(e.ref)
	pag := e.paginatorFor(src, e.newFetcher(src))
	log.Info("source starting", zap.Int("partitions", len(parts)))

	var records []model.Record
	for i, part := range parts {
		raw, stats := pag.Collect(ctx, part)
		run.Partitions++
		run.Pages += stats.Pages
		run.RecordsFetched += len(raw)
		if stats.Aborted {
			run.AbortedPartitions++
		}

		recs := make([]model.Record, len(raw))
		for j, r := range raw {
			recs[j] = src.Normalize(r)
		}
		Enrich(recs, src.RegionColumn, part, lookup)
		records = append(records, recs...)

		if ctx.Err() != nil {
			e.fail(ctx, run, eris.Wrap(ctx.Err(), "ingest: cancelled"))
			return run
		}
		if src.PartitionDelay > 0 && i < len(parts)-1 {
			if err := e.sleep(ctx, src.PartitionDelay); err != nil {
				e.fail(ctx, run, eris.Wrap(err, "ingest: cancelled"))
				return run
			}
		}
	}

	table, report := Aggregate(records, src.Schema)
	run.Duplicates = report.Duplicates
	run.MissingIDs = report.MissingIDs
	run.CoercionFailures = report.TotalCoercionFailures()
	if report.MissingIDs > 0 {
		log.Warn("records without a listing id kept as distinct rows", zap.Int("count", report.MissingIDs))
	}
	for col, n := range report.CoercionFailures {
		log.Warn("values failed type coercion", zap.String("column", col), zap.Int("count", n))
	}

	if e.dryRun {
		e.finish(ctx, run)
		log.Info("dry run complete",
			zap.Int("pages", run.Pages),
			zap.Int("records", run.RecordsFetched),
			zap.Int("rows", report.Rows),
			zap.Int("aborted_partitions", run.AbortedPartitions),
		)
		return run
	}

	rows, err := e.store.ReplaceListings(ctx, src.Table, table)
	if err != nil {
		e.fail(ctx, run, eris.Wrapf(err, "ingest: load %s", src.Table))
		return run
	}
	run.RowsLoaded = int(rows)

	e.finish(ctx, run)
	log.Info("source complete",
		zap.Int("partitions", run.Partitions),
		zap.Int("pages", run.Pages),
		zap.Int("records", run.RecordsFetched),
		zap.Int("rows_loaded", run.RowsLoaded),
		zap.Int("duplicates", run.Duplicates),
		zap.Int("aborted_partitions", run.AbortedPartitions),
		zap.Duration("took", run.Duration()),
	)
	return run
}

func (e *Engine) finish(ctx context.Context, run *model.IngestRun) {
	now := time.Now().UTC()
	run.Status = model.RunStatusComplete
	run.CompletedAt = &now
	if !e.dryRun {
		if err := e.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			e.log.Error("record run completion", zap.String("source", run.Source), zap.Error(err))
		}
	}
}

func (e *Engine) fail(ctx context.Context, run *model.IngestRun, err error) {
	now := time.Now().UTC()
	run.Status = model.RunStatusFailed
	run.CompletedAt = &now
	run.Error = err.Error()
	e.log.Error("source failed", zap.String("source", run.Source), zap.Error(err))
	if !e.dryRun {
		if uerr := e.store.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
			e.log.Error("record run failure", zap.String("source", run.Source), zap.Error(uerr))
		}
	}
}
