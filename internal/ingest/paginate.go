package ingest

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skylinedata/rental-ingest/internal/fetcher"
	"github.com/skylinedata/rental-ingest/internal/geo"
)

// PartitionStats reports one partition walk.
type PartitionStats struct {
	Pages   int
	Aborted bool
	// Err is the abort cause. It is informational: partials are kept and
	// the run continues to the next partition.
	Err error
}

// Paginator drains one partition page by page. It is not restartable:
// every Collect starts over from page 1.
type Paginator struct {
	fetcher       fetcher.Fetcher
	pageSize      int
	declaredTotal bool
	limiter       *rate.Limiter
	log           *zap.Logger
}

// PaginatorOptions configures termination and pacing. PageSize > 0
// enables short-page termination; DeclaredTotal switches to the
// running-count-vs-declared-total policy instead.
type PaginatorOptions struct {
	PageSize      int
	DeclaredTotal bool
	PageDelay     time.Duration
}

// NewPaginator creates a Paginator over one fetcher.
func NewPaginator(f fetcher.Fetcher, opts PaginatorOptions) *Paginator {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.PageDelay), 1)
	}
	return &Paginator{
		fetcher:       f,
		pageSize:      opts.PageSize,
		declaredTotal: opts.DeclaredTotal,
		limiter:       limiter,
		log:           zap.L().With(zap.String("component", "paginator")),
	}
}

// Collect fetches pages until the partition is drained or aborts. An
// abort keeps whatever records already arrived; its cause lands in the
// stats, never in a raised error. Termination: empty page (always), a
// page shorter than the page size (short-page policy), or accumulated
// count reaching the first page's declared total (declared-total
// policy, where a zero or absent total ends after page one).
func (p *Paginator) Collect(ctx context.Context, part geo.Partition) ([]gjson.Result, PartitionStats) {
	var records []gjson.Result
	var stats PartitionStats
	total, hasTotal := 0, false

	for page := 1; ; page++ {
		if err := p.limiter.Wait(ctx); err != nil {
			stats.Aborted = true
			stats.Err = err
			return records, stats
		}

		res, err := p.fetcher.FetchPage(ctx, part, page)
		if err != nil {
			stats.Aborted = true
			stats.Err = err
			p.log.Warn("partition aborted, keeping partial results",
				zap.String("zip", part.Zip),
				zap.Int("page", page),
				zap.Int("records", len(records)),
				zap.Error(err),
			)
			return records, stats
		}

		stats.Pages++
		records = append(records, res.Listings...)

		if len(res.Listings) == 0 {
			return records, stats
		}
		if page == 1 && res.HasTotal {
			total, hasTotal = res.Total, true
		}

		if p.declaredTotal {
			if !hasTotal || total <= 0 || len(records) >= total {
				return records, stats
			}
		} else if p.pageSize > 0 && len(res.Listings) < p.pageSize {
			return records, stats
		}
	}
}
