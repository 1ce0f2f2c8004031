package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/skylinedata/rental-ingest/internal/config"
	"github.com/skylinedata/rental-ingest/internal/fetcher"
	"github.com/skylinedata/rental-ingest/internal/geo"
	"github.com/skylinedata/rental-ingest/internal/model"
	"github.com/skylinedata/rental-ingest/internal/resilience"
)

func rawListing(id, zip string) gjson.Result {
	if zip == "" {
		return gjson.Parse(fmt.Sprintf(`{"listing_id": %q}`, id))
	}
	return gjson.Parse(fmt.Sprintf(`{"listing_id": %q, "location": {"address": {"postal_code": %q}}}`, id, zip))
}

func rawListings(prefix string, n int) []gjson.Result {
	out := make([]gjson.Result, n)
	for i := range out {
		out[i] = rawListing(fmt.Sprintf("%s-%d", prefix, i), "")
	}
	return out
}

// pageFetcher serves scripted pages keyed by page number; unscripted
// pages come back empty.
type pageFetcher struct {
	pages map[int]*fetcher.PageResult
	errs  map[int]error
	calls []int
}

func (f *pageFetcher) FetchPage(_ context.Context, _ geo.Partition, page int) (*fetcher.PageResult, error) {
	f.calls = append(f.calls, page)
	if err, ok := f.errs[page]; ok {
		return nil, err
	}
	if res, ok := f.pages[page]; ok {
		return res, nil
	}
	return &fetcher.PageResult{}, nil
}

// zipFetcher serves one fixed page of listings per partition ZIP;
// scripted ZIPs can fail instead.
type zipFetcher struct {
	byZip map[string][]gjson.Result
	errs  map[string]error
}

func (f *zipFetcher) FetchPage(_ context.Context, part geo.Partition, page int) (*fetcher.PageResult, error) {
	if err, ok := f.errs[part.Zip]; ok {
		return nil, err
	}
	if page == 1 {
		return &fetcher.PageResult{Listings: f.byZip[part.Zip]}, nil
	}
	return &fetcher.PageResult{}, nil
}

// fakeStore records engine persistence calls in memory.
type fakeStore struct {
	created   []string
	updated   []model.IngestRun
	loads     map[string]*model.Table
	loadErr   map[string]error
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{loads: map[string]*model.Table{}, loadErr: map[string]error{}}
}

func (s *fakeStore) ReplaceListings(_ context.Context, table string, data *model.Table) (int64, error) {
	if err := s.loadErr[table]; err != nil {
		return 0, err
	}
	s.loads[table] = data
	return int64(len(data.Rows)), nil
}

func (s *fakeStore) CreateRun(_ context.Context, run *model.IngestRun) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, run.ID)
	return nil
}

func (s *fakeStore) UpdateRun(_ context.Context, run *model.IngestRun) error {
	s.updated = append(s.updated, *run)
	return nil
}

func testSource(name string, parts []geo.Partition) Source {
	return Source{
		Name:         name,
		Metro:        geo.MetroBoston,
		Family:       fetcher.FamilyRealtor,
		Table:        name + "_listings_raw",
		RegionColumn: "neighborhood",
		Policy:       resilience.LenientPolicy(),
		Normalize:    NormalizeRealtor,
		Schema:       model.RealtorSchema("neighborhood"),
		Partitions:   func(*geo.Reference) []geo.Partition { return parts },
		Lookup:       func(r *geo.Reference) geo.Lookup { return r.NeighborhoodLookup() },
	}
}

func newTestEngine(store Store, f fetcher.Fetcher, dryRun bool) *Engine {
	return NewEngine(EngineOptions{
		Store:      store,
		Config:     &config.Config{Realtor: config.ProviderConfig{PageSize: 200}},
		DryRun:     dryRun,
		NewFetcher: func(Source) fetcher.Fetcher { return f },
		Sleep:      func(context.Context, time.Duration) error { return nil },
	})
}
