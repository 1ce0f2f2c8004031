package ingest

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/skylinedata/rental-ingest/internal/fetcher"
	"github.com/skylinedata/rental-ingest/internal/geo"
	"github.com/skylinedata/rental-ingest/internal/model"
	"github.com/skylinedata/rental-ingest/internal/resilience"
)

// Source is one provider × metro ingestion unit: where its partitions
// come from, how fetches retry and pace, how records flatten, and which
// table the result replaces.
type Source struct {
	Name           string
	Metro          string
	Family         fetcher.Family
	Table          string
	RegionColumn   string
	Policy         resilience.RetryPolicy
	PageDelay      time.Duration
	PartitionDelay time.Duration
	Normalize      Normalizer
	Schema         model.Schema
	Partitions     func(*geo.Reference) []geo.Partition
	Lookup         func(*geo.Reference) geo.Lookup
}

// Sources returns the ingestion sources in run order: Boston before NYC,
// realtor before redfin within a metro.
func Sources() []Source {
	noLookup := func(*geo.Reference) geo.Lookup { return nil }
	return []Source{
		{
			Name:         "bos_realtor",
			Metro:        geo.MetroBoston,
			Family:       fetcher.FamilyRealtor,
			Table:        "bos_realtor_listings_raw",
			RegionColumn: "neighborhood",
			Policy:       resilience.LenientPolicy(),
			PageDelay:    600 * time.Millisecond,
			Normalize:    NormalizeRealtor,
			Schema:       model.RealtorSchema("neighborhood"),
			Partitions:   func(r *geo.Reference) []geo.Partition { return r.BostonPartitions() },
			Lookup:       func(r *geo.Reference) geo.Lookup { return r.NeighborhoodLookup() },
		},
		{
			Name:           "bos_redfin",
			Metro:          geo.MetroBoston,
			Family:         fetcher.FamilyRedfin,
			Table:          "bos_redfin_listings_raw",
			RegionColumn:   "neighborhood",
			Policy:         resilience.LenientPolicy(),
			PageDelay:      200 * time.Millisecond,
			PartitionDelay: time.Second,
			Normalize:      NormalizeRedfin,
			Schema:         model.RedfinSchema("neighborhood"),
			Partitions:     func(r *geo.Reference) []geo.Partition { return r.BostonPartitions() },
			Lookup:         func(r *geo.Reference) geo.Lookup { return r.NeighborhoodLookup() },
		},
		{
			Name:         "nyc_realtor",
			Metro:        geo.MetroNYC,
			Family:       fetcher.FamilyRealtor,
			Table:        "nyc_realtor_listings_raw",
			RegionColumn: "borough",
			Policy:       resilience.StrictPolicy(),
			PageDelay:    500 * time.Millisecond,
			Normalize:    NormalizeRealtor,
			Schema:       model.RealtorSchema("borough"),
			Partitions:   func(r *geo.Reference) []geo.Partition { return r.RealtorBoroughPartitions() },
			Lookup:       noLookup,
		},
		{
			Name:           "nyc_redfin",
			Metro:          geo.MetroNYC,
			Family:         fetcher.FamilyRedfin,
			Table:          "nyc_redfin_listings_raw",
			RegionColumn:   "borough",
			Policy:         resilience.LenientPolicy(),
			PageDelay:      200 * time.Millisecond,
			PartitionDelay: time.Second,
			Normalize:      NormalizeRedfin,
			Schema:         model.RedfinSchema("borough"),
			Partitions:     func(r *geo.Reference) []geo.Partition { return r.RedfinBoroughPartitions() },
			Lookup:         noLookup,
		},
	}
}

// SourceNames returns the registered source names in run order.
func SourceNames() []string {
	srcs := Sources()
	names := make([]string, len(srcs))
	for i, src := range srcs {
		names[i] = src.Name
	}
	return names
}

// Filter selects sources by name, preserving run order. An empty name
// list selects every source; unknown names are an error.
func Filter(names []string) ([]Source, error) {
	if len(names) == 0 {
		return Sources(), nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			want[n] = true
		}
	}

	var out []Source
	for _, src := range Sources() {
		if want[src.Name] {
			out = append(out, src)
			delete(want, src.Name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for n := range want {
			unknown = append(unknown, n)
		}
		sort.Strings(unknown)
		return nil, eris.Errorf("ingest: unknown source(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
