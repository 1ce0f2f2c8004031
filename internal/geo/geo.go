// Package geo holds the metro reference data driving ingestion: the ZIP
// partition lists per metro and the postal-code→region lookup used by
// enrichment.
package geo

import "sort"

// Metro identifiers.
const (
	MetroBoston = "bos"
	MetroNYC    = "nyc"
)

// Partition is one postal-code query unit. Region is set when the
// partition list pre-tags records with a named region (NYC boroughs);
// Boston partitions leave it empty and rely on per-record lookup.
type Partition struct {
	Zip    string
	Region string
}

// Lookup maps a 5-character postal code to its region name.
type Lookup map[string]string

// Region returns the region for a postal code. Unmapped codes report
// ok=false; callers treat that as a null region, not an error.
func (l Lookup) Region(zip string) (string, bool) {
	name, ok := l[zip]
	return name, ok
}

// Borough groups the ZIP partitions for one NYC borough. Realtor and
// Redfin coverage differ slightly, so each provider carries its own
// list; Zips is the shared fallback when a provider-specific list is
// absent (override files usually set just one list).
type Borough struct {
	Name        string   `yaml:"name"`
	Zips        []string `yaml:"zips,omitempty"`
	RealtorZips []string `yaml:"realtor_zips,omitempty"`
	RedfinZips  []string `yaml:"redfin_zips,omitempty"`
}

// Reference is the full geography reference: Boston ZIP→neighborhood
// plus the ordered NYC borough groups. Borough order is load-bearing:
// partition order decides which duplicate survives aggregation.
type Reference struct {
	Neighborhoods map[string]string `yaml:"neighborhoods"`
	Boroughs      []Borough         `yaml:"boroughs"`
}

// NeighborhoodLookup returns the Boston ZIP→neighborhood lookup.
func (r *Reference) NeighborhoodLookup() Lookup {
	return Lookup(r.Neighborhoods)
}

// BostonPartitions returns the Boston partitions in ascending ZIP order.
func (r *Reference) BostonPartitions() []Partition {
	zips := make([]string, 0, len(r.Neighborhoods))
	for z := range r.Neighborhoods {
		zips = append(zips, z)
	}
	sort.Strings(zips)

	parts := make([]Partition, len(zips))
	for i, z := range zips {
		parts[i] = Partition{Zip: z}
	}
	return parts
}

// RealtorBoroughPartitions returns the NYC partitions for the realtor
// provider, borough by borough in declared order, each tagged with its
// borough name.
func (r *Reference) RealtorBoroughPartitions() []Partition {
	return r.boroughPartitions(func(b Borough) []string { return b.RealtorZips })
}

// RedfinBoroughPartitions returns the NYC partitions for the redfin
// provider, borough by borough in declared order, each tagged with its
// borough name.
func (r *Reference) RedfinBoroughPartitions() []Partition {
	return r.boroughPartitions(func(b Borough) []string { return b.RedfinZips })
}

func (r *Reference) boroughPartitions(pick func(Borough) []string) []Partition {
	var parts []Partition
	for _, b := range r.Boroughs {
		zips := pick(b)
		if len(zips) == 0 {
			zips = b.Zips
		}
		for _, z := range zips {
			parts = append(parts, Partition{Zip: z, Region: b.Name})
		}
	}
	return parts
}
