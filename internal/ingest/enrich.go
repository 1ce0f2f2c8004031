package ingest

import (
	"github.com/skylinedata/rental-ingest/internal/geo"
	"github.com/skylinedata/rental-ingest/internal/model"
)

// Enrich stamps the region column on every record in place. A partition
// pre-tagged with a region name wins; otherwise the record's own postal
// code resolves through the lookup. An unmapped code leaves a null
// region, which is accepted output, not an error.
func Enrich(records []model.Record, column string, part geo.Partition, lookup geo.Lookup) {
	for _, rec := range records {
		rec[column] = regionFor(rec, part, lookup)
	}
}

func regionFor(rec model.Record, part geo.Partition, lookup geo.Lookup) any {
	if part.Region != "" {
		return part.Region
	}
	zip, _ := rec["zip_code"].(string)
	if zip == "" || lookup == nil {
		return nil
	}
	if name, ok := lookup.Region(zip); ok {
		return name
	}
	return nil
}
