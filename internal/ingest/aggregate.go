package ingest

import (
	"github.com/skylinedata/rental-ingest/internal/model"
)

// Report summarizes one source's aggregation.
type Report struct {
	Input      int
	Rows       int
	Duplicates int
	MissingIDs int
	// CoercionFailures counts values per column that did not conform to
	// the column's declared type. The in-memory table keeps the original
	// values; only the loader nulls them out.
	CoercionFailures map[string]int
}

// TotalCoercionFailures sums the per-column failure counts.
func (r *Report) TotalCoercionFailures() int {
	total := 0
	for _, n := range r.CoercionFailures {
		total += n
	}
	return total
}

// Aggregate turns normalized records into a typed table: listing ids are
// stringified, records deduplicated by id keeping the first seen, and
// every column coerced to its declared type best-effort. Records with a
// missing or unstringifiable id are kept as distinct rows with a null id
// and counted, never merged with each other. Every step is total; the
// same input always yields the same table.
func Aggregate(records []model.Record, schema model.Schema) (*model.Table, *Report) {
	report := &Report{Input: len(records), CoercionFailures: map[string]int{}}

	idCol := model.Column{Name: "listing_id", Type: model.TypeString}
	seen := make(map[string]struct{}, len(records))
	kept := make([]model.Record, 0, len(records))
	for _, rec := range records {
		id := rec["listing_id"]
		if id == nil {
			report.MissingIDs++
			kept = append(kept, rec)
			continue
		}
		s, ok := idCol.Coerce(id)
		if !ok {
			report.MissingIDs++
			rec["listing_id"] = nil
			kept = append(kept, rec)
			continue
		}
		key := s.(string)
		if _, dup := seen[key]; dup {
			report.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		rec["listing_id"] = key
		kept = append(kept, rec)
	}

	table := &model.Table{Columns: schema, Rows: make([][]any, 0, len(kept))}
	for _, rec := range kept {
		row := make([]any, len(schema))
		for i, col := range schema {
			v, ok := col.Coerce(rec[col.Name])
			if !ok {
				report.CoercionFailures[col.Name]++
			}
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	report.Rows = len(table.Rows)
	return table, report
}
