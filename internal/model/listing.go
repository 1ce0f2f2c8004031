package model

// ColumnType identifies the analytics type a destination column is coerced to.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInt32     ColumnType = "int32"
	TypeFloat32   ColumnType = "float32"
	TypeBool      ColumnType = "bool"
	TypeTimestamp ColumnType = "timestamp"
)

// Column is one destination column: a name and its declared type.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column list for one destination table.
type Schema []Column

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Record is one normalized listing: a column→value mapping. Normalization
// guarantees every schema column is present; nil marks a null.
type Record map[string]any

// Table is an aggregated, typed dataset ready for loading.
type Table struct {
	Columns Schema
	Rows    [][]any
}

// ListingTable pairs a destination table name with its schema.
type ListingTable struct {
	Name    string
	Columns Schema
}

// ListingTables returns the four destination tables in their canonical
// order.
func ListingTables() []ListingTable {
	return []ListingTable{
		{Name: "bos_realtor_listings_raw", Columns: RealtorSchema("neighborhood")},
		{Name: "bos_redfin_listings_raw", Columns: RedfinSchema("neighborhood")},
		{Name: "nyc_realtor_listings_raw", Columns: RealtorSchema("borough")},
		{Name: "nyc_redfin_listings_raw", Columns: RedfinSchema("borough")},
	}
}

// RealtorSchema returns the destination schema for realtor-family sources.
// regionCol is the metro-specific region column name (neighborhood or borough).
func RealtorSchema(regionCol string) Schema {
	return Schema{
		{Name: "listing_id", Type: TypeString},
		{Name: "list_price", Type: TypeInt32},
		{Name: "beds", Type: TypeFloat32},
		{Name: "baths", Type: TypeFloat32},
		{Name: "sqft", Type: TypeInt32},
		{Name: "list_date", Type: TypeTimestamp},
		{Name: "zip_code", Type: TypeString},
		{Name: "latitude", Type: TypeFloat32},
		{Name: "longitude", Type: TypeFloat32},
		{Name: "address_line", Type: TypeString},
		{Name: "url", Type: TypeString},
		{Name: "pet_cats", Type: TypeBool},
		{Name: "pet_dogs", Type: TypeBool},
		{Name: regionCol, Type: TypeString},
	}
}

// RedfinSchema returns the destination schema for redfin-family sources,
// which report price/bed/bath/sqft as min-max ranges.
func RedfinSchema(regionCol string) Schema {
	return Schema{
		{Name: "listing_id", Type: TypeString},
		{Name: "price_min", Type: TypeInt32},
		{Name: "price_max", Type: TypeInt32},
		{Name: "beds_min", Type: TypeFloat32},
		{Name: "beds_max", Type: TypeFloat32},
		{Name: "baths_min", Type: TypeFloat32},
		{Name: "baths_max", Type: TypeFloat32},
		{Name: "sqft_min", Type: TypeInt32},
		{Name: "sqft_max", Type: TypeInt32},
		{Name: "zip_code", Type: TypeString},
		{Name: "latitude", Type: TypeFloat32},
		{Name: "longitude", Type: TypeFloat32},
		{Name: "address_line", Type: TypeString},
		{Name: "url", Type: TypeString},
		{Name: regionCol, Type: TypeString},
	}
}
