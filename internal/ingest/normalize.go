package ingest

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/skylinedata/rental-ingest/internal/model"
)

// Listing detail URLs are a fixed provider base plus a per-record fragment.
const (
	realtorListingBase = "https://www.realtor.com/rentals/details/"
	redfinListingBase  = "https://www.redfin.com"
)

// numericToken matches the leading integer-or-decimal token in free-text
// numerics such as "2.5 ba" or "1+".
var numericToken = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Normalizer flattens one raw provider record onto the listing columns.
// Implementations are total: any object, including {}, yields a record
// with every column present and nil for unresolvable paths.
type Normalizer func(raw gjson.Result) model.Record

// NormalizeRealtor flattens a realtor-family search record.
func NormalizeRealtor(raw gjson.Result) model.Record {
	return model.Record{
		"listing_id":   optValue(raw.Get("listing_id")),
		"list_price":   optValue(raw.Get("list_price")),
		"beds":         optValue(raw.Get("description.beds")),
		"baths":        leadingNumber(raw.Get("description.baths_consolidated")),
		"sqft":         optValue(raw.Get("description.sqft")),
		"list_date":    optValue(raw.Get("list_date")),
		"zip_code":     zipCode(raw.Get("location.address.postal_code")),
		"latitude":     optValue(raw.Get("location.address.coordinate.lat")),
		"longitude":    optValue(raw.Get("location.address.coordinate.lon")),
		"address_line": optValue(raw.Get("location.address.line")),
		"url":          listingURL(realtorListingBase, raw.Get("permalink")),
		"pet_cats":     optValue(raw.Get("pet_policy.cats")),
		"pet_dogs":     optValue(raw.Get("pet_policy.dogs")),
	}
}

// NormalizeRedfin flattens a redfin-family search record. Redfin reports
// price, beds, baths, and sqft as min-max ranges.
func NormalizeRedfin(raw gjson.Result) model.Record {
	return model.Record{
		"listing_id":   optValue(raw.Get("rentalExtension.rentalId")),
		"price_min":    optValue(raw.Get("rentalExtension.rentPriceRange.min")),
		"price_max":    optValue(raw.Get("rentalExtension.rentPriceRange.max")),
		"beds_min":     optValue(raw.Get("rentalExtension.bedRange.min")),
		"beds_max":     optValue(raw.Get("rentalExtension.bedRange.max")),
		"baths_min":    optValue(raw.Get("rentalExtension.bathRange.min")),
		"baths_max":    optValue(raw.Get("rentalExtension.bathRange.max")),
		"sqft_min":     optValue(raw.Get("rentalExtension.sqftRange.min")),
		"sqft_max":     optValue(raw.Get("rentalExtension.sqftRange.max")),
		"zip_code":     zipCode(raw.Get("homeData.addressInfo.zip")),
		"latitude":     optValue(raw.Get("homeData.addressInfo.centroid.centroid.latitude")),
		"longitude":    optValue(raw.Get("homeData.addressInfo.centroid.centroid.longitude")),
		"address_line": optValue(raw.Get("homeData.addressInfo.formattedStreetLine")),
		"url":          listingURL(redfinListingBase, raw.Get("homeData.url")),
	}
}

// optValue returns the leaf's natural Go value, nil when the path is
// absent or the leaf is a JSON null.
func optValue(v gjson.Result) any {
	if !v.Exists() {
		return nil
	}
	return v.Value()
}

// leadingNumber reduces a free-text numeric to its leading numeric
// token; text with no token becomes nil.
func leadingNumber(v gjson.Result) any {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	if m := numericToken.FindString(v.String()); m != "" {
		return m
	}
	return nil
}

// zipCode normalizes a postal code to the first 5 non-blank characters
// of its string form.
func zipCode(v gjson.Result) any {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := strings.TrimSpace(v.String())
	if len(s) > 5 {
		s = s[:5]
	}
	if s == "" {
		return nil
	}
	return s
}

// listingURL joins the provider base with the record's URL fragment; a
// missing fragment yields the bare base, never nil.
func listingURL(base string, fragment gjson.Result) any {
	if !fragment.Exists() || fragment.Type == gjson.Null {
		return base
	}
	return base + fragment.String()
}
