package fetcher

import (
	"time"

	"github.com/skylinedata/rental-ingest/internal/config"
)

// Family identifies which provider shape a source speaks.
type Family string

const (
	FamilyRealtor Family = "realtor"
	FamilyRedfin  Family = "redfin"
)

// Provider describes one upstream listing API: where to send search
// requests and where in the response body the records and the declared
// total live.
type Provider struct {
	Family        Family
	Host          string
	BaseURL       string
	SearchPath    string
	CollectionKey string
	// TotalKey is empty for providers that never declare a total; those
	// partitions terminate on a short or empty page instead.
	TotalKey string
	PageSize int
	Timeout  time.Duration
}

// DeclaresTotal reports whether responses may carry a total result count.
func (p Provider) DeclaresTotal() bool {
	return p.TotalKey != ""
}

// RealtorProvider builds the Realtor rental-search provider from config.
// Realtor pages carry an explicit limit and no total count, so pagination
// ends on a short page.
func RealtorProvider(cfg config.ProviderConfig) Provider {
	return Provider{
		Family:        FamilyRealtor,
		Host:          cfg.Host,
		BaseURL:       cfg.BaseURL,
		SearchPath:    "/search/forrent",
		CollectionKey: "properties",
		PageSize:      cfg.PageSize,
		Timeout:       time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// RedfinProvider builds the Redfin rental-search provider from config.
// Redfin declares a total result count and ignores page-size hints.
func RedfinProvider(cfg config.ProviderConfig) Provider {
	return Provider{
		Family:        FamilyRedfin,
		Host:          cfg.Host,
		BaseURL:       cfg.BaseURL,
		SearchPath:    "/property/search-rent",
		CollectionKey: "data",
		TotalKey:      "totalResultCount",
		Timeout:       time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}
