package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylinedata/rental-ingest/internal/config"
	"github.com/skylinedata/rental-ingest/internal/geo"
	"github.com/skylinedata/rental-ingest/internal/resilience"
)

func testRealtorProvider() Provider {
	return RealtorProvider(config.ProviderConfig{
		Host:        "realtor16.p.rapidapi.com",
		BaseURL:     "https://realtor16.p.rapidapi.com",
		PageSize:    200,
		TimeoutSecs: 20,
	})
}

func testRedfinProvider() Provider {
	return RedfinProvider(config.ProviderConfig{
		Host:        "redfin-com-data.p.rapidapi.com",
		BaseURL:     "https://redfin-com-data.p.rapidapi.com",
		TimeoutSecs: 30,
	})
}

func newScriptedFetcher(provider Provider, policy resilience.RetryPolicy, steps []roundTrip) (*HTTPFetcher, *scriptTransport, *recordingSleeper) {
	transport := &scriptTransport{steps: steps}
	sleeper := &recordingSleeper{}
	f := New(Options{
		Provider:   provider,
		APIKey:     "test-key",
		Policy:     policy,
		HTTPClient: &http.Client{Transport: transport},
		Sleep:      sleeper.sleep,
	})
	return f, transport, sleeper
}

func TestFetchPageRequestShaping(t *testing.T) {
	var gotPath, gotHost, gotKey string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"location": r.URL.Query().Get("location"),
			"page":     r.URL.Query().Get("page"),
			"limit":    r.URL.Query().Get("limit"),
		}
		gotHost = r.Header.Get("x-rapidapi-host")
		gotKey = r.Header.Get("x-rapidapi-key")
		fmt.Fprint(w, `{"properties": []}`)
	}))
	defer srv.Close()

	provider := testRealtorProvider()
	client, err := newRewriteClient(srv.URL, provider.BaseURL)
	require.NoError(t, err)

	f := New(Options{Provider: provider, APIKey: "rk-123", Policy: resilience.LenientPolicy(), HTTPClient: client})
	res, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116", Region: "Back Bay"}, 3)
	require.NoError(t, err)

	assert.Empty(t, res.Listings)
	assert.False(t, res.HasTotal)
	assert.Equal(t, "/search/forrent", gotPath)
	assert.Equal(t, "02116", gotQuery["location"])
	assert.Equal(t, "3", gotQuery["page"])
	assert.Equal(t, "200", gotQuery["limit"])
	assert.Equal(t, "realtor16.p.rapidapi.com", gotHost)
	assert.Equal(t, "rk-123", gotKey)
}

func TestFetchPageParsesListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties": [{"property_id": "p1"}, {"property_id": "p2"}]}`)
	}))
	defer srv.Close()

	provider := testRealtorProvider()
	client, err := newRewriteClient(srv.URL, provider.BaseURL)
	require.NoError(t, err)

	f := New(Options{Provider: provider, APIKey: "rk", Policy: resilience.LenientPolicy(), HTTPClient: client})
	res, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02127"}, 1)
	require.NoError(t, err)

	require.Len(t, res.Listings, 2)
	assert.Equal(t, "p1", res.Listings[0].Get("property_id").String())
	assert.False(t, res.HasTotal)
}

func TestFetchPageRedfinTotal(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `{"data": [{"homeData": {"propertyId": "r1"}}], "totalResultCount": 412}`)
	}))
	defer srv.Close()

	provider := testRedfinProvider()
	client, err := newRewriteClient(srv.URL, provider.BaseURL)
	require.NoError(t, err)

	f := New(Options{Provider: provider, APIKey: "rk", Policy: resilience.StrictPolicy(), HTTPClient: client})
	res, err := f.FetchPage(context.Background(), geo.Partition{Zip: "10001", Region: "Manhattan"}, 1)
	require.NoError(t, err)

	require.Len(t, res.Listings, 1)
	assert.True(t, res.HasTotal)
	assert.Equal(t, 412, res.Total)
	assert.Empty(t, gotLimit, "redfin requests carry no limit param")
}

func TestFetchPageRetriesTimeouts(t *testing.T) {
	f, transport, sleeper := newScriptedFetcher(testRealtorProvider(), resilience.LenientPolicy(), []roundTrip{
		{err: timeoutErr{}},
		{err: timeoutErr{}},
		{status: http.StatusOK, body: `{"properties": [{"property_id": "p1"}]}`},
	})

	res, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.NoError(t, err)
	require.Len(t, res.Listings, 1)

	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.waits)
}

func TestFetchPageStrictStatusBackoff(t *testing.T) {
	f, transport, sleeper := newScriptedFetcher(testRedfinProvider(), resilience.StrictPolicy(), []roundTrip{
		{status: http.StatusTooManyRequests},
		{status: http.StatusGatewayTimeout},
		{status: http.StatusOK, body: `{"data": [], "totalResultCount": 0}`},
	})

	res, err := f.FetchPage(context.Background(), geo.Partition{Zip: "10001"}, 2)
	require.NoError(t, err)
	assert.True(t, res.HasTotal)
	assert.Zero(t, res.Total)

	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, sleeper.waits)
}

func TestFetchPageLenientStatusBackoff(t *testing.T) {
	f, _, sleeper := newScriptedFetcher(testRealtorProvider(), resilience.LenientPolicy(), []roundTrip{
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK, body: `{"properties": []}`},
	})

	_, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.waits)
}

func TestFetchPageFatalStatus(t *testing.T) {
	f, transport, sleeper := newScriptedFetcher(testRealtorProvider(), resilience.LenientPolicy(), []roundTrip{
		{status: http.StatusNotFound},
	})

	_, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.Error(t, err)

	assert.Equal(t, http.StatusNotFound, resilience.StatusCode(err))
	assert.Equal(t, 1, transport.calls, "fatal statuses are not retried")
	assert.Empty(t, sleeper.waits)
}

func TestFetchPageFatalTransportError(t *testing.T) {
	f, transport, sleeper := newScriptedFetcher(testRealtorProvider(), resilience.LenientPolicy(), []roundTrip{
		{err: fmt.Errorf("connection refused")},
	})

	_, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.Error(t, err)
	assert.Equal(t, 1, transport.calls)
	assert.Empty(t, sleeper.waits)
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	f, transport, sleeper := newScriptedFetcher(testRealtorProvider(), resilience.LenientPolicy(), []roundTrip{
		{err: timeoutErr{}},
		{err: timeoutErr{}},
		{err: timeoutErr{}},
	})

	_, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "max retries exceeded")

	assert.Equal(t, 3, transport.calls)
	assert.Len(t, sleeper.waits, 2, "no sleep after the final attempt")
}

func TestFetchPageMalformedBody(t *testing.T) {
	f, transport, _ := newScriptedFetcher(testRealtorProvider(), resilience.LenientPolicy(), []roundTrip{
		{status: http.StatusOK, body: `not json at all`},
	})

	_, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "malformed response body")
	assert.Equal(t, 1, transport.calls)
}

func TestFetchPageCancelledDuringBackoff(t *testing.T) {
	transport := &scriptTransport{steps: []roundTrip{{err: timeoutErr{}}}}
	f := New(Options{
		Provider:   testRealtorProvider(),
		APIKey:     "rk",
		Policy:     resilience.LenientPolicy(),
		HTTPClient: &http.Client{Transport: transport},
		Sleep: func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		},
	})

	_, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "cancelled during backoff")
	assert.Equal(t, 1, transport.calls)
}

func TestFetchPageRetryCallback(t *testing.T) {
	var attempts []int
	transport := &scriptTransport{steps: []roundTrip{
		{err: timeoutErr{}},
		{status: http.StatusOK, body: `{"properties": []}`},
	}}
	f := New(Options{
		Provider:   testRealtorProvider(),
		APIKey:     "rk",
		Policy:     resilience.LenientPolicy(),
		HTTPClient: &http.Client{Transport: transport},
		Sleep:      func(context.Context, time.Duration) error { return nil },
		OnRetry: func(attempt int, wait time.Duration, err error) {
			attempts = append(attempts, attempt)
		},
	})

	_, err := f.FetchPage(context.Background(), geo.Partition{Zip: "02116"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, attempts)
}
