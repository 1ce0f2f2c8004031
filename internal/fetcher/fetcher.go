package fetcher

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/skylinedata/rental-ingest/internal/geo"
	"github.com/skylinedata/rental-ingest/internal/resilience"
)

// PageResult is one successfully fetched page of raw listings. A result
// with zero listings marks the empty page that ends a partition.
type PageResult struct {
	Listings []gjson.Result
	// Total is the provider-declared total result count; HasTotal is set
	// only for the declared-total provider family, and only when the
	// response carries the field.
	Total    int
	HasTotal bool
}

// Fetcher issues one provider request per (partition, page). A non-nil
// error aborts the partition: either the condition was fatal or the
// retry budget is exhausted. Implementations must be substitutable so
// pagination can be tested without network I/O.
type Fetcher interface {
	FetchPage(ctx context.Context, part geo.Partition, page int) (*PageResult, error)
}

// Options configures an HTTPFetcher.
type Options struct {
	Provider Provider
	APIKey   string
	Policy   resilience.RetryPolicy

	// HTTPClient overrides the default client; tests install a
	// URL-rewriting transport here.
	HTTPClient *http.Client

	// Sleep overrides the backoff sleeper; tests record waits through it.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// HTTPFetcher implements Fetcher against a RapidAPI listing provider.
type HTTPFetcher struct {
	client   *http.Client
	provider Provider
	apiKey   string
	policy   resilience.RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	onRetry  func(attempt int, wait time.Duration, err error)
	log      *zap.Logger
}

// New creates an HTTPFetcher for one provider.
func New(opts Options) *HTTPFetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if client.Timeout == 0 {
		client.Timeout = opts.Provider.Timeout
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = resilience.Sleep
	}
	onRetry := opts.OnRetry
	if onRetry == nil {
		onRetry = resilience.RetryLogger(string(opts.Provider.Family), "fetch_page")
	}

	return &HTTPFetcher{
		client:   client,
		provider: opts.Provider,
		apiKey:   opts.APIKey,
		policy:   opts.Policy.Normalize(),
		sleep:    sleep,
		onRetry:  onRetry,
		log:      zap.L().With(zap.String("component", "fetcher"), zap.String("provider", string(opts.Provider.Family))),
	}
}

// FetchPage requests one page for one partition, retrying timeouts and
// retryable statuses per the policy. Timeouts wait BackoffFactor×attempt
// seconds; 429/504 wait per the policy's status formula. Any other HTTP
// or transport error is fatal for this (partition, page).
func (f *HTTPFetcher) FetchPage(ctx context.Context, part geo.Partition, page int) (*PageResult, error) {
	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		res, err := f.attempt(ctx, part, page)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, eris.Wrapf(lastErr, "fetcher: %s page %d cancelled", part.Zip, page)
		}

		var wait time.Duration
		switch {
		case resilience.IsTimeout(err):
			wait = f.policy.TimeoutWait(attempt)
		case resilience.IsRetryableStatus(resilience.StatusCode(err)):
			wait = f.policy.StatusWait(attempt)
		default:
			// Fatal: some other HTTP status or a non-timeout transport error.
			return nil, eris.Wrapf(err, "fetcher: %s page %d", part.Zip, page)
		}

		if attempt == f.policy.MaxAttempts {
			break
		}

		f.onRetry(attempt, wait, err)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, eris.Wrapf(lastErr, "fetcher: %s page %d cancelled during backoff", part.Zip, page)
		}
	}

	return nil, eris.Wrapf(lastErr, "fetcher: max retries exceeded for %s page %d", part.Zip, page)
}

func (f *HTTPFetcher) attempt(ctx context.Context, part geo.Partition, page int) (*PageResult, error) {
	req, err := f.newRequest(ctx, part, page)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, eris.Errorf("fetcher: malformed response body for %s page %d", part.Zip, page)
	}

	res := &PageResult{Listings: parsed.Get(f.provider.CollectionKey).Array()}
	if f.provider.TotalKey != "" {
		if total := parsed.Get(f.provider.TotalKey); total.Exists() {
			res.Total = int(total.Int())
			res.HasTotal = true
		}
	}

	f.log.Debug("fetched page",
		zap.String("zip", part.Zip),
		zap.Int("page", page),
		zap.Int("listings", len(res.Listings)),
	)
	return res, nil
}

func (f *HTTPFetcher) newRequest(ctx context.Context, part geo.Partition, page int) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.provider.BaseURL+f.provider.SearchPath, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}

	q := req.URL.Query()
	q.Set("location", part.Zip)
	q.Set("page", strconv.Itoa(page))
	if f.provider.PageSize > 0 {
		q.Set("limit", strconv.Itoa(f.provider.PageSize))
	}
	req.URL.RawQuery = q.Encode()

	req.Header.Set("x-rapidapi-host", f.provider.Host)
	req.Header.Set("x-rapidapi-key", f.apiKey)
	return req, nil
}
