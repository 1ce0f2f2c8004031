package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// rewriteTransport redirects requests aimed at a real provider host to a
// local test server so tests never touch the network.
type rewriteTransport struct {
	targetPrefix string
	serverURL    *url.URL
}

func newRewriteClient(serverURL, targetPrefix string) (*http.Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: &rewriteTransport{targetPrefix: targetPrefix, serverURL: parsed}}, nil
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasPrefix(req.URL.String(), t.targetPrefix) {
		req.URL.Scheme = t.serverURL.Scheme
		req.URL.Host = t.serverURL.Host
	}
	return http.DefaultTransport.RoundTrip(req)
}

// scriptTransport plays back a fixed sequence of round-trip outcomes,
// one per request, without any network or server.
type scriptTransport struct {
	mu    sync.Mutex
	steps []roundTrip
	calls int
}

type roundTrip struct {
	status int
	body   string
	err    error
}

func (t *scriptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls >= len(t.steps) {
		panic("scriptTransport: no step left for request")
	}
	step := t.steps[t.calls]
	t.calls++
	if step.err != nil {
		return nil, step.err
	}
	return &http.Response{
		StatusCode: step.status,
		Status:     http.StatusText(step.status),
		Body:       io.NopCloser(strings.NewReader(step.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// timeoutErr fakes a net.Error timeout from the transport.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// recordingSleeper captures backoff waits instead of sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}
