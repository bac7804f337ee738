package openfoodfacts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-pipeline/internal/catalog"
)

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return ctx.Err()
}

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, d)
	return nil
}

func testBackoff() catalog.Backoff {
	return catalog.Backoff{MaxRetries: 3, Base: 2 * time.Second, Multiplier: 2, Max: 10 * time.Second}
}

func newTestClient(t *testing.T, baseURL string, limiter catalog.Limiter, pauser catalog.Pauser) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: baseURL,
		Fields:  DefaultFields,
		Timeout: 2 * time.Second,
		Backoff: testBackoff(),
	}, limiter, zap.NewNop(), WithPauser(pauser))
	require.NoError(t, err)
	return c
}

func TestFetch_DecodesPage(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":"42","page":2,"page_size":2,"products":[{"code":"1","product_name":"A"},{"code":2}]}`))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	c := newTestClient(t, srv.URL, limiter, &recordingPauser{})

	resp, err := c.Fetch(context.Background(), catalog.PageRequest{Category: "chocolats", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, resp.Records, 2)
	assert.True(t, resp.TotalKnown)
	assert.Equal(t, 42, resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, int32(1), limiter.calls.Load())

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"chocolats"}, q["categories_tags"])
	assert.Equal(t, []string{"2"}, q["page"])
	assert.Equal(t, []string{"2"}, q["page_size"])
	assert.Equal(t, []string{DefaultFields}, q["fields"])
}

func TestFetch_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"count":1,"page":1,"products":[{"code":"1"}]}`))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	pauser := &recordingPauser{}
	c := newTestClient(t, srv.URL, limiter, pauser)

	resp, err := c.Fetch(context.Background(), catalog.PageRequest{Category: "biscuits", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, int32(3), limiter.calls.Load(), "limiter must gate every attempt")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, pauser.delays)
}

func TestFetch_ClientErrorFailsImmediately(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "unknown category", http.StatusNotFound)
	}))
	defer srv.Close()

	pauser := &recordingPauser{}
	c := newTestClient(t, srv.URL, &countingLimiter{}, pauser)

	_, err := c.Fetch(context.Background(), catalog.PageRequest{Category: "nope", Page: 1, PageSize: 10})
	var reqErr *catalog.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
	assert.Contains(t, reqErr.Body, "unknown category")
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, pauser.delays)
}

func TestFetch_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pauser := &recordingPauser{}
	c := newTestClient(t, srv.URL, &countingLimiter{}, pauser)

	_, err := c.Fetch(context.Background(), catalog.PageRequest{Category: "pain", Page: 1, PageSize: 10})
	var transient *catalog.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 4, transient.Attempts)
	assert.Equal(t, http.StatusBadGateway, transient.StatusCode)
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, pauser.delays)
}

func TestFetch_TooManyRequestsIsRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &countingLimiter{}, &recordingPauser{})
	resp, err := c.Fetch(context.Background(), catalog.PageRequest{Category: "pain", Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Records)
	assert.False(t, resp.TotalKnown)
	assert.Equal(t, 3, resp.Page)
}

func TestFetch_MalformedPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":          `<html>maintenance</html>`,
		"missing products":  `{"count":3,"page":1}`,
		"products not list": `{"products":{"code":"1"}}`,
		"record not object": `{"products":["oops"]}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			pauser := &recordingPauser{}
			c := newTestClient(t, srv.URL, &countingLimiter{}, pauser)
			_, err := c.Fetch(context.Background(), catalog.PageRequest{Category: "pizzas", Page: 1, PageSize: 10})
			var malformed *catalog.MalformedResponseError
			require.ErrorAs(t, err, &malformed)
			assert.Empty(t, pauser.delays)
		})
	}
}

func TestFetch_TransportErrorIsRetried(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	pauser := &recordingPauser{}
	c := newTestClient(t, url, &countingLimiter{}, pauser)
	_, err := c.Fetch(context.Background(), catalog.PageRequest{Category: "pizzas", Page: 1, PageSize: 10})
	var transient *catalog.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Len(t, pauser.delays, 3)
}

func TestFetch_CanceledContextStops(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestClient(t, srv.URL, &countingLimiter{}, &recordingPauser{})
	_, err := c.Fetch(ctx, catalog.PageRequest{Category: "pizzas", Page: 1, PageSize: 10})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{BaseURL: "::bad"}, &countingLimiter{}, nil)
	require.Error(t, err)

	_, err = New(Config{Backoff: catalog.Backoff{MaxRetries: 1, Base: time.Second, Multiplier: 0.5, Max: time.Second}}, &countingLimiter{}, nil)
	require.Error(t, err)

	c, err := New(Config{}, &countingLimiter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL+"/search", c.endpoint)
}

func TestFlexibleInt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{`12`, 12, true},
		{`"12"`, 12, true},
		{`" 7 "`, 7, true},
		{`null`, 0, false},
		{``, 0, false},
		{`"abc"`, 0, false},
		{`1.5`, 0, false},
	}
	for _, tc := range cases {
		got, ok := flexibleInt([]byte(tc.raw))
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
