package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if fetchRequestsTotal == nil || recordsTotal == nil || runsTotal == nil || rateLimitWaitSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(fetchRetriesTotal)
	ObserveRetry()
	if got := testutil.ToFloat64(fetchRetriesTotal); got != before+1 {
		t.Errorf("expected retries to grow by one, got %f -> %f", before, got)
	}

	beforeRecords := testutil.ToFloat64(recordsTotal.WithLabelValues("fetched"))
	AddRecords("fetched", 4)
	AddRecords("fetched", 0)
	if got := testutil.ToFloat64(recordsTotal.WithLabelValues("fetched")); got != beforeRecords+4 {
		t.Errorf("expected fetched records to grow by 4, got %f -> %f", beforeRecords, got)
	}

	beforeRuns := testutil.ToFloat64(runsTotal.WithLabelValues("succeeded"))
	ObserveRun("succeeded", 2*time.Second)
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("succeeded")); got != beforeRuns+1 {
		t.Errorf("expected succeeded runs to grow by one, got %f -> %f", beforeRuns, got)
	}
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	ObservePage()
	srv := httptest.NewServer(Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "catalog_pages_total")
}

func TestNewServerAddr(t *testing.T) {
	srv := NewServer(":9102")
	require.Equal(t, ":9102", srv.Addr)
	require.NotNil(t, srv.Handler)
}
