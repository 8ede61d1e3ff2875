package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/preorders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("unknown", "418")))
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.PaymentsRecorded.Inc()
	m.ConsistencyWarnings.Inc()
	m.ConsistencyWarnings.Inc()

	require.Equal(t, 1.0, testutil.ToFloat64(m.PaymentsRecorded))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ConsistencyWarnings))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
