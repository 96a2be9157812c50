package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	m := New()
	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/api/device/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/device/"+id, nil))
		require.Equal(t, http.StatusNoContent, rr.Code)
	}

	count := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodDelete, "/api/device/{id}", "204"))
	assert.Equal(t, float64(3), count)
}

func TestRecordSummaryAndHandler(t *testing.T) {
	m := New()
	m.RecordSummaryRun("sent")
	m.RecordSummaryData(2, 1500, 1200)
	m.RateLimited("/api/verify-fix")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.summaryDiscrepancies))
	assert.Equal(t, float64(1500), testutil.ToFloat64(m.nodeTotalBalance))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "fixpet_daily_summary_runs_total"))
	assert.True(t, strings.Contains(body, `fixpet_http_rate_limited_total{route="/api/verify-fix"} 1`))
}

func TestRouteNameUnmatched(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, "unmatched", RouteName(r))
}
