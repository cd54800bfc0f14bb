package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveSubmission(OutcomeSaved)
	m.ObserveSubmission(OutcomeSaved)
	m.ObserveSubmission(OutcomeValidation)
	m.ObserveAnalysis(1500*time.Millisecond, "Verified")
	m.ObserveParseMiss("no_floor_block")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissionsTotal.WithLabelValues(OutcomeSaved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsTotal.WithLabelValues(OutcomeValidation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysisStatus.WithLabelValues("Verified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.parseMissesTotal.WithLabelValues("no_floor_block")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.analysisDuration))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSubmission(OutcomeSaved)
		m.ObserveAnalysis(time.Second, "Error")
		m.ObserveParseMiss("x")
		m.ObserveHTTP("GET", "/", "200", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	m.ObserveHTTP(http.MethodGet, "/api/v1/sites", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `siteprogress_http_requests_total{code="200",method="GET",route="/api/v1/sites"} 1`)
}
