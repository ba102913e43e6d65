package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordResolution(OutcomeAuthorized)
		m.RecordRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RecordStorageOperation("upload", nil)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordResolution(OutcomeAuthorized)
	m.RecordResolution(OutcomeAuthorized)
	m.RecordResolution(OutcomeInvalidToken)
	m.RecordStorageOperation("delete", errors.New("boom"))
	m.RecordRequest(http.MethodGet, "/webhook", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues(OutcomeAuthorized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues(OutcomeInvalidToken)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageOps.WithLabelValues("delete", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/webhook", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordResolution(OutcomeMissingToken)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `webhook_resolutions_total{outcome="missing_token"} 1`))
}
