package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordDegraded(t *testing.T) {
	m := NewCollector()

	m.RecordDegraded("rules")
	m.RecordDegraded("rules")
	m.RecordDegraded("model")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.degraded.WithLabelValues("rules")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues("model")))
}

func TestCollector_RecordDispatch(t *testing.T) {
	m := NewCollector()

	m.RecordDispatchPublished("fraud_alert", nil)
	m.RecordDispatchPublished("fraud_alert", errors.New("broker down"))
	m.RecordDispatchDropped("profile_update")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchPublished.WithLabelValues("fraud_alert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchPublished.WithLabelValues("fraud_alert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchDropped.WithLabelValues("profile_update")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var m *Collector
	assert.NotPanics(t, func() {
		m.RecordDecision(time.Millisecond, "approved", 0.1, 0.2, 0.3)
		m.RecordDegraded("rules")
		m.RecordReplay()
		m.RecordConflict()
		m.RecordDispatchDropped("fraud_alert")
		m.RecordTask("fraud_alert", nil)
		m.RecordWebhookAttempt(true)
		m.RecordRateLimited()
	})
}

func TestCollector_Handler(t *testing.T) {
	m := NewCollector()
	m.RecordDecision(10*time.Millisecond, "approved", 0.1, 0.2, 0.16)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fraud_decisions_total{status="approved"} 1`)
}
