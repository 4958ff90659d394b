package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gw-fraud-scoring/pkg/metrics"

	"github.com/stretchr/testify/assert"
)

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(Config{Port: "9091", WriteTimeout: time.Second})

	assert.Equal(t, ":9091", s.Addr())
	assert.Equal(t, time.Second, s.httpServer.WriteTimeout)
	assert.Equal(t, 10*time.Second, s.httpServer.ReadTimeout)
}

func TestRegisterMetrics(t *testing.T) {
	m := metrics.NewCollector()
	m.RecordReplay()
	s := NewServer(Config{Port: "0"})
	s.RegisterMetrics(m.Handler())

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fraud_idempotent_replays_total 1")
}
