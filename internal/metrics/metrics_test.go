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

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Snapshot("accepted")
		r.Anomaly("short_sleep")
		r.Message("checkin", OutcomeSent)
		r.Upstream("send", time.Second, nil)
		r.Fallback("checkin")
		r.PersistenceError("commit")
		r.StoreProbe(nil)
		r.CacheEviction(1, 2)
	})
	assert.Nil(t, r.Registry())
}

func TestCounters(t *testing.T) {
	r := New()
	r.Anomaly("short_sleep")
	r.Anomaly("short_sleep")
	r.Message("checkin", OutcomeFailed)
	r.Upstream("send", 20*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.anomalies.WithLabelValues("short_sleep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messages.WithLabelValues("checkin", OutcomeFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.upstream))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.Snapshot("accepted")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `ember_snapshots_total{result="accepted"} 1`))
}

func TestMaintenanceGauges(t *testing.T) {
	r := New()
	r.StoreProbe(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.storeUp))
	r.StoreProbe(errors.New("locked"))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.storeUp))

	r.CacheEviction(3, 10)
	r.CacheEviction(2, 8)
	assert.Equal(t, 5.0, testutil.ToFloat64(r.evictions))
	assert.Equal(t, 8.0, testutil.ToFloat64(r.cached))
}
