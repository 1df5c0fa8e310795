package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/ember/internal/api/respond"
	"github.com/albapepper/ember/internal/checkin"
	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/metrics"
	"github.com/albapepper/ember/internal/state"
)

type recordingSender struct {
	mu    sync.Mutex
	texts map[string][]string
}

func (s *recordingSender) Send(_ context.Context, identity, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.texts == nil {
		s.texts = map[string][]string{}
	}
	s.texts[identity] = append(s.texts[identity], text)
	return nil
}

func (s *recordingSender) count(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts[identity])
}

// toggleBackend fails every call while down is set.
type toggleBackend struct {
	state.Backend
	down atomic.Bool
}

func (b *toggleBackend) Put(ctx context.Context, s *state.UserState) error {
	if b.down.Load() {
		return errors.New("disk I/O error")
	}
	return b.Backend.Put(ctx, s)
}

func (b *toggleBackend) Ping(ctx context.Context) error {
	if b.down.Load() {
		return errors.New("disk I/O error")
	}
	return b.Backend.Ping(ctx)
}

type testServer struct {
	router  http.Handler
	sender  *recordingSender
	backend *toggleBackend
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	sqlite, err := state.OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	cfg := &config.Config{
		StoreDriver:       config.StoreSQLite,
		Transport:         config.TransportLog,
		CORSAllowOrigins:  []string{"http://localhost:5173"},
		RateLimitEnabled:  false,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		TelegramSecret:    "s3cret",
	}
	if mutate != nil {
		mutate(cfg)
	}

	ts := &testServer{
		sender:  &recordingSender{},
		backend: &toggleBackend{Backend: sqlite},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := state.NewRepository(ts.backend)
	rec := metrics.New()
	svc := checkin.New(repo, nil, ts.sender, rec, logger, checkin.Options{})
	ts.router = NewRouter(svc, repo, rec, cfg, logger)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// seedSleep posts a week of history (mean 7.5h, stddev ~0.46h) for identity.
func (ts *testServer) seedSleep(t *testing.T, identity string) {
	t.Helper()
	for i := 7; i >= 1; i-- {
		hours := 7.0
		if i%2 == 0 {
			hours = 8.0
		}
		if i == 1 {
			hours = 7.5
		}
		body := mustJSON(t, map[string]interface{}{
			"identity": identity,
			"snapshot": map[string]interface{}{
				"timestamp":            time.Now().AddDate(0, 0, -i).UTC().Format(time.RFC3339),
				"sleep_duration_hours": hours,
			},
		})
		res := ts.do(t, http.MethodPost, "/sync", body)
		require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	}
}

func (ts *testServer) shortNight(t *testing.T, identity string) checkin.SnapshotResult {
	t.Helper()
	body := mustJSON(t, map[string]interface{}{
		"identity": identity,
		"snapshot": map[string]interface{}{
			"timestamp":            time.Now().UTC().Format(time.RFC3339),
			"sleep_duration_hours": 4.0,
		},
	})
	res := ts.do(t, http.MethodPost, "/sync", body)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var out checkin.SnapshotResult
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) respond.ErrorResponse {
	t.Helper()
	var out respond.ErrorResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	res := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEmpty(t, res.Header().Get("X-Process-Time"))

	res = ts.do(t, http.MethodGet, "/health/store", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"cached_records"`)

	ts.backend.down.Store(true)
	res = ts.do(t, http.MethodGet, "/health/store", "")
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestSync_CheckInReplyLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	const id = "+15550001"
	ts.seedSleep(t, id)

	first := ts.shortNight(t, id)
	require.NotNil(t, first.Anomaly)
	assert.Equal(t, "short_sleep", string(first.Anomaly.Type))
	assert.True(t, first.Sent)

	second := ts.shortNight(t, id)
	assert.False(t, second.Sent, "one proactive message per day")
	assert.Equal(t, 1, ts.sender.count(id))

	reply := mustJSON(t, map[string]string{"identity": id, "text": "bad night"})
	res := ts.do(t, http.MethodPost, "/webhook/inbound", reply)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"replied":true}`, res.Body.String())

	res = ts.do(t, http.MethodPost, "/webhook/inbound", reply)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"replied":false}`, res.Body.String())
	assert.Equal(t, 2, ts.sender.count(id))
}

func TestSync_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	res := ts.do(t, http.MethodPost, "/sync", "{not json")
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, res).Error.Code)

	body := `{"identity":"u1","snapshot":{"timestamp":"2026-03-02T07:00:00Z","resting_hr":400}}`
	res = ts.do(t, http.MethodPost, "/sync", body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	e := decodeError(t, res)
	assert.Equal(t, "VALIDATION_ERROR", e.Error.Code)
	assert.Equal(t, "resting_hr", e.Error.Detail)

	ts.backend.down.Store(true)
	body = `{"identity":"u1","snapshot":{"timestamp":"2026-03-02T07:00:00Z","resting_hr":60}}`
	res = ts.do(t, http.MethodPost, "/sync", body)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Equal(t, "PERSISTENCE_ERROR", decodeError(t, res).Error.Code)
}

func TestTelegramWebhook(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedSleep(t, "42")
	require.True(t, ts.shortNight(t, "42").Sent)

	update := `{"update_id":1,"message":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"},"text":"slept badly"}}`
	command := `{"update_id":2,"message":{"message_id":6,"date":0,"chat":{"id":42,"type":"private"},"text":"/start","entities":[{"type":"bot_command","offset":0,"length":6}]}}`
	secret := []string{"X-Telegram-Bot-Api-Secret-Token", "s3cret"}

	res := ts.do(t, http.MethodPost, "/webhook/telegram", update)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = ts.do(t, http.MethodPost, "/webhook/telegram", command, secret...)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"replied":false}`, res.Body.String())

	res = ts.do(t, http.MethodPost, "/webhook/telegram", update, secret...)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"replied":true}`, res.Body.String())
	assert.Equal(t, 2, ts.sender.count("42"))
}

func TestGetState_ETag(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.seedSleep(t, "u1")

	res := ts.do(t, http.MethodGet, "/api/v1/users/u1/state", "")
	require.Equal(t, http.StatusOK, res.Code)
	etag := res.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var st state.UserState
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &st))
	assert.Equal(t, "u1", st.Identity)
	assert.Len(t, st.Window, 7)
	assert.Equal(t, 7, st.SnapshotsSeen)

	res = ts.do(t, http.MethodGet, "/api/v1/users/u1/state", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, res.Code)

	ts.shortNight(t, "u1")
	res = ts.do(t, http.MethodGet, "/api/v1/users/u1/state", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.NotEqual(t, etag, res.Header().Get("ETag"))
}

func TestGetBaseline(t *testing.T) {
	ts := newTestServer(t, nil)

	res := ts.do(t, http.MethodGet, "/api/v1/users/nobody/baseline", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"identity":"nobody","baseline":null}`, res.Body.String())

	ts.seedSleep(t, "u1")
	res = ts.do(t, http.MethodGet, "/api/v1/users/u1/baseline", "")
	require.Equal(t, http.StatusOK, res.Code)

	var out struct {
		Baseline struct {
			Sleep struct {
				Mean   float64 `json:"mean"`
				StdDev float64 `json:"stddev"`
			} `json:"sleep_duration_hours"`
			Samples int `json:"samples"`
		} `json:"baseline"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	assert.InDelta(t, 7.5, out.Baseline.Sleep.Mean, 1e-9)
	assert.InDelta(t, 0.4629, out.Baseline.Sleep.StdDev, 1e-3)
	assert.Equal(t, 7, out.Baseline.Samples)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/sync", `{"identity":"u1","snapshot":{"timestamp":"2026-03-02T07:00:00Z"}}`)

	res := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `ember_snapshots_total{result="accepted"} 1`)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.RateLimitEnabled = true
		c.RateLimitRequests = 2
	})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/users/u1/state", "").Code)
	res := ts.do(t, http.MethodGet, "/api/v1/users/u1/state", "")
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "60", res.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", "").Code)
}
