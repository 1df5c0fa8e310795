package bootstrap

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/ember/internal/baseline"
	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/textgen"
	"github.com/albapepper/ember/internal/transport"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		StoreDriver:     config.StoreSQLite,
		SQLitePath:      filepath.Join(t.TempDir(), "nested", "ember.db"),
		Transport:       config.TransportLog,
		Timezone:        time.UTC,
		MinSamples:      7,
		GenerateTimeout: time.Second,
		SendTimeout:     time.Second,
	}
}

func TestNewGenerator(t *testing.T) {
	cfg := testConfig(t)
	g, err := NewGenerator(cfg)
	require.NoError(t, err)
	assert.IsType(t, textgen.Template{}, g)

	cfg.LLMModel = "gpt-4o-mini"
	cfg.LLMAPIKey = "sk-test"
	g, err = NewGenerator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &textgen.OpenAI{}, g)
}

func TestNewSender(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)

	s, err := NewSender(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &transport.LogSender{}, s)

	cfg.Transport = config.TransportWebhook
	cfg.SMSWebhookURL = "http://127.0.0.1:9/sms"
	s, err = NewSender(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &transport.Webhook{}, s)

	cfg.Transport = "carrier-pigeon"
	_, err = NewSender(cfg, logger)
	assert.Error(t, err)
}

func TestNew_SQLiteRuntime(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt, err := New(t.Context(), testConfig(t), nil, nil, logger)
	require.NoError(t, err)
	defer rt.Close()

	sleep := 7.5
	res, err := rt.Service.HandleSnapshot(t.Context(), "u1", baseline.Snapshot{
		Timestamp:  time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
		SleepHours: &sleep,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Anomaly)

	st, err := rt.Repo.Load(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.SnapshotsSeen)
	require.NoError(t, rt.Repo.Ping(t.Context()))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "redis"
	_, err := OpenStore(t.Context(), cfg)
	assert.Error(t, err)
}
