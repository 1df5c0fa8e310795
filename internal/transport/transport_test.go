package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSender(t *testing.T) {
	s := NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, s.Send(t.Context(), "u1", "hello"))
	assert.Error(t, s.Send(t.Context(), "", "hello"))
}

func TestWebhook_Send(t *testing.T) {
	var got webhookPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh, err := NewWebhook(srv.URL, "secret")
	require.NoError(t, err)
	require.NoError(t, wh.Send(t.Context(), "+15550001", "Rough night?"))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, webhookPayload{To: "+15550001", Body: "Rough night?"}, got)
}

func TestWebhook_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "carrier rejected", http.StatusBadGateway)
	}))
	defer srv.Close()

	wh, err := NewWebhook(srv.URL, "")
	require.NoError(t, err)
	err = wh.Send(t.Context(), "+15550001", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhook_RequiresURL(t *testing.T) {
	_, err := NewWebhook("", "")
	assert.Error(t, err)
}

// fakeBotAPI answers getMe and sendMessage like the Telegram Bot API.
func fakeBotAPI(t *testing.T, delay time.Duration) (*httptest.Server, *sync.Map) {
	t.Helper()
	sent := &sync.Map{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Ember","username":"ember_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if delay > 0 {
				time.Sleep(delay)
			}
			assert.NoError(t, r.ParseForm())
			sent.Store(r.Form.Get("chat_id"), r.Form.Get("text"))
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, sent
}

func TestTelegram_Send(t *testing.T) {
	srv, sent := fakeBotAPI(t, 0)
	tg, err := NewTelegramWithEndpoint("TOKEN", srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	require.NoError(t, tg.Send(t.Context(), "42", "Rough night?"))
	text, ok := sent.Load("42")
	require.True(t, ok)
	assert.Equal(t, "Rough night?", text)

	assert.Error(t, tg.Send(t.Context(), "not-a-chat", "hi"))
}

func TestTelegram_SendRespectsDeadline(t *testing.T) {
	srv, _ := fakeBotAPI(t, 500*time.Millisecond)
	tg, err := NewTelegramWithEndpoint("TOKEN", srv.URL+"/bot%s/%s")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.Error(t, tg.Send(ctx, "42", "hi"))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
