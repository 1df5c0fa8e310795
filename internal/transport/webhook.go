package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook posts messages to an SMS gateway (or any HTTP relay) as JSON:
//
//	{"to": "<identity>", "body": "<text>"}
//
// Any 2xx status is a confirmed delivery.
type Webhook struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewWebhook creates a gateway sender. token may be empty.
func NewWebhook(url, token string) (*Webhook, error) {
	if url == "" {
		return nil, errors.New("webhook URL required")
	}
	return &Webhook{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type webhookPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send posts the message to the gateway. Non-2xx responses are failures.
func (w *Webhook) Send(ctx context.Context, identity, text string) error {
	body, err := json.Marshal(webhookPayload{To: identity, Body: text})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
