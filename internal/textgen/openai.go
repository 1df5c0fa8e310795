package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/albapepper/ember/internal/anomaly"
)

const (
	defaultMaxTokens   = 120
	defaultTemperature = 0.6
	maxMessageRunes    = 320
)

const checkInPrompt = `You are Ember, a warm, low-key health companion that texts a user at most once a day.
Write ONE short text message (under 40 words, no emoji spam, no medical advice) checking in about the observation below.
Mention the concrete numbers naturally. End with a simple question.`

const ackPrompt = `You are Ember, a warm, low-key health companion. The user just replied to your daily check-in.
Write ONE short closing text (under 30 words) that acknowledges what they said. Do not ask another question.`

// providerBaseURLs are the defaults for known OpenAI-compatible providers.
var providerBaseURLs = map[string]string{
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"openrouter":  "https://openrouter.ai/api/v1",
	"ollama":      "http://localhost:11434/v1",
}

// OpenAIConfig configures the OpenAI-compatible generator.
type OpenAIConfig struct {
	Provider    string // openai, deepseek, siliconflow, openrouter, ollama, or any compatible
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// OpenAI generates texts with a chat completion model.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAI builds a generator. The HTTP client has no overall timeout of its
// own; callers bound each call through ctx.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		clientConfig.BaseURL = cfg.BaseURL
	case providerBaseURLs[cfg.Provider] != "":
		clientConfig.BaseURL = providerBaseURLs[cfg.Provider]
	case cfg.Provider != "" && cfg.Provider != "openai":
		slog.Info("Using generic OpenAI-compatible provider", "provider", cfg.Provider)
	}
	clientConfig.HTTPClient = newHTTPClient()

	g := &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.temperature <= 0 {
		g.temperature = defaultTemperature
	}
	return g, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}
}

// CheckIn asks the model for a short check-in about a.
func (g *OpenAI) CheckIn(ctx context.Context, a *anomaly.Anomaly) (string, error) {
	if a == nil {
		return "", errors.New("no anomaly to describe")
	}
	obs, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal anomaly: %w", err)
	}
	return g.complete(ctx, checkInPrompt, "Observation: "+string(obs))
}

// Acknowledge asks the model for a one-line reply to inbound.
func (g *OpenAI) Acknowledge(ctx context.Context, inbound string) (string, error) {
	return g.complete(ctx, ackPrompt, "User reply: "+inbound)
}

func (g *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("blank completion")
	}
	slog.Debug("Text generated",
		"model", g.model,
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds())
	return truncate(text, maxMessageRunes), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
