// Package bootstrap builds the runtime dependencies selected by config:
// the state backend, the text generator and the outbound transport. Both
// binaries assemble the check-in service through it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/ember/internal/checkin"
	"github.com/albapepper/ember/internal/config"
	"github.com/albapepper/ember/internal/db"
	"github.com/albapepper/ember/internal/metrics"
	"github.com/albapepper/ember/internal/state"
	"github.com/albapepper/ember/internal/textgen"
	"github.com/albapepper/ember/internal/transport"
)

// OpenStore opens the configured state backend. Closing the returned backend
// releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config) (state.Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		b, err := state.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return b, nil
	case config.StorePostgres:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return &pooledBackend{PostgresBackend: state.NewPostgresBackend(pool), pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// pooledBackend owns the pool behind a PostgresBackend.
type pooledBackend struct {
	*state.PostgresBackend
	pool *db.Pool
}

func (b *pooledBackend) Close() error {
	b.pool.Close()
	return nil
}

// NewGenerator returns the OpenAI-compatible generator when LLM_MODEL is set
// and the template generator otherwise.
func NewGenerator(cfg *config.Config) (textgen.Generator, error) {
	if cfg.LLMModel == "" {
		return textgen.Template{}, nil
	}
	g, err := textgen.NewOpenAI(textgen.OpenAIConfig{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create text generator: %w", err)
	}
	return g, nil
}

// NewSender returns the configured outbound transport.
func NewSender(cfg *config.Config, logger *slog.Logger) (transport.Sender, error) {
	switch cfg.Transport {
	case config.TransportLog:
		return transport.NewLogSender(logger), nil
	case config.TransportTelegram:
		tg, err := transport.NewTelegram(cfg.TelegramBotToken)
		if err != nil {
			return nil, err
		}
		return tg, nil
	case config.TransportWebhook:
		wh, err := transport.NewWebhook(cfg.SMSWebhookURL, cfg.SMSWebhookToken)
		if err != nil {
			return nil, err
		}
		return wh, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// Runtime is a fully wired check-in service and the repository behind it.
type Runtime struct {
	Repo    *state.Repository
	Service *checkin.Service
	Metrics *metrics.Recorder
}

// Close releases the state backend.
func (r *Runtime) Close() error {
	return r.Repo.Close()
}

// New assembles the runtime from cfg. sender overrides the configured
// transport when non-nil.
func New(ctx context.Context, cfg *config.Config, sender transport.Sender, rec *metrics.Recorder, logger *slog.Logger) (*Runtime, error) {
	backend, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt, err := NewWithBackend(cfg, backend, sender, rec, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return rt, nil
}

// NewWithBackend assembles the runtime over an already opened backend. The
// runtime takes ownership of backend and closes it on Close.
func NewWithBackend(cfg *config.Config, backend state.Backend, sender transport.Sender, rec *metrics.Recorder, logger *slog.Logger) (*Runtime, error) {
	gen, err := NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	if sender == nil {
		sender, err = NewSender(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
	}

	repo := state.NewRepository(backend)
	svc := checkin.New(repo, gen, sender, rec, logger, checkin.Options{
		MinSamples:      cfg.MinSamples,
		GenerateTimeout: cfg.GenerateTimeout,
		SendTimeout:     cfg.SendTimeout,
		Location:        cfg.Timezone,
	})
	return &Runtime{Repo: repo, Service: svc, Metrics: rec}, nil
}
