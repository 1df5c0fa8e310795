// Package maintenance runs periodic background tasks as Go tickers.
// The API server is a single long-running process, so housekeeping for the
// state repository is driven from here rather than an external scheduler.
package maintenance

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/albapepper/ember/internal/metrics"
)

// Store is the part of the state repository maintenance works on.
type Store interface {
	EvictIdle(maxIdle time.Duration) int
	Cached() int
	Ping(ctx context.Context) error
}

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	EvictInterval time.Duration // Drop idle records from the repository cache
	IdleAfter     time.Duration // How long a cached record may sit untouched
	ProbeInterval time.Duration // Ping the state backend
	ProbeTimeout  time.Duration
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		EvictInterval: 5 * time.Minute,
		IdleAfter:     time.Hour,
		ProbeInterval: 1 * time.Minute,
		ProbeTimeout:  5 * time.Second,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, store Store, rec *metrics.Recorder, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"evict", cfg.EvictInterval,
		"idle_after", cfg.IdleAfter,
		"probe", cfg.ProbeInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Evict: keep the repository cache bounded by recent activity
	if cfg.EvictInterval > 0 && cfg.IdleAfter > 0 {
		t := time.NewTicker(cfg.EvictInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "evict", func() { evictIdle(store, cfg.IdleAfter, rec, logger) })
	}

	// Probe: surface backend outages before a user request hits them
	if cfg.ProbeInterval > 0 {
		p := &prober{store: store, rec: rec, logger: logger, timeout: cfg.ProbeTimeout}
		p.run(ctx)
		t := time.NewTicker(cfg.ProbeInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "probe", func() { p.run(ctx) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// evictIdle drops cached records untouched for longer than idle. Durable
// records are never affected.
func evictIdle(store Store, idle time.Duration, rec *metrics.Recorder, logger *slog.Logger) {
	n := store.EvictIdle(idle)
	remaining := store.Cached()
	rec.CacheEviction(n, remaining)
	if n > 0 {
		logger.Info("Evict: dropped idle cached records", "count", n, "remaining", remaining)
	}
}

// prober pings the backend and logs only on health transitions.
type prober struct {
	store   Store
	rec     *metrics.Recorder
	logger  *slog.Logger
	timeout time.Duration
	down    atomic.Bool
}

func (p *prober) run(ctx context.Context) {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.store.Ping(pctx)
	p.rec.StoreProbe(err)
	switch {
	case err != nil && !p.down.Swap(true):
		p.logger.Warn("Probe: state store unreachable", "error", err)
	case err == nil && p.down.Swap(false):
		p.logger.Info("Probe: state store recovered")
	}
}
