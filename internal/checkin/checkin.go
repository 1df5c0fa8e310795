// Package checkin orchestrates snapshot ingestion and inbound replies.
//
// Every operation runs inside the identity's repository mutation, so the
// baseline, detector verdict, outbound message and window update for one user
// are linearized. Outbound calls (text generation and transport) are bounded
// by their own timeouts and degrade instead of failing the request: a failed
// generation falls back to template text, and a failed send leaves the
// cooldown unconsumed.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/albapepper/ember/internal/anomaly"
	"github.com/albapepper/ember/internal/baseline"
	"github.com/albapepper/ember/internal/conversation"
	"github.com/albapepper/ember/internal/metrics"
	"github.com/albapepper/ember/internal/state"
	"github.com/albapepper/ember/internal/textgen"
	"github.com/albapepper/ember/internal/transport"
)

// Message kinds used in logs and metrics.
const (
	KindCheckIn = "checkin"
	KindAck     = "ack"
)

// Options tune the service. Zero values fall back to defaults.
type Options struct {
	MinSamples      int
	GenerateTimeout time.Duration
	SendTimeout     time.Duration
	Location        *time.Location
}

func (o Options) withDefaults() Options {
	if o.MinSamples <= 0 {
		o.MinSamples = baseline.DefaultMinSamples
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = 8 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// SnapshotResult is the outcome of HandleSnapshot.
type SnapshotResult struct {
	Anomaly *anomaly.Anomaly `json:"anomaly"`
	Sent    bool             `json:"sent"`
}

// ReplyResult is the outcome of HandleInboundReply.
type ReplyResult struct {
	Replied bool `json:"replied"`
}

// UpstreamError describes a failed generation or transport call. It is
// logged and counted, never returned to callers.
type UpstreamError struct {
	Call string // generate_checkin, generate_ack, send
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Call, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Service wires the domain packages to a repository and the outbound
// capabilities.
type Service struct {
	repo    *state.Repository
	gen     textgen.Generator
	sender  transport.Sender
	metrics *metrics.Recorder
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

// New creates a Service. gen may be nil (template text only) and rec may be
// nil (no metrics).
func New(repo *state.Repository, gen textgen.Generator, sender transport.Sender,
	rec *metrics.Recorder, logger *slog.Logger, opts Options) *Service {
	if gen == nil {
		gen = textgen.Template{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		gen:     gen,
		sender:  sender,
		metrics: rec,
		logger:  logger,
		opts:    opts.withDefaults(),
		now:     time.Now,
	}
}

// Location is the calendar used for cooldown days and weekday derivation.
func (s *Service) Location() *time.Location { return s.opts.Location }

// --------------------------------------------------------------------------
// Snapshot ingestion
// --------------------------------------------------------------------------

// HandleSnapshot validates snap, evaluates it against the identity's
// baseline (computed before snap joins the window), sends a check-in when an
// anomaly is found and the daily cooldown allows it, and commits the updated
// record.
//
// Returns *baseline.ValidationError for bad input and *state.PersistenceError
// when the record could not be loaded or committed.
func (s *Service) HandleSnapshot(ctx context.Context, identity string, snap baseline.Snapshot) (SnapshotResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		s.metrics.Snapshot("invalid")
		return SnapshotResult{}, &baseline.ValidationError{Field: "identity", Reason: "required"}
	}
	if err := baseline.Validate(snap); err != nil {
		s.metrics.Snapshot("invalid")
		return SnapshotResult{}, err
	}
	snap = baseline.Normalize(snap, s.opts.Location)

	var result SnapshotResult
	_, err := s.repo.Mutate(ctx, identity, func(st *state.UserState) error {
		result = SnapshotResult{}
		now := s.now().In(s.opts.Location)

		b := baseline.Compute(st.Window, s.opts.MinSamples, s.opts.Location)
		result.Anomaly = anomaly.Evaluate(snap, b, now)

		if result.Anomaly != nil {
			s.metrics.Anomaly(string(result.Anomaly.Type))
			result.Sent = s.checkIn(ctx, st, result.Anomaly, now)
		}

		st.Window = baseline.Append(st.Window, snap)
		st.SnapshotsSeen++
		return nil
	})
	if err != nil {
		s.persistenceFailed(identity, err)
		s.metrics.Snapshot("error")
		return SnapshotResult{}, err
	}

	s.metrics.Snapshot("accepted")
	return result, nil
}

// checkIn sends the check-in for a and opens today's thread when the send is
// confirmed. It reports whether a message went out.
func (s *Service) checkIn(ctx context.Context, st *state.UserState, a *anomaly.Anomaly, now time.Time) bool {
	if !conversation.CanOpen(st, now) {
		s.metrics.Message(KindCheckIn, metrics.OutcomeCooldown)
		s.logger.Debug("Check-in suppressed by cooldown",
			"identity", st.Identity, "anomaly", a.Type)
		return false
	}

	text := s.generate(ctx, KindCheckIn, func(ctx context.Context) (string, error) {
		return s.gen.CheckIn(ctx, a)
	}, func() string { return textgen.DefaultCheckIn(a) })

	if err := s.send(ctx, st.Identity, text); err != nil {
		s.metrics.Message(KindCheckIn, metrics.OutcomeFailed)
		s.logger.Warn("Check-in send failed, cooldown left unconsumed",
			"identity", st.Identity, "anomaly", a.Type, "error", err)
		return false
	}

	conversation.OpenThread(st, string(a.Type), text, now)
	s.metrics.Message(KindCheckIn, metrics.OutcomeSent)
	s.logger.Info("Check-in sent", "identity", st.Identity, "anomaly", a.Type)
	return true
}

// --------------------------------------------------------------------------
// Inbound replies
// --------------------------------------------------------------------------

// HandleInboundReply records the user's reply to today's open thread, sends
// one acknowledgment and closes the thread. Replies with no open thread (none
// sent today, already answered, or stale) are ignored and nothing is
// committed. If the acknowledgment cannot be delivered the record is left
// unchanged so a later reply can still be acknowledged.
func (s *Service) HandleInboundReply(ctx context.Context, identity, text string) (ReplyResult, error) {
	identity = strings.TrimSpace(identity)
	text = strings.TrimSpace(text)
	if identity == "" {
		return ReplyResult{}, &baseline.ValidationError{Field: "identity", Reason: "required"}
	}
	if text == "" {
		return ReplyResult{}, &baseline.ValidationError{Field: "text", Reason: "required"}
	}

	var result ReplyResult
	_, err := s.repo.Mutate(ctx, identity, func(st *state.UserState) error {
		result = ReplyResult{}
		now := s.now().In(s.opts.Location)

		if !conversation.AcceptReply(st, text, now) {
			s.metrics.Message(KindAck, metrics.OutcomeSkipped)
			s.logger.Debug("Reply ignored, no open thread",
				"identity", identity, "phase", conversation.PhaseOf(st, now))
			return state.ErrNoCommit
		}

		ack := s.generate(ctx, KindAck, func(ctx context.Context) (string, error) {
			return s.gen.Acknowledge(ctx, text)
		}, func() string { return textgen.DefaultAcknowledgment })

		if err := s.send(ctx, identity, ack); err != nil {
			s.metrics.Message(KindAck, metrics.OutcomeFailed)
			s.logger.Warn("Acknowledgment send failed, thread left open",
				"identity", identity, "error", err)
			return state.ErrNoCommit
		}

		conversation.Acknowledge(st, ack, now)
		s.metrics.Message(KindAck, metrics.OutcomeSent)
		s.logger.Info("Reply acknowledged", "identity", identity, "anomaly", st.ThreadAnomaly)
		result.Replied = true
		return nil
	})
	if err != nil {
		s.persistenceFailed(identity, err)
		return ReplyResult{}, err
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Read side
// --------------------------------------------------------------------------

// State returns the identity's committed record (a fresh default if none).
func (s *Service) State(ctx context.Context, identity string) (*state.UserState, error) {
	return s.repo.Load(ctx, identity)
}

// Baseline computes the identity's current baseline. The result is nil when
// the window is still too short.
func (s *Service) Baseline(ctx context.Context, identity string) (*baseline.Baseline, error) {
	st, err := s.repo.Load(ctx, identity)
	if err != nil {
		return nil, err
	}
	return baseline.Compute(st.Window, s.opts.MinSamples, s.opts.Location), nil
}

// --------------------------------------------------------------------------
// Outbound calls
// --------------------------------------------------------------------------

// generate runs fn under GenerateTimeout and returns fallback() when it
// fails, times out or produces blank text.
func (s *Service) generate(ctx context.Context, kind string, fn func(context.Context) (string, error), fallback func() string) string {
	call := "generate_" + kind
	start := time.Now()
	text, err := bounded(outbound(ctx), s.opts.GenerateTimeout, fn)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty text")
	}
	s.metrics.Upstream(call, time.Since(start), err)
	if err != nil {
		s.metrics.Fallback(kind)
		s.logger.Warn("Text generation failed, using template",
			"error", &UpstreamError{Call: call, Err: err})
		return fallback()
	}
	return strings.TrimSpace(text)
}

// send delivers text under SendTimeout. Any error means not sent.
func (s *Service) send(ctx context.Context, identity, text string) error {
	start := time.Now()
	_, err := bounded(outbound(ctx), s.opts.SendTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.sender.Send(ctx, identity, text)
	})
	s.metrics.Upstream("send", time.Since(start), err)
	if err != nil {
		return &UpstreamError{Call: "send", Err: err}
	}
	return nil
}

func (s *Service) persistenceFailed(identity string, err error) {
	var pe *state.PersistenceError
	if errors.As(err, &pe) {
		s.metrics.PersistenceError(pe.Op)
		s.logger.Error("State persistence failed",
			"identity", identity, "op", pe.Op, "error", pe.Err)
	}
}

// outbound detaches ctx from the caller's cancellation. Outbound calls are
// bounded only by their own timeouts.
func outbound(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// bounded runs fn with a timeout and returns as soon as the timeout fires,
// even if fn ignores its context.
func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type out struct {
		v   T
		err error
	}
	done := make(chan out, 1)
	go func() {
		v, err := fn(ctx)
		done <- out{v, err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
