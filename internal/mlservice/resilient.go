package mlservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"ivms/internal/config"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Service is the full capability set of the live ML client.
type Service interface {
	port.Extractor
	port.Matcher
	port.FraudSignal
	port.CodingAdvisor
}

// circuitState tracks rate-limit backoff for a single capability.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// Timeouts bounds each capability call.
type Timeouts struct {
	Extract time.Duration
	Match   time.Duration
	Fraud   time.Duration
	Coding  time.Duration
}

// TimeoutsFromConfig converts the configured seconds, defaulting to
// 60s/30s/30s/20s.
func TimeoutsFromConfig(cfg *config.MLServiceConfig) Timeouts {
	return Timeouts{
		Extract: secondsOr(cfg.ExtractTimeoutSecs, 60),
		Match:   secondsOr(cfg.MatchTimeoutSecs, 30),
		Fraud:   secondsOr(cfg.FraudTimeoutSecs, 30),
		Coding:  secondsOr(cfg.CodingTimeoutSecs, 20),
	}
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// Adapter selects between the live service and Fallback per call. A failed
// or timed-out call is answered by Fallback; a 429 additionally opens that
// capability's circuit until Retry-After elapses. Adapter never returns an
// error.
type Adapter struct {
	live     Service
	fallback Fallback
	timeouts Timeouts

	extract *circuitState
	match   *circuitState
	fraud   *circuitState
	coding  *circuitState

	now func() time.Time
	log *zap.Logger
}

// NewAdapter wraps live. A nil live answers everything from Fallback.
func NewAdapter(live Service, timeouts Timeouts, log *zap.Logger) *Adapter {
	return &Adapter{
		live:     live,
		timeouts: timeouts,
		extract:  &circuitState{},
		match:    &circuitState{},
		fraud:    &circuitState{},
		coding:   &circuitState{},
		now:      time.Now,
		log:      logger.OrNop(log),
	}
}

// WithClock overrides the clock used for circuit decisions.
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	a.now = now
	return a
}

var _ Service = (*Adapter)(nil)

// Extract implements port.Extractor.
func (a *Adapter) Extract(ctx context.Context, req port.ExtractionRequest) (*port.ExtractionResult, error) {
	var live func(context.Context, port.ExtractionRequest) (*port.ExtractionResult, error)
	if a.live != nil {
		live = a.live.Extract
	}
	return guard(ctx, a, "extract", a.extract, a.timeouts.Extract, req, live, a.fallback.Extract)
}

// Match implements port.Matcher.
func (a *Adapter) Match(ctx context.Context, req port.MatchRequest) (*port.MatchResult, error) {
	var live func(context.Context, port.MatchRequest) (*port.MatchResult, error)
	if a.live != nil {
		live = a.live.Match
	}
	return guard(ctx, a, "match", a.match, a.timeouts.Match, req, live, a.fallback.Match)
}

// Signal implements port.FraudSignal.
func (a *Adapter) Signal(ctx context.Context, req port.FraudSignalRequest) (*port.FraudSignalResult, error) {
	var live func(context.Context, port.FraudSignalRequest) (*port.FraudSignalResult, error)
	if a.live != nil {
		live = a.live.Signal
	}
	return guard(ctx, a, "fraud", a.fraud, a.timeouts.Fraud, req, live, a.fallback.Signal)
}

// Suggest implements port.CodingAdvisor.
func (a *Adapter) Suggest(ctx context.Context, req port.CodingRequest) (*port.CodingResult, error) {
	var live func(context.Context, port.CodingRequest) (*port.CodingResult, error)
	if a.live != nil {
		live = a.live.Suggest
	}
	return guard(ctx, a, "coding", a.coding, a.timeouts.Coding, req, live, a.fallback.Suggest)
}

func guard[Req any, Res any](
	ctx context.Context,
	a *Adapter,
	op string,
	circuit *circuitState,
	timeout time.Duration,
	req Req,
	live, fallback func(context.Context, Req) (Res, error),
) (Res, error) {
	if live == nil {
		return fallback(ctx, req)
	}

	now := a.now()
	if resetAt, open := circuit.isOpenWithReset(now); open {
		a.log.Debug("mlservice.Adapter: circuit open, using fallback",
			zap.String("op", op),
			zap.Time("reset_at", resetAt),
		)
		return fallback(ctx, req)
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := live(callCtx, req)
	if err == nil {
		return res, nil
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		circuit.open(now.Add(rlErr.RetryAfter))
	}
	a.log.Warn("mlservice.Adapter: live call failed, using fallback",
		zap.String("op", op),
		zap.Error(err),
	)
	return fallback(ctx, req)
}
