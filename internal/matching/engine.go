// Package matching reconciles invoices against purchase orders and goods
// receipts.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Config holds the engine tolerance and call timeout.
type Config struct {
	Tolerance domain.Tolerance
	Timeout   time.Duration
}

// DefaultConfig returns the standard tolerance with a 30s timeout.
func DefaultConfig() Config {
	return Config{Tolerance: domain.DefaultTolerance(), Timeout: 30 * time.Second}
}

// Engine turns a Matcher verdict into a MatchRecord. Match never fails.
type Engine struct {
	matcher port.Matcher
	cfg     Config
	now     func() time.Time
	log     *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(matcher port.Matcher, cfg Config, log *zap.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Engine{matcher: matcher, cfg: cfg, now: time.Now, log: logger.OrNop(log)}
}

// Match reconciles the invoice. Any matcher failure, timeout or panic yields
// the fallback record.
func (e *Engine) Match(ctx context.Context, inv *domain.Invoice) (rec *domain.MatchRecord) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("matching.Match: matcher panicked",
				zap.String("invoice_id", inv.ID.String()), zap.Any("panic", r))
			rec = e.Fallback(inv)
		}
	}()

	if e.matcher == nil {
		return e.Fallback(inv)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	res, err := e.matcher.Match(callCtx, port.MatchRequest{
		InvoiceID:  inv.ID,
		VendorID:   inv.VendorID,
		VendorName: inv.VendorName,
		PONumbers:  inv.PONumbers,
		LineItems:  inv.LineItems,
		Total:      inv.TotalAmount,
		Tolerance:  e.cfg.Tolerance,
	})
	if err != nil || res == nil {
		e.log.Warn("matching.Match: matcher unavailable, using fallback",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return e.Fallback(inv)
	}
	return e.record(inv, res)
}

// Fallback is the deterministic record used when matching cannot run.
func (e *Engine) Fallback(inv *domain.Invoice) *domain.MatchRecord {
	now := e.now().UTC()
	rec := &domain.MatchRecord{
		ID:              uuid.New(),
		InvoiceID:       inv.ID,
		MatchType:       matchTypeFor(len(inv.PONumbers)),
		Status:          domain.MatchStatusNoMatch,
		Score:           0,
		MatchedAmount:   decimal.Zero,
		UnmatchedAmount: inv.TotalAmount,
		Tolerance:       e.cfg.Tolerance,
		Source:          domain.MatchSourceFallback,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rec.EvaluateAutoMatch()
	return rec
}

func (e *Engine) record(inv *domain.Invoice, res *port.MatchResult) *domain.MatchRecord {
	now := e.now().UTC()
	rec := &domain.MatchRecord{
		ID:              uuid.New(),
		InvoiceID:       inv.ID,
		MatchType:       res.MatchType,
		Status:          res.Status,
		Score:           clampScore(res.Score),
		MatchedPOs:      res.MatchedPOs,
		MatchedGRNs:     res.MatchedGRNs,
		LineMatches:     res.LineMatches,
		MismatchReasons: res.MismatchReasons,
		MatchedAmount:   res.MatchedAmount,
		UnmatchedAmount: res.UnmatchedAmount,
		Tolerance:       e.cfg.Tolerance,
		Source:          res.Source,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if rec.MatchType == "" {
		rec.MatchType = matchTypeFor(len(inv.PONumbers))
	}
	if rec.Status == "" {
		rec.Status = domain.MatchStatusNoMatch
	}
	if rec.Source == "" {
		rec.Source = domain.MatchSourceService
	}
	rec.EvaluateAutoMatch()

	e.log.Info("matching.Match: matched",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("status", string(rec.Status)),
		zap.Float64("score", rec.Score),
		zap.Int("mismatches", len(rec.MismatchReasons)))
	return rec
}

// ExceptionTypeFor maps a blocking mismatch to its exception type.
func ExceptionTypeFor(t domain.MismatchType) (domain.ExceptionType, error) {
	switch t {
	case domain.MismatchPrice:
		return domain.ExceptionPriceMismatch, nil
	case domain.MismatchQuantity:
		return domain.ExceptionQuantityMismatch, nil
	case domain.MismatchAmount:
		return domain.ExceptionAmountMismatch, nil
	case domain.MismatchPONotFound:
		return domain.ExceptionPONotFound, nil
	case domain.MismatchGRNNotFound:
		return domain.ExceptionGRNNotFound, nil
	default:
		return "", fmt.Errorf("%w: mismatch %q", domain.ErrUnknownExceptionType, t)
	}
}

func matchTypeFor(poCount int) domain.MatchType {
	if poCount > 1 {
		return domain.MatchTypeNWay
	}
	return domain.MatchTypeThreeWay
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
