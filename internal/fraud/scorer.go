// Package fraud holds the two fraud models: the additive Scorer used inline
// by the pipeline, and the weighted multi-factor Analyzer behind the
// dedicated fraud-analysis entry point. The two use different scales.
package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Indicator types produced by the Scorer.
const (
	IndicatorExternalSignal = "external_signal"
	IndicatorBankChange     = "bank_account_change"
	IndicatorHighAmount     = "high_amount"
	IndicatorRoundAmount    = "round_amount"
	IndicatorDateMismatch   = "date_mismatch"
)

// ScorerConfig holds the inline scorer's point table.
type ScorerConfig struct {
	SuspiciousScore  float64
	BankChangePoints float64
	HighAmount       decimal.Decimal
	HighAmountPoints float64
	RoundMultiple    decimal.Decimal
	RoundMinimum     decimal.Decimal
	RoundPoints      float64
	DateGapDays      int
	DateGapPoints    float64
}

// DefaultScorerConfig returns the standard point table.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		SuspiciousScore:  30,
		BankChangePoints: 20,
		HighAmount:       decimal.NewFromInt(100000),
		HighAmountPoints: 10,
		RoundMultiple:    decimal.NewFromInt(1000),
		RoundMinimum:     decimal.NewFromInt(5000),
		RoundPoints:      5,
		DateGapDays:      90,
		DateGapPoints:    15,
	}
}

// Score is the inline fraud verdict on a 0–100 scale.
type Score struct {
	Score          float64                `json:"score"`
	Suspicious     bool                   `json:"suspicious"`
	Reasons        []domain.RiskIndicator `json:"reasons"`
	ExternalScore  float64                `json:"external_score"`
	SignalDegraded bool                   `json:"signal_degraded"`
}

// Scorer combines an optional external signal with fixed heuristics.
type Scorer struct {
	signal port.FraudSignal
	cfg    ScorerConfig
	log    *zap.Logger
}

// NewScorer creates a Scorer. signal may be nil.
func NewScorer(signal port.FraudSignal, cfg ScorerConfig, log *zap.Logger) *Scorer {
	return &Scorer{signal: signal, cfg: cfg, log: logger.OrNop(log)}
}

// Score rates the invoice. It never fails: an unavailable external signal
// contributes nothing.
func (s *Scorer) Score(ctx context.Context, inv *domain.Invoice) *Score {
	res := &Score{}
	total := 0.0

	ext, degraded := s.external(ctx, inv)
	res.SignalDegraded = degraded
	if ext != nil && ext.Score > 0 {
		res.ExternalScore = ext.Score
		total += ext.Score
		res.Reasons = append(res.Reasons, domain.RiskIndicator{
			Type:        IndicatorExternalSignal,
			Severity:    domain.SeverityMedium,
			Description: externalDescription(ext),
			Points:      ext.Score,
		})
	}

	if inv.Flags.BankAccountChanged {
		total += s.cfg.BankChangePoints
		res.Reasons = append(res.Reasons, domain.RiskIndicator{
			Type:        IndicatorBankChange,
			Severity:    domain.SeverityHigh,
			Description: "bank details differ from vendor master",
			Points:      s.cfg.BankChangePoints,
		})
	}

	if inv.TotalAmount.GreaterThan(s.cfg.HighAmount) {
		total += s.cfg.HighAmountPoints
		res.Reasons = append(res.Reasons, domain.RiskIndicator{
			Type:        IndicatorHighAmount,
			Severity:    domain.SeverityMedium,
			Description: fmt.Sprintf("amount %s exceeds %s", inv.TotalAmount.StringFixed(2), s.cfg.HighAmount),
			Points:      s.cfg.HighAmountPoints,
		})
	}

	if inv.TotalAmount.GreaterThan(s.cfg.RoundMinimum) && inv.TotalAmount.Mod(s.cfg.RoundMultiple).IsZero() {
		total += s.cfg.RoundPoints
		res.Reasons = append(res.Reasons, domain.RiskIndicator{
			Type:        IndicatorRoundAmount,
			Severity:    domain.SeverityLow,
			Description: fmt.Sprintf("round amount %s", inv.TotalAmount.StringFixed(2)),
			Points:      s.cfg.RoundPoints,
		})
	}

	if gap := dayGap(inv.InvoiceDate, inv.ReceivedDate); gap > s.cfg.DateGapDays {
		total += s.cfg.DateGapPoints
		res.Reasons = append(res.Reasons, domain.RiskIndicator{
			Type:        IndicatorDateMismatch,
			Severity:    domain.SeverityMedium,
			Description: fmt.Sprintf("invoice date and received date are %d days apart", gap),
			Points:      s.cfg.DateGapPoints,
		})
	}

	res.Score = clamp(total, 0, 100)
	res.Suspicious = res.Score >= s.cfg.SuspiciousScore
	return res
}

func (s *Scorer) external(ctx context.Context, inv *domain.Invoice) (*port.FraudSignalResult, bool) {
	if s.signal == nil {
		return nil, true
	}
	out, err := s.signal.Signal(ctx, port.FraudSignalRequest{
		InvoiceID:          inv.ID,
		VendorID:           inv.VendorID,
		VendorName:         inv.VendorName,
		InvoiceNumber:      inv.InvoiceNumber,
		Amount:             inv.TotalAmount,
		BankDetails:        inv.BankDetails,
		BankAccountChanged: inv.Flags.BankAccountChanged,
	})
	if err != nil {
		s.log.Warn("fraud.Scorer: external signal unavailable",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return nil, true
	}
	return out, out.Degraded
}

func externalDescription(r *port.FraudSignalResult) string {
	if len(r.Flags) == 0 {
		return fmt.Sprintf("external model score %.0f", r.Score)
	}
	return fmt.Sprintf("external model score %.0f (%d flags, first: %s)", r.Score, len(r.Flags), r.Flags[0].Type)
}

// dayGap returns the absolute whole-day distance between two dates, or 0 when
// either is unset.
func dayGap(a, b time.Time) int {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
