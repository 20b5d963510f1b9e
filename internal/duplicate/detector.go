// Package duplicate scores a new invoice against recent invoices from the
// same vendor.
package duplicate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Signals reported on a match.
const (
	SignalInvoiceNumber = "invoice_number"
	SignalAmountExact   = "amount_exact"
	SignalAmountClose   = "amount_within_1pct"
	SignalDate          = "date_within_1_day"
	SignalDocumentHash  = "document_hash"
)

var (
	exactAmountTolerance = decimal.RequireFromString("0.01")
	closeAmountRatio     = decimal.RequireFromString("0.01")
	one                  = decimal.NewFromInt(1)
)

// Config holds the search window and decision threshold.
type Config struct {
	WindowDays int
	Threshold  float64
}

// DefaultConfig returns a ±7 day window with a 0.7 threshold.
func DefaultConfig() Config {
	return Config{WindowDays: 7, Threshold: 0.7}
}

// Match is one prior invoice that resembles the checked invoice.
type Match struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Confidence    float64   `json:"confidence"`
	Signals       []string  `json:"signals"`
}

// Result is the duplicate verdict.
type Result struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Confidence  float64 `json:"confidence"`
	Matches     []Match `json:"matches"`
}

// Detector checks invoices for duplicates. It only reads.
type Detector struct {
	finder port.DuplicateInvoiceFinder
	cfg    Config
	log    *zap.Logger
}

// NewDetector creates a Detector.
func NewDetector(finder port.DuplicateInvoiceFinder, cfg Config, log *zap.Logger) *Detector {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultConfig().WindowDays
	}
	return &Detector{finder: finder, cfg: cfg, log: logger.OrNop(log)}
}

// Check searches prior invoices of the same vendor and scores each candidate.
// The overall confidence is the strongest candidate's.
func (d *Detector) Check(ctx context.Context, inv *domain.Invoice) (*Result, error) {
	res := &Result{}
	if inv.VendorID == nil {
		return res, nil
	}

	window := time.Duration(d.cfg.WindowDays) * 24 * time.Hour
	low, high := amountBand(inv.TotalAmount)
	candidates, err := d.finder.FindDuplicateCandidates(ctx, port.DuplicateQuery{
		VendorID:      *inv.VendorID,
		ExcludeID:     inv.ID,
		From:          inv.InvoiceDate.Add(-window),
		To:            inv.InvoiceDate.Add(window),
		InvoiceNumber: inv.InvoiceNumber,
		AmountLow:     low,
		AmountHigh:    high,
		DocumentHash:  inv.DocumentHash,
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate.Check: %w", err)
	}

	for _, c := range candidates {
		conf, signals := Score(inv, c)
		if conf == 0 {
			continue
		}
		res.Matches = append(res.Matches, Match{
			InvoiceID:     c.ID,
			InvoiceNumber: c.InvoiceNumber,
			Confidence:    conf,
			Signals:       signals,
		})
		if conf > res.Confidence {
			res.Confidence = conf
		}
	}
	sort.SliceStable(res.Matches, func(i, j int) bool {
		return res.Matches[i].Confidence > res.Matches[j].Confidence
	})
	res.IsDuplicate = res.Confidence > d.cfg.Threshold

	if res.IsDuplicate {
		d.log.Info("duplicate.Check: probable duplicate",
			zap.String("invoice_id", inv.ID.String()),
			zap.Float64("confidence", res.Confidence),
			zap.Int("matches", len(res.Matches)))
	}
	return res, nil
}

// Score rates one candidate against the invoice. Points are tallied in tenths
// so thresholds compare exactly.
func Score(inv *domain.Invoice, c port.DuplicateCandidate) (float64, []string) {
	if inv.DocumentHash != "" && inv.DocumentHash == c.DocumentHash {
		return 1.0, []string{SignalDocumentHash}
	}

	points := 0
	var signals []string
	if inv.InvoiceNumber != "" && inv.InvoiceNumber == c.InvoiceNumber {
		points += 5
		signals = append(signals, SignalInvoiceNumber)
	}

	diff := inv.TotalAmount.Sub(c.TotalAmount).Abs()
	base := decimal.Max(c.TotalAmount.Abs(), one)
	switch {
	case diff.LessThanOrEqual(exactAmountTolerance):
		points += 3
		signals = append(signals, SignalAmountExact)
	case diff.Div(base).LessThanOrEqual(closeAmountRatio):
		points += 2
		signals = append(signals, SignalAmountClose)
	}

	gap := inv.InvoiceDate.Sub(c.InvoiceDate)
	if gap < 0 {
		gap = -gap
	}
	if !inv.InvoiceDate.IsZero() && !c.InvoiceDate.IsZero() && gap <= 24*time.Hour {
		points += 2
		signals = append(signals, SignalDate)
	}

	if points > 10 {
		points = 10
	}
	return float64(points) / 10, signals
}

func amountBand(total decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	delta := total.Abs().Mul(closeAmountRatio)
	return total.Sub(delta), total.Add(delta)
}
