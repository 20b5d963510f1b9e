package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ivms/internal/anomaly"
	"ivms/internal/domain"
	"ivms/internal/exception"
	"ivms/internal/fraud"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// sweepStatuses are the open states the anomaly sweep revisits.
var sweepStatuses = []domain.InvoiceStatus{
	domain.StatusPendingReview,
	domain.StatusPendingApproval,
	domain.StatusApproved,
	domain.StatusException,
}

// FraudSummary is one analyzed invoice in a batch.
type FraudSummary struct {
	InvoiceID uuid.UUID        `json:"invoice_id"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
	Score     float64          `json:"anomaly_score"`
}

// HighRiskInvoice is a batch entry at high or critical risk.
type HighRiskInvoice struct {
	InvoiceID  uuid.UUID         `json:"invoice_id"`
	RiskLevel  domain.RiskLevel  `json:"risk_level"`
	Indicators []fraud.Indicator `json:"indicators"`
}

// ItemFailure records one invoice a batch could not handle.
type ItemFailure struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Error     string    `json:"error"`
}

// BatchFraudResult is the outcome of a batch fraud analysis.
type BatchFraudResult struct {
	AnalyzedAt    time.Time         `json:"analyzed_at"`
	TotalInvoices int               `json:"total_invoices"`
	Analyzed      []FraudSummary    `json:"analyzed"`
	HighRisk      []HighRiskInvoice `json:"high_risk"`
	Failed        []ItemFailure     `json:"failed"`
}

// SweepResult is the outcome of an anomaly sweep.
type SweepResult struct {
	Scanned int           `json:"scanned"`
	Flagged []uuid.UUID   `json:"flagged"`
	Failed  []ItemFailure `json:"failed"`
}

// AnalysisService runs the rich fraud model and fleet-wide anomaly checks.
type AnalysisService interface {
	AnalyzeFraud(ctx context.Context, id uuid.UUID) (*fraud.Analysis, error)
	BatchAnalyzeFraud(ctx context.Context, ids []uuid.UUID) *BatchFraudResult
	SweepAnomalies(ctx context.Context, limit int) *SweepResult
}

type analysisService struct {
	invoices    port.InvoiceRepository
	analyzer    *fraud.Analyzer
	anomalies   *anomaly.Checker
	exceptions  *exception.Manager
	locker      port.Locker
	concurrency int
	log         *zap.Logger
	now         func() time.Time
}

// NewAnalysisService creates a new AnalysisService implementation.
func NewAnalysisService(
	invoices port.InvoiceRepository,
	analyzer *fraud.Analyzer,
	anomalies *anomaly.Checker,
	exceptions *exception.Manager,
	locker port.Locker,
	concurrency int,
	log *zap.Logger,
) AnalysisService {
	return &analysisService{
		invoices:    invoices,
		analyzer:    analyzer,
		anomalies:   anomalies,
		exceptions:  exceptions,
		locker:      locker,
		concurrency: max(concurrency, 1),
		log:         logger.OrNop(log),
		now:         time.Now,
	}
}

func (s *analysisService) AnalyzeFraud(ctx context.Context, id uuid.UUID) (*fraud.Analysis, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("analysisService.AnalyzeFraud: %w", err)
	}
	out, err := s.analyzer.Analyze(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("analysisService.AnalyzeFraud: %w", err)
	}
	return out, nil
}

// BatchAnalyzeFraud analyzes every invoice independently; failures are listed
// rather than aborting the batch.
func (s *analysisService) BatchAnalyzeFraud(ctx context.Context, ids []uuid.UUID) *BatchFraudResult {
	analyses := make([]*fraud.Analysis, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			analyses[i], errs[i] = s.AnalyzeFraud(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchFraudResult{
		AnalyzedAt:    s.now().UTC(),
		TotalInvoices: len(ids),
		Analyzed:      []FraudSummary{},
		HighRisk:      []HighRiskInvoice{},
		Failed:        []ItemFailure{},
	}
	for i, id := range ids {
		if errs[i] != nil {
			out.Failed = append(out.Failed, ItemFailure{InvoiceID: id, Error: errs[i].Error()})
			continue
		}
		a := analyses[i]
		out.Analyzed = append(out.Analyzed, FraudSummary{InvoiceID: id, RiskLevel: a.RiskLevel, Score: a.Score})
		if a.RiskLevel == domain.RiskHigh || a.RiskLevel == domain.RiskCritical {
			out.HighRisk = append(out.HighRisk, HighRiskInvoice{InvoiceID: id, RiskLevel: a.RiskLevel, Indicators: a.Indicators})
		}
	}

	s.log.Info("analysisService.BatchAnalyzeFraud: batch complete",
		zap.Int("total", len(ids)),
		zap.Int("high_risk", len(out.HighRisk)),
		zap.Int("failed", len(out.Failed)))
	return out
}

// SweepAnomalies re-runs the anomaly rules over open invoices. Newly anomalous
// invoices get an anomaly_detected exception and, where the status machine
// allows it, are moved to pending_review.
func (s *analysisService) SweepAnomalies(ctx context.Context, limit int) *SweepResult {
	out := &SweepResult{Flagged: []uuid.UUID{}, Failed: []ItemFailure{}}

	open, err := s.invoices.ListByStatus(ctx, sweepStatuses, limit)
	if err != nil {
		s.log.Error("analysisService.SweepAnomalies: listing open invoices", zap.Error(err))
		out.Failed = append(out.Failed, ItemFailure{Error: err.Error()})
		return out
	}
	out.Scanned = len(open)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for i := range open {
		id := open[i].ID
		g.Go(func() error {
			flagged, err := s.sweepOne(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				out.Failed = append(out.Failed, ItemFailure{InvoiceID: id, Error: err.Error()})
			case flagged:
				out.Flagged = append(out.Flagged, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("analysisService.SweepAnomalies: sweep complete",
		zap.Int("scanned", out.Scanned),
		zap.Int("flagged", len(out.Flagged)),
		zap.Int("failed", len(out.Failed)))
	return out
}

func (s *analysisService) sweepOne(ctx context.Context, id uuid.UUID) (bool, error) {
	release, err := s.locker.Acquire(ctx, "invoice:"+id.String())
	if err != nil {
		return false, fmt.Errorf("analysisService.SweepAnomalies: %w", err)
	}
	defer release()

	// Re-read under the lock; the listed copy may be stale.
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("analysisService.SweepAnomalies: %w", err)
	}
	if inv.Flags.HasAnomaly {
		return false, nil
	}
	res := s.anomalies.Check(inv)
	if !res.HasAnomaly {
		return false, nil
	}

	now := s.now().UTC()
	reasons := res.Reasons()
	inv.Flags.HasAnomaly = true
	inv.Flags.RequiresManualReview = true
	inv.AddAudit(domain.AuditAnomalyDetected, domain.SystemActor, map[string]any{
		"reasons": reasons,
		"source":  "sweep",
	}, now)
	if _, err := s.exceptions.Create(ctx, inv, domain.ExceptionAnomalyDetected, map[string]any{
		"reason":  reasons[0],
		"reasons": reasons,
	}); err != nil {
		return false, fmt.Errorf("analysisService.SweepAnomalies: %w", err)
	}
	// Only invoices waiting for approval are pulled back; exception and
	// approved invoices keep their status and carry the flag.
	if inv.Status == domain.StatusPendingApproval {
		if err := inv.TransitionTo(domain.StatusPendingReview, domain.SubStatusAnomaly, domain.SystemActor, "anomaly sweep", now); err != nil {
			return false, fmt.Errorf("analysisService.SweepAnomalies: %w", err)
		}
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		return false, fmt.Errorf("analysisService.SweepAnomalies: %w", err)
	}
	return true, nil
}
