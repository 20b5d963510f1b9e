package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ivms/internal/anomaly"
	"ivms/internal/coding"
	"ivms/internal/domain"
	"ivms/internal/duplicate"
	"ivms/internal/exception"
	"ivms/internal/fraud"
	"ivms/internal/logger"
	"ivms/internal/matching"
	"ivms/internal/port"
	"ivms/internal/tax"
)

// PipelineConfig holds the orchestrator thresholds.
type PipelineConfig struct {
	LowConfidence           float64
	DuplicateExceptionAbove float64
	FraudExceptionAbove     float64
	MatchFailBelow          float64
	AutoApproveLimit        decimal.Decimal
	LockWait                time.Duration
	PresignExpirySecs       int64
	BatchConcurrency        int
}

// DefaultPipelineConfig returns the standard orchestrator thresholds.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		LowConfidence:           0.85,
		DuplicateExceptionAbove: 0.9,
		FraudExceptionAbove:     50,
		MatchFailBelow:          0.8,
		AutoApproveLimit:        decimal.NewFromInt(10000),
		LockWait:                30 * time.Second,
		PresignExpirySecs:       900,
		BatchConcurrency:        5,
	}
}

// ProcessResult is the outcome of one pipeline run.
type ProcessResult struct {
	InvoiceID       uuid.UUID            `json:"invoice_id"`
	Status          domain.InvoiceStatus `json:"status"`
	SubStatus       string               `json:"sub_status,omitempty"`
	MatchScore      float64              `json:"match_score"`
	AutomationScore float64              `json:"automation_score"`
	AutoApproved    bool                 `json:"auto_approved"`
	HasExceptions   bool                 `json:"has_exceptions"`
	Exceptions      int                  `json:"exceptions"`
}

// BatchItemResult is the per-invoice summary of a batch run.
type BatchItemResult struct {
	InvoiceID uuid.UUID      `json:"invoice_id"`
	Result    *ProcessResult `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// PipelineDeps are the collaborators of the orchestrator.
type PipelineDeps struct {
	Invoices   port.InvoiceRepository
	Files      port.FileMetaRepository
	Matches    port.MatchRecordRepository
	Storage    port.ObjectStorage
	Locker     port.Locker
	Extractor  port.Extractor
	Duplicates *duplicate.Detector
	Fraud      *fraud.Scorer
	Matching   *matching.Engine
	Tax        *tax.Validator
	Coding     *coding.Advisor
	Anomalies  *anomaly.Checker
	Exceptions *exception.Manager
}

// PipelineService drives invoices through the decision pipeline.
type PipelineService interface {
	ProcessInvoice(ctx context.Context, id uuid.UUID) (*ProcessResult, error)
	ProcessBatch(ctx context.Context, ids []uuid.UUID) []BatchItemResult
}

type pipelineService struct {
	deps PipelineDeps
	cfg  PipelineConfig
	log  *zap.Logger
	now  func() time.Time
}

// NewPipelineService creates a new PipelineService implementation.
func NewPipelineService(deps PipelineDeps, cfg PipelineConfig, log *zap.Logger) PipelineService {
	return &pipelineService{deps: deps, cfg: cfg, log: logger.OrNop(log), now: time.Now}
}

// runState accumulates the stage findings that decide the final status.
type runState struct {
	blocking      []string
	reviewReason  string
	nonApprovable bool
	exceptions    int
	match         *domain.MatchRecord
	codingConf    float64
	hasCoding     bool
}

func (st *runState) block(subStatus string) {
	st.blocking = append(st.blocking, subStatus)
	st.nonApprovable = true
}

func (st *runState) review(reason string) {
	if st.reviewReason == "" {
		st.reviewReason = reason
	}
	st.nonApprovable = true
}

// ProcessInvoice runs every stage for one invoice while holding its lock.
// Business findings become flags and exceptions; only unexpected failures are
// returned, after the invoice has been moved to exception/processing_failed.
func (s *pipelineService) ProcessInvoice(ctx context.Context, id uuid.UUID) (*ProcessResult, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	inv, err := s.deps.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pipelineService.ProcessInvoice: %w", err)
	}

	if err := s.begin(ctx, inv); err != nil {
		return nil, fmt.Errorf("pipelineService.ProcessInvoice: %w", err)
	}

	st := &runState{}
	if err := s.run(ctx, inv, st); err != nil {
		return nil, s.fail(ctx, inv, st, err)
	}

	s.log.Info("pipelineService.ProcessInvoice: processed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("status", string(inv.Status)),
		zap.String("sub_status", inv.SubStatus),
		zap.Float64("automation_score", inv.AutomationScore),
		zap.Bool("auto_approved", inv.AutoApproved))

	return resultOf(inv, st), nil
}

// ProcessBatch runs the pipeline for each id concurrently. One failure never
// aborts the rest.
func (s *pipelineService) ProcessBatch(ctx context.Context, ids []uuid.UUID) []BatchItemResult {
	results := make([]BatchItemResult, len(ids))

	var g errgroup.Group
	g.SetLimit(max(s.cfg.BatchConcurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			results[i].InvoiceID = id
			res, err := s.ProcessInvoice(ctx, id)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *pipelineService) acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	lockCtx := ctx
	if s.cfg.LockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.cfg.LockWait)
		defer cancel()
	}
	release, err := s.deps.Locker.Acquire(lockCtx, "invoice:"+id.String())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("pipelineService.ProcessInvoice: %w: %s", domain.ErrLockTimeout, id)
		}
		return nil, fmt.Errorf("pipelineService.ProcessInvoice: acquiring lock: %w", err)
	}
	return release, nil
}

// begin resets the per-run findings and persists the processing state.
func (s *pipelineService) begin(ctx context.Context, inv *domain.Invoice) error {
	if err := inv.TransitionTo(domain.StatusProcessing, "", domain.SystemActor, "pipeline run started", s.now().UTC()); err != nil {
		return err
	}
	inv.AutoApproved = false
	inv.AutomationScore = 0
	inv.Flags.IsDuplicate = false
	inv.Flags.IsFraudSuspect = false
	inv.Flags.HasAnomaly = false
	inv.Flags.RequiresManualReview = false
	return s.deps.Invoices.Update(ctx, inv)
}

func (s *pipelineService) run(ctx context.Context, inv *domain.Invoice, st *runState) error {
	if err := s.enhanceExtraction(ctx, inv); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if inv.LowConfidenceCapture() {
		inv.Flags.RequiresManualReview = true
		st.review(domain.SubStatusLowConfidenceCapture)
	}
	if err := s.checkDuplicates(ctx, inv, st); err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if err := s.scoreFraud(ctx, inv, st); err != nil {
		return fmt.Errorf("fraud scoring: %w", err)
	}
	if err := s.match(ctx, inv, st); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if err := s.validateTax(ctx, inv, st); err != nil {
		return fmt.Errorf("tax validation: %w", err)
	}
	s.applyCoding(ctx, inv, st)
	if err := s.checkAnomalies(ctx, inv, st); err != nil {
		return fmt.Errorf("anomaly check: %w", err)
	}

	inv.AutomationScore = AutomationScore(AutomationFactors{
		ExtractionConfidence: inv.ExtractionConfidence,
		HasPO:                inv.HasPO,
		MatchScore:           inv.MatchScore,
		HasCoding:            st.hasCoding,
		CodingConfidence:     st.codingConf,
		Duplicate:            inv.Flags.IsDuplicate,
		FraudSuspect:         inv.Flags.IsFraudSuspect,
		Anomaly:              inv.Flags.HasAnomaly,
	})

	if err := s.settle(inv, st); err != nil {
		return err
	}
	if err := s.deps.Invoices.Update(ctx, inv); err != nil {
		return fmt.Errorf("saving invoice: %w", err)
	}
	return nil
}

func (s *pipelineService) enhanceExtraction(ctx context.Context, inv *domain.Invoice) error {
	if inv.ExtractionConfidence >= s.cfg.LowConfidence || s.deps.Extractor == nil {
		return nil
	}

	files, err := s.deps.Files.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	refs := make([]port.FileRef, 0, len(files))
	for _, f := range files {
		ref := port.FileRef{FileID: f.ID, Bucket: f.S3Bucket, Key: f.S3Key, ContentType: f.ContentType}
		if s.deps.Storage != nil {
			url, err := s.deps.Storage.GetPresignedURL(ctx, f.S3Bucket, f.S3Key, s.cfg.PresignExpirySecs)
			if err != nil {
				s.log.Warn("pipelineService.enhanceExtraction: presign failed",
					zap.String("invoice_id", inv.ID.String()), zap.String("key", f.S3Key), zap.Error(err))
			} else {
				ref.URL = url
			}
		}
		refs = append(refs, ref)
	}

	res, err := s.deps.Extractor.Extract(ctx, port.ExtractionRequest{
		InvoiceID:      inv.ID,
		Files:          refs,
		ExistingFields: inv.ExtractedFields,
	})
	if err != nil || res == nil || !res.Success {
		s.log.Info("pipelineService.enhanceExtraction: no enhancement, keeping confidence",
			zap.String("invoice_id", inv.ID.String()),
			zap.Float64("confidence", inv.ExtractionConfidence), zap.Error(err))
		return nil
	}

	before := inv.ExtractionConfidence
	inv.MergeFields(res.Fields)
	if len(inv.LineItems) == 0 && len(res.LineItems) > 0 {
		inv.LineItems = res.LineItems
	}
	if res.Confidence > inv.ExtractionConfidence {
		inv.ExtractionConfidence = res.Confidence
	}
	inv.ExtractionMethod = domain.ExtractionEnhanced

	now := s.now().UTC()
	inv.AddAudit(domain.AuditExtractionEnhanced, domain.SystemActor, map[string]any{
		"previous_confidence": before,
		"confidence":          inv.ExtractionConfidence,
		"fields":              len(res.Fields),
	}, now)
	return inv.TransitionTo(domain.StatusExtracted, "", domain.SystemActor, "enhanced extraction", now)
}

func (s *pipelineService) checkDuplicates(ctx context.Context, inv *domain.Invoice, st *runState) error {
	res, err := s.deps.Duplicates.Check(ctx, inv)
	if err != nil {
		return err
	}

	inv.Flags.IsDuplicate = res.IsDuplicate
	inv.AddAudit(domain.AuditDuplicateChecked, domain.SystemActor, map[string]any{
		"is_duplicate": res.IsDuplicate,
		"confidence":   res.Confidence,
		"matches":      len(res.Matches),
	}, s.now().UTC())

	if !res.IsDuplicate {
		return nil
	}
	st.block(domain.SubStatusDuplicate)

	if res.Confidence > s.cfg.DuplicateExceptionAbove {
		details := map[string]any{
			"reason":       fmt.Sprintf("Duplicate of invoice %s (confidence %.2f)", res.Matches[0].InvoiceNumber, res.Confidence),
			"confidence":   res.Confidence,
			"duplicate_of": res.Matches[0].InvoiceID.String(),
			"signals":      res.Matches[0].Signals,
		}
		if err := s.raise(ctx, inv, st, domain.ExceptionDuplicateInvoice, details); err != nil {
			return err
		}
	}
	return nil
}

func (s *pipelineService) scoreFraud(ctx context.Context, inv *domain.Invoice, st *runState) error {
	score := s.deps.Fraud.Score(ctx, inv)

	inv.FraudScore = score.Score
	inv.RiskIndicators = score.Reasons
	inv.Flags.IsFraudSuspect = score.Suspicious
	inv.AddAudit(domain.AuditFraudScored, domain.SystemActor, map[string]any{
		"score":           score.Score,
		"suspicious":      score.Suspicious,
		"signal_degraded": score.SignalDegraded,
	}, s.now().UTC())

	if score.Suspicious {
		st.nonApprovable = true
	}
	if score.Score > s.cfg.FraudExceptionAbove {
		st.block(domain.SubStatusFraudSuspected)
		if err := s.raise(ctx, inv, st, domain.ExceptionFraudSuspected, map[string]any{
			"reason":     fmt.Sprintf("Fraud score %.0f exceeds %.0f", score.Score, s.cfg.FraudExceptionAbove),
			"score":      score.Score,
			"indicators": indicatorTypes(score.Reasons),
		}); err != nil {
			return err
		}
	}

	if inv.Flags.BankAccountChanged {
		st.review(string(domain.ExceptionBankAccountChange))
		if err := s.raise(ctx, inv, st, domain.ExceptionBankAccountChange, map[string]any{
			"reason": "Bank details on the invoice differ from the vendor master",
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *pipelineService) match(ctx context.Context, inv *domain.Invoice, st *runState) error {
	if !inv.HasPO {
		inv.MatchType = domain.MatchTypeNonPO
		inv.MatchStatus = ""
		inv.MatchScore = 0
		return nil
	}

	now := s.now().UTC()
	if err := inv.TransitionTo(domain.StatusMatching, "", domain.SystemActor, "", now); err != nil {
		return err
	}

	rec := s.deps.Matching.Match(ctx, inv)
	if err := s.deps.Matches.Upsert(ctx, rec); err != nil {
		return err
	}
	st.match = rec

	inv.MatchType = rec.MatchType
	inv.MatchStatus = rec.Status
	inv.MatchScore = rec.Score
	inv.MatchedPOIDs = rec.MatchedPOs
	inv.MatchedGRNIDs = rec.MatchedGRNs
	inv.AddAudit(domain.AuditMatched, domain.SystemActor, map[string]any{
		"match_id":   rec.ID.String(),
		"status":     string(rec.Status),
		"score":      rec.Score,
		"source":     string(rec.Source),
		"mismatches": len(rec.MismatchReasons),
	}, now)

	next := domain.StatusMatched
	if rec.Status == domain.MatchStatusNoMatch {
		next = domain.StatusNoMatch
	}
	if err := inv.TransitionTo(next, "", domain.SystemActor, "", now); err != nil {
		return err
	}

	if !rec.AutoMatchEligible {
		st.nonApprovable = true
	}
	if rec.Score < s.cfg.MatchFailBelow {
		st.block(domain.SubStatusMatchFailed)
		if err := s.raise(ctx, inv, st, domain.ExceptionMatchFailed, map[string]any{
			"reason":   fmt.Sprintf("Match score %.2f is below %.2f", rec.Score, s.cfg.MatchFailBelow),
			"score":    rec.Score,
			"match_id": rec.ID.String(),
			"source":   string(rec.Source),
		}); err != nil {
			return err
		}
	}

	for _, m := range rec.BlockingMismatches() {
		typ, err := matching.ExceptionTypeFor(m.Type)
		if err != nil {
			s.log.Warn("pipelineService.match: mismatch without exception type",
				zap.String("invoice_id", inv.ID.String()), zap.String("mismatch", string(m.Type)))
			continue
		}
		if err := s.raise(ctx, inv, st, typ, map[string]any{
			"reason":      m.Description,
			"line_number": m.LineNumber,
			"expected":    m.Expected,
			"actual":      m.Actual,
			"match_id":    rec.ID.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *pipelineService) validateTax(ctx context.Context, inv *domain.Invoice, st *runState) error {
	res := s.deps.Tax.Validate(inv)
	inv.TaxValidation = res
	inv.AddAudit(domain.AuditTaxValidated, domain.SystemActor, map[string]any{
		"valid":  res.Valid,
		"issues": len(res.Issues),
	}, s.now().UTC())

	if res.Valid {
		return nil
	}
	reason := "Tax calculation could not be verified"
	for _, is := range res.Issues {
		if is.Severity.IsBlocking() {
			reason = is.Message
			break
		}
	}
	return s.raise(ctx, inv, st, domain.ExceptionInvalidTaxCalculation, map[string]any{
		"reason":       reason,
		"declared_tax": res.DeclaredTax.StringFixed(2),
		"computed_tax": res.ComputedTax.StringFixed(2),
	})
}

func (s *pipelineService) applyCoding(ctx context.Context, inv *domain.Invoice, st *runState) {
	res := s.deps.Coding.Advise(ctx, inv)
	now := s.now().UTC()

	switch {
	case res.AlreadyCoded:
		st.hasCoding, st.codingConf = true, 1
	case res.Applied:
		st.hasCoding, st.codingConf = true, res.Suggestions[0].Confidence
		inv.CodingApplied = true
		inv.AddAudit(domain.AuditCodingApplied, domain.SystemActor, map[string]any{
			"gl_account":  inv.GLAccount,
			"cost_center": inv.CostCenter,
			"confidence":  st.codingConf,
		}, now)
	case len(res.Suggestions) > 0:
		st.hasCoding, st.codingConf = true, res.Suggestions[0].Confidence
		inv.AddAudit(domain.AuditCodingSuggested, domain.SystemActor, map[string]any{
			"gl_account": res.Suggestions[0].GLAccount,
			"confidence": st.codingConf,
			"source":     res.Source,
		}, now)
	}
}

func (s *pipelineService) checkAnomalies(ctx context.Context, inv *domain.Invoice, st *runState) error {
	res := s.deps.Anomalies.Check(inv)
	if !res.HasAnomaly {
		return nil
	}

	inv.Flags.HasAnomaly = true
	st.review(domain.SubStatusAnomaly)
	reasons := res.Reasons()
	inv.AddAudit(domain.AuditAnomalyDetected, domain.SystemActor, map[string]any{
		"reasons": reasons,
	}, s.now().UTC())

	return s.raise(ctx, inv, st, domain.ExceptionAnomalyDetected, map[string]any{
		"reason":  reasons[0],
		"reasons": reasons,
	})
}

// settle resolves the final disposition: a blocking finding wins over a
// forced review, which wins over auto-approval.
func (s *pipelineService) settle(inv *domain.Invoice, st *runState) error {
	var (
		to     domain.InvoiceStatus
		sub    string
		reason string
	)
	switch {
	case len(st.blocking) > 0:
		to, sub, reason = domain.StatusException, st.blocking[0], "blocking finding"
	case st.reviewReason != "":
		to, sub, reason = domain.StatusPendingReview, st.reviewReason, "manual review required"
	case s.autoApprovable(inv, st):
		to, sub, reason = domain.StatusApproved, domain.SubStatusAutoApproved, "auto-approved"
		inv.AutoApproved = true
	default:
		to, sub, reason = domain.StatusPendingApproval, domain.SubStatusAwaitingApproval, ""
	}
	inv.Flags.RequiresManualReview = to == domain.StatusException || to == domain.StatusPendingReview
	return inv.TransitionTo(to, sub, domain.SystemActor, reason, s.now().UTC())
}

func (s *pipelineService) autoApprovable(inv *domain.Invoice, st *runState) bool {
	if st.nonApprovable || inv.TotalAmount.GreaterThan(s.cfg.AutoApproveLimit) {
		return false
	}
	if inv.HasPO && (st.match == nil || !st.match.AutoMatchEligible) {
		return false
	}
	if inv.Flags.IsDuplicate || inv.Flags.IsFraudSuspect || inv.Flags.HasAnomaly || inv.Flags.RequiresManualReview {
		return false
	}
	return inv.CodingApplied || inv.IsCoded()
}

func (s *pipelineService) raise(ctx context.Context, inv *domain.Invoice, st *runState, typ domain.ExceptionType, details map[string]any) error {
	if _, err := s.deps.Exceptions.Create(ctx, inv, typ, details); err != nil {
		return err
	}
	st.exceptions++
	return nil
}

// fail moves the invoice to exception/processing_failed on a best-effort
// basis and returns the original cause.
func (s *pipelineService) fail(ctx context.Context, inv *domain.Invoice, st *runState, cause error) error {
	now := s.now().UTC()
	s.log.Error("pipelineService.ProcessInvoice: processing failed",
		zap.String("invoice_id", inv.ID.String()), zap.Error(cause))

	inv.AddAudit(domain.AuditProcessingFailed, domain.SystemActor, map[string]any{
		"error": cause.Error(),
	}, now)
	if err := inv.TransitionTo(domain.StatusException, domain.SubStatusProcessingFailed, domain.SystemActor, cause.Error(), now); err != nil {
		s.log.Warn("pipelineService.fail: cannot move to exception",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
	inv.Flags.RequiresManualReview = true
	if err := s.raise(ctx, inv, st, domain.ExceptionProcessingFailed, map[string]any{
		"reason": cause.Error(),
	}); err != nil {
		s.log.Warn("pipelineService.fail: recording processing_failed exception",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
	if err := s.deps.Invoices.Update(ctx, inv); err != nil {
		s.log.Error("pipelineService.fail: saving failed invoice",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
	return fmt.Errorf("pipelineService.ProcessInvoice: %w", cause)
}

func resultOf(inv *domain.Invoice, st *runState) *ProcessResult {
	return &ProcessResult{
		InvoiceID:       inv.ID,
		Status:          inv.Status,
		SubStatus:       inv.SubStatus,
		MatchScore:      inv.MatchScore,
		AutomationScore: inv.AutomationScore,
		AutoApproved:    inv.AutoApproved,
		HasExceptions:   st.exceptions > 0,
		Exceptions:      st.exceptions,
	}
}

func indicatorTypes(in []domain.RiskIndicator) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		out = append(out, r.Type)
	}
	return out
}

// AutomationFactors are the inputs of the automation score.
type AutomationFactors struct {
	ExtractionConfidence float64
	HasPO                bool
	MatchScore           float64
	HasCoding            bool
	CodingConfidence     float64
	Duplicate            bool
	FraudSuspect         bool
	Anomaly              bool
}

// AutomationScore weighs extraction (20), matching (30, PO invoices only),
// coding (20) and 10 points for each clean risk check, scaled to 0-100 over
// the factors present.
func AutomationScore(f AutomationFactors) float64 {
	earned, possible := clamp01(f.ExtractionConfidence)*20, 20.0
	if f.HasPO {
		earned += clamp01(f.MatchScore) * 30
		possible += 30
	}
	if f.HasCoding {
		earned += clamp01(f.CodingConfidence) * 20
		possible += 20
	}
	for _, clean := range []bool{!f.Duplicate, !f.FraudSuspect, !f.Anomaly} {
		possible += 10
		if clean {
			earned += 10
		}
	}
	return math.Round(earned/possible*10000) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
