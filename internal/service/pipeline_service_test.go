package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ivms/internal/anomaly"
	"ivms/internal/coding"
	"ivms/internal/domain"
	"ivms/internal/duplicate"
	"ivms/internal/exception"
	"ivms/internal/fraud"
	"ivms/internal/lock"
	"ivms/internal/matching"
	"ivms/internal/mlservice"
	"ivms/internal/port"
	"ivms/internal/service"
	"ivms/internal/tax"
	"ivms/mocks"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type pipelineHarness struct {
	invoices  *mocks.MockInvoiceRepo
	files     *mocks.MockFileMetaRepo
	matches   *mocks.MockMatchRecordRepo
	excRepo   *mocks.MockExceptionRepo
	storage   *mocks.MockObjectStorage
	extractor *mocks.MockExtractor
	matcher   *mocks.MockMatcher
	advisor   *mocks.MockCodingAdvisor
	svc       service.PipelineService
}

func newPipelineHarness() *pipelineHarness {
	h := &pipelineHarness{
		invoices:  new(mocks.MockInvoiceRepo),
		files:     new(mocks.MockFileMetaRepo),
		matches:   new(mocks.MockMatchRecordRepo),
		excRepo:   new(mocks.MockExceptionRepo),
		storage:   new(mocks.MockObjectStorage),
		extractor: new(mocks.MockExtractor),
		matcher:   new(mocks.MockMatcher),
		advisor:   new(mocks.MockCodingAdvisor),
	}
	h.invoices.On("Update", mock.Anything, mock.Anything).Return(nil).Maybe()

	h.svc = service.NewPipelineService(service.PipelineDeps{
		Invoices:   h.invoices,
		Files:      h.files,
		Matches:    h.matches,
		Storage:    h.storage,
		Locker:     lock.NewMemoryLocker(),
		Extractor:  h.extractor,
		Duplicates: duplicate.NewDetector(h.invoices, duplicate.DefaultConfig(), nil),
		Fraud:      fraud.NewScorer(mlservice.Fallback{}, fraud.DefaultScorerConfig(), nil),
		Matching:   matching.NewEngine(h.matcher, matching.DefaultConfig(), nil),
		Tax:        tax.NewValidator(tax.DefaultConfig()),
		Coding:     coding.NewAdvisor(h.advisor, coding.DefaultConfig(), nil),
		Anomalies:  anomaly.NewChecker(anomaly.DefaultConfig()).WithClock(func() time.Time { return fixedNow }),
		Exceptions: exception.NewManager(h.excRepo, nil, exception.DefaultConfig(), nil),
	}, service.DefaultPipelineConfig(), nil)
	return h
}

func (h *pipelineHarness) stored(inv *domain.Invoice) {
	h.invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
}

func (h *pipelineHarness) noDuplicates() {
	h.invoices.On("FindDuplicateCandidates", mock.Anything, mock.Anything).
		Return([]port.DuplicateCandidate{}, nil)
}

func (h *pipelineHarness) codingAt(conf float64) {
	h.advisor.On("Suggest", mock.Anything, mock.Anything).Return(&port.CodingResult{
		Suggestions: []domain.CodingSuggestion{{GLAccount: "6100", CostCenter: "OPS", Confidence: conf}},
	}, nil)
}

func (h *pipelineHarness) expectException(typ domain.ExceptionType) {
	h.excRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.InvoiceException) bool {
		return e.Type == typ
	})).Return(nil).Once()
}

func cleanInvoice(total string) *domain.Invoice {
	vendorID := uuid.New()
	amount := decimal.RequireFromString(total)
	return &domain.Invoice{
		ID:                   uuid.New(),
		Version:              1,
		InvoiceNumber:        "INV-1001",
		VendorID:             &vendorID,
		VendorName:           "Acme Supplies",
		Channel:              domain.ChannelAPI,
		DocumentType:         domain.DocumentTypeInvoice,
		InvoiceDate:          time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ReceivedDate:         time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		DueDate:              time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Currency:             "USD",
		Subtotal:             amount,
		TotalAmount:          amount,
		Category:             domain.CategoryServices,
		ExtractionConfidence: 0.97,
		Status:               domain.StatusSubmitted,
	}
}

// A small, clean, non-PO invoice goes straight through.
func TestProcessInvoice_CleanSmallInvoiceAutoApproves(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Status)
	assert.Equal(t, domain.SubStatusAutoApproved, res.SubStatus)
	assert.True(t, res.AutoApproved)
	assert.False(t, res.HasExceptions)
	assert.Equal(t, "6100", inv.GLAccount)
	assert.True(t, inv.CodingApplied)
	assert.Equal(t, domain.MatchTypeNonPO, inv.MatchType)
	assert.Greater(t, res.AutomationScore, 90.0)
	h.invoices.AssertNumberOfCalls(t, "Update", 2)
	h.excRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcessInvoice_NeverAutoApprovesAboveLimit(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("25350")
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.False(t, res.AutoApproved)
	assert.Equal(t, domain.StatusPendingApproval, res.Status)
	assert.Equal(t, domain.SubStatusAwaitingApproval, res.SubStatus)
}

func TestProcessInvoice_UncodedInvoiceWaitsForApproval(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.5)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, res.Status)
	assert.False(t, inv.CodingApplied)
	require.Len(t, inv.CodingSuggestions, 2)
	assert.Equal(t, coding.SourceDefault, inv.CodingSuggestions[1].Source)
}

// Same vendor and number two days apart is a blocking duplicate.
func TestProcessInvoice_DuplicateGoesToException(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	h.stored(inv)
	h.invoices.On("FindDuplicateCandidates", mock.Anything, mock.Anything).Return([]port.DuplicateCandidate{{
		ID:            uuid.New(),
		InvoiceNumber: inv.InvoiceNumber,
		TotalAmount:   inv.TotalAmount,
		InvoiceDate:   inv.InvoiceDate.AddDate(0, 0, -2),
	}}, nil)
	h.codingAt(0.95)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.True(t, inv.Flags.IsDuplicate)
	assert.Equal(t, domain.StatusException, res.Status)
	assert.Equal(t, domain.SubStatusDuplicate, res.SubStatus)
	assert.False(t, res.AutoApproved)
	// 0.8 confidence flags the invoice but stays below the exception threshold.
	h.excRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcessInvoice_HashDuplicateRaisesException(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.DocumentHash = "abc123"
	h.stored(inv)
	h.invoices.On("FindDuplicateCandidates", mock.Anything, mock.Anything).Return([]port.DuplicateCandidate{{
		ID:            uuid.New(),
		InvoiceNumber: "OTHER-9",
		TotalAmount:   decimal.NewFromInt(1),
		DocumentHash:  "abc123",
	}}, nil)
	h.codingAt(0.95)
	h.expectException(domain.ExceptionDuplicateInvoice)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusException, res.Status)
	assert.Equal(t, domain.SubStatusDuplicate, res.SubStatus)
	assert.True(t, res.HasExceptions)
	h.excRepo.AssertExpectations(t)
}

// A large PO invoice with a weak match lands in exception.
func TestProcessInvoice_LowMatchScoreRaisesMatchFailed(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("120000")
	inv.HasPO = true
	inv.PONumbers = []string{"PO-77"}
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.matcher.On("Match", mock.Anything, mock.Anything).Return(&port.MatchResult{
		MatchType:       domain.MatchTypeThreeWay,
		Status:          domain.MatchStatusPartialMatch,
		Score:           0.6,
		MatchedPOs:      []string{"PO-77"},
		MatchedAmount:   decimal.NewFromInt(72000),
		UnmatchedAmount: decimal.NewFromInt(48000),
		Source:          domain.MatchSourceService,
	}, nil)
	h.matches.On("Upsert", mock.Anything, mock.AnythingOfType("*domain.MatchRecord")).Return(nil)
	h.expectException(domain.ExceptionMatchFailed)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusException, res.Status)
	assert.Equal(t, domain.SubStatusMatchFailed, res.SubStatus)
	assert.False(t, res.AutoApproved)
	assert.InDelta(t, 0.6, res.MatchScore, 1e-9)
	assert.Equal(t, []string{"PO-77"}, inv.MatchedPOIDs)
	h.excRepo.AssertExpectations(t)
	h.matches.AssertExpectations(t)

	var passedMatched bool
	for _, c := range inv.StatusHistory {
		if c.To == domain.StatusMatched {
			passedMatched = true
		}
	}
	assert.True(t, passedMatched)
}

func TestProcessInvoice_MatcherFailureFallsBackToNoMatch(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("800")
	inv.HasPO = true
	inv.PONumbers = []string{"PO-1"}
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.matcher.On("Match", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	h.matches.On("Upsert", mock.Anything, mock.MatchedBy(func(r *domain.MatchRecord) bool {
		return r.Status == domain.MatchStatusNoMatch && r.Score == 0 && r.Source == domain.MatchSourceFallback
	})).Return(nil)
	h.expectException(domain.ExceptionMatchFailed)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusException, res.Status)
	assert.Equal(t, domain.MatchStatusNoMatch, inv.MatchStatus)
	h.matches.AssertExpectations(t)
}

func TestProcessInvoice_BlockingMismatchesRaiseTypedExceptions(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("900")
	inv.HasPO = true
	inv.PONumbers = []string{"PO-5"}
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.matcher.On("Match", mock.Anything, mock.Anything).Return(&port.MatchResult{
		Status: domain.MatchStatusPartialMatch,
		Score:  0.85,
		MismatchReasons: []domain.MismatchReason{
			{Type: domain.MismatchPrice, Severity: domain.SeverityError, Description: "price over tolerance", LineNumber: 1},
			{Type: domain.MismatchVendor, Severity: domain.SeverityError, Description: "vendor differs"},
			{Type: domain.MismatchQuantity, Severity: domain.SeverityWarning, Description: "minor quantity variance"},
		},
	}, nil)
	h.matches.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	h.expectException(domain.ExceptionPriceMismatch)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, res.Status)
	assert.False(t, res.AutoApproved)
	assert.Equal(t, 1, res.Exceptions)
	h.excRepo.AssertExpectations(t)
}

// An invoice dated 200 days before receipt is held for review.
func TestProcessInvoice_StaleInvoiceForcesReview(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.InvoiceDate = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	inv.ReceivedDate = time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC)
	inv.DueDate = inv.InvoiceDate.AddDate(0, 0, 30)
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.excRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.InvoiceException) bool {
		return e.Type == domain.ExceptionAnomalyDetected && assert.Contains(t, e.Description, "older than 6 months")
	})).Return(nil).Once()

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.True(t, inv.Flags.HasAnomaly)
	assert.Equal(t, domain.StatusPendingReview, res.Status)
	assert.Equal(t, domain.SubStatusAnomaly, res.SubStatus)
	assert.False(t, res.AutoApproved)

	var dateMismatch bool
	for _, r := range inv.RiskIndicators {
		if r.Type == fraud.IndicatorDateMismatch {
			dateMismatch = true
		}
	}
	assert.True(t, dateMismatch)
	h.excRepo.AssertExpectations(t)
}

// A wrong tax amount is recorded but does not block.
func TestProcessInvoice_InvalidTaxDoesNotBlock(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("100")
	inv.TaxRate = decimal.NewFromInt(10)
	inv.TaxAmount = decimal.NewFromInt(50)
	inv.TaxType = "sales"
	inv.TotalAmount = decimal.NewFromInt(150)
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.expectException(domain.ExceptionInvalidTaxCalculation)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	require.NotNil(t, inv.TaxValidation)
	assert.False(t, inv.TaxValidation.Valid)
	assert.True(t, decimal.NewFromInt(10).Equal(inv.TaxValidation.ComputedTax))
	assert.NotEqual(t, domain.StatusException, res.Status)
	assert.True(t, res.HasExceptions)
	h.excRepo.AssertExpectations(t)
}

func TestProcessInvoice_BankChangeRequiresReview(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.Flags.BankAccountChanged = true
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.expectException(domain.ExceptionBankAccountChange)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, res.Status)
	assert.Equal(t, string(domain.ExceptionBankAccountChange), res.SubStatus)
	assert.InDelta(t, 20, inv.FraudScore, 1e-9)
}

func TestProcessInvoice_LowConfidenceRunsEnhancedExtraction(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.Channel = domain.ChannelScan
	inv.ExtractionConfidence = 0.6
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)

	fileID := uuid.New()
	h.files.On("ListByInvoice", mock.Anything, inv.ID).Return([]domain.FileMeta{{
		ID: fileID, InvoiceID: inv.ID, S3Bucket: "ivms", S3Key: "invoices/a/b/scan.png", ContentType: "image/png",
	}}, nil)
	h.storage.On("GetPresignedURL", mock.Anything, "ivms", "invoices/a/b/scan.png", int64(900)).
		Return("https://signed.example/scan.png", nil)
	h.extractor.On("Extract", mock.Anything, mock.MatchedBy(func(req port.ExtractionRequest) bool {
		return len(req.Files) == 1 && req.Files[0].URL == "https://signed.example/scan.png" && req.Files[0].FileID == fileID
	})).Return(&port.ExtractionResult{
		Success:    true,
		Confidence: 0.93,
		Fields: []domain.ExtractedField{
			{Kind: domain.FieldInvoiceNumber, Value: "INV-1001", Confidence: 0.95},
		},
	}, nil)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.InDelta(t, 0.93, inv.ExtractionConfidence, 1e-9)
	assert.Equal(t, domain.ExtractionEnhanced, inv.ExtractionMethod)
	assert.Equal(t, domain.StatusApproved, res.Status)

	var passedExtracted bool
	for _, c := range inv.StatusHistory {
		if c.To == domain.StatusExtracted {
			passedExtracted = true
		}
	}
	assert.True(t, passedExtracted)
	h.extractor.AssertExpectations(t)
}

func TestProcessInvoice_FailedExtractionKeepsConfidence(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.ExtractionConfidence = 0.6
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.files.On("ListByInvoice", mock.Anything, inv.ID).Return([]domain.FileMeta{}, nil)
	h.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractionResult{Success: false}, nil)

	_, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.InDelta(t, 0.6, inv.ExtractionConfidence, 1e-9)
	for _, c := range inv.StatusHistory {
		assert.NotEqual(t, domain.StatusExtracted, c.To)
	}
}

func TestProcessInvoice_UncertainMobileCaptureIsHeldForReview(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.Channel = domain.ChannelMobile
	inv.ExtractionConfidence = 0.5
	inv.Flags.RequiresManualReview = true
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.files.On("ListByInvoice", mock.Anything, inv.ID).Return([]domain.FileMeta{}, nil)
	h.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractionResult{Success: false}, nil)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingReview, res.Status)
	assert.Equal(t, domain.SubStatusLowConfidenceCapture, res.SubStatus)
	assert.False(t, res.AutoApproved)
	assert.True(t, inv.Flags.RequiresManualReview)
}

func TestProcessInvoice_EnhancedMobileCaptureCanAutoApprove(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.Channel = domain.ChannelMobile
	inv.ExtractionConfidence = 0.5
	inv.Flags.RequiresManualReview = true
	h.stored(inv)
	h.noDuplicates()
	h.codingAt(0.95)
	h.files.On("ListByInvoice", mock.Anything, inv.ID).Return([]domain.FileMeta{}, nil)
	h.extractor.On("Extract", mock.Anything, mock.Anything).
		Return(&port.ExtractionResult{Success: true, Confidence: 0.92}, nil)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Status)
	assert.True(t, res.AutoApproved)
	assert.False(t, inv.Flags.RequiresManualReview)
}

func TestProcessInvoice_UnexpectedErrorMarksProcessingFailed(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	h.stored(inv)
	h.invoices.On("FindDuplicateCandidates", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))
	h.expectException(domain.ExceptionProcessingFailed)

	res, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, domain.StatusException, inv.Status)
	assert.Equal(t, domain.SubStatusProcessingFailed, inv.SubStatus)

	var failedAudit bool
	for _, a := range inv.AuditTrail {
		if a.Action == domain.AuditProcessingFailed {
			failedAudit = true
			assert.Contains(t, a.Details["error"], "connection reset")
		}
	}
	assert.True(t, failedAudit)
	h.invoices.AssertNumberOfCalls(t, "Update", 2)
	h.excRepo.AssertExpectations(t)
}

func TestProcessInvoice_RejectsSettledInvoice(t *testing.T) {
	h := newPipelineHarness()
	inv := cleanInvoice("500")
	inv.Status = domain.StatusPaid
	h.stored(inv)

	_, err := h.svc.ProcessInvoice(context.Background(), inv.ID)

	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	h.invoices.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProcessInvoice_NotFound(t *testing.T) {
	h := newPipelineHarness()
	id := uuid.New()
	h.invoices.On("GetByID", mock.Anything, id).Return(nil, domain.ErrInvoiceNotFound)

	_, err := h.svc.ProcessInvoice(context.Background(), id)

	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestProcessBatch_ReportsEveryItem(t *testing.T) {
	h := newPipelineHarness()
	good := cleanInvoice("500")
	h.stored(good)
	missing := uuid.New()
	h.invoices.On("GetByID", mock.Anything, missing).Return(nil, domain.ErrInvoiceNotFound)
	h.noDuplicates()
	h.codingAt(0.95)

	results := h.svc.ProcessBatch(context.Background(), []uuid.UUID{good.ID, missing})

	require.Len(t, results, 2)
	assert.Equal(t, good.ID, results[0].InvoiceID)
	require.NotNil(t, results[0].Result)
	assert.Equal(t, domain.StatusApproved, results[0].Result.Status)
	assert.Equal(t, missing, results[1].InvoiceID)
	assert.Nil(t, results[1].Result)
	assert.Contains(t, results[1].Error, "invoice not found")
}

func TestAutomationScore(t *testing.T) {
	tests := []struct {
		name string
		in   service.AutomationFactors
		want float64
	}{
		{
			name: "perfect non-PO invoice",
			in:   service.AutomationFactors{ExtractionConfidence: 1, HasCoding: true, CodingConfidence: 1},
			want: 100,
		},
		{
			name: "perfect PO invoice",
			in:   service.AutomationFactors{ExtractionConfidence: 1, HasPO: true, MatchScore: 1, HasCoding: true, CodingConfidence: 1},
			want: 100,
		},
		{
			name: "match counts only with a PO",
			in:   service.AutomationFactors{ExtractionConfidence: 0.5, MatchScore: 0},
			want: 80,
		},
		{
			name: "every risk check failed",
			in:   service.AutomationFactors{ExtractionConfidence: 1, Duplicate: true, FraudSuspect: true, Anomaly: true},
			want: 40,
		},
		{
			name: "weighted mix",
			in:   service.AutomationFactors{ExtractionConfidence: 0.9, HasPO: true, MatchScore: 0.6, HasCoding: true, CodingConfidence: 0.5, Anomaly: true},
			want: 66,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, service.AutomationScore(tt.in), 1e-9)
		})
	}
}
