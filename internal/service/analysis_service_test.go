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
	"ivms/internal/domain"
	"ivms/internal/duplicate"
	"ivms/internal/exception"
	"ivms/internal/fraud"
	"ivms/internal/lock"
	"ivms/internal/service"
	"ivms/mocks"
)

// dupByInvoice answers duplicate checks from a fixed table.
type dupByInvoice map[uuid.UUID]*duplicate.Result

func (d dupByInvoice) Check(_ context.Context, inv *domain.Invoice) (*duplicate.Result, error) {
	if r, ok := d[inv.ID]; ok {
		return r, nil
	}
	return &duplicate.Result{}, nil
}

func paidHistory(amounts ...int64) []domain.Invoice {
	out := make([]domain.Invoice, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, domain.Invoice{ID: uuid.New(), TotalAmount: decimal.NewFromInt(a), Status: domain.StatusPaid})
	}
	return out
}

func newAnalysisService(t *testing.T, invoices *mocks.MockInvoiceRepo, vendors *mocks.MockVendorRepo, excRepo *mocks.MockExceptionRepo, dup dupByInvoice) service.AnalysisService {
	t.Helper()
	analyzer, err := fraud.NewAnalyzer(invoices, vendors, dup, fraud.DefaultAnalyzerConfig(), nil)
	require.NoError(t, err)
	return service.NewAnalysisService(
		invoices,
		analyzer,
		anomaly.NewChecker(anomaly.DefaultConfig()).WithClock(func() time.Time { return fixedNow }),
		exception.NewManager(excRepo, nil, exception.DefaultConfig(), nil),
		lock.NewMemoryLocker(),
		3,
		nil,
	)
}

func TestAnalysisService_BatchAnalyzeFraud(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	vendors := new(mocks.MockVendorRepo)

	vendorID := uuid.New()
	risky := &domain.Invoice{ID: uuid.New(), VendorID: &vendorID, TotalAmount: decimal.NewFromInt(1000)}
	clean := &domain.Invoice{ID: uuid.New(), TotalAmount: decimal.NewFromInt(420)}
	missing := uuid.New()

	invoices.On("GetByID", mock.Anything, risky.ID).Return(risky, nil)
	invoices.On("GetByID", mock.Anything, clean.ID).Return(clean, nil)
	invoices.On("GetByID", mock.Anything, missing).Return(nil, domain.ErrInvoiceNotFound)
	invoices.On("ListPaidByVendor", mock.Anything, vendorID, risky.ID, 20).
		Return(paidHistory(100, 110, 90, 100), nil)
	vendors.On("GetByID", mock.Anything, vendorID).Return(&domain.Vendor{ID: vendorID, Name: "Acme"}, nil)

	svc := newAnalysisService(t, invoices, vendors, new(mocks.MockExceptionRepo), dupByInvoice{
		risky.ID: {IsDuplicate: true, Confidence: 1, Matches: []duplicate.Match{{InvoiceID: uuid.New(), Confidence: 1}}},
	})

	out := svc.BatchAnalyzeFraud(context.Background(), []uuid.UUID{risky.ID, clean.ID, missing})

	assert.Equal(t, 3, out.TotalInvoices)
	assert.Len(t, out.Analyzed, 2)
	require.Len(t, out.HighRisk, 1)
	assert.Equal(t, risky.ID, out.HighRisk[0].InvoiceID)
	assert.Equal(t, domain.RiskHigh, out.HighRisk[0].RiskLevel)

	var types []string
	for _, ind := range out.HighRisk[0].Indicators {
		types = append(types, ind.Type)
	}
	assert.Contains(t, types, fraud.IndicatorDuplicate)
	assert.Contains(t, types, fraud.IndicatorPriceAnomaly)

	require.Len(t, out.Failed, 1)
	assert.Equal(t, missing, out.Failed[0].InvoiceID)
	assert.Contains(t, out.Failed[0].Error, "invoice not found")
}

func TestAnalysisService_AnalyzeFraud_PropagatesErrors(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	vendors := new(mocks.MockVendorRepo)
	vendorID := uuid.New()
	inv := &domain.Invoice{ID: uuid.New(), VendorID: &vendorID, TotalAmount: decimal.NewFromInt(10)}
	invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
	invoices.On("ListPaidByVendor", mock.Anything, vendorID, inv.ID, 20).Return(nil, errors.New("timeout"))

	svc := newAnalysisService(t, invoices, vendors, new(mocks.MockExceptionRepo), dupByInvoice{})

	_, err := svc.AnalyzeFraud(context.Background(), inv.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestAnalysisService_SweepAnomalies(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	excRepo := new(mocks.MockExceptionRepo)

	stale := func(status domain.InvoiceStatus) *domain.Invoice {
		return &domain.Invoice{
			ID:           uuid.New(),
			Status:       status,
			TotalAmount:  decimal.NewFromInt(700),
			InvoiceDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			ReceivedDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		}
	}
	waiting := stale(domain.StatusPendingApproval)
	approved := stale(domain.StatusApproved)
	flagged := stale(domain.StatusPendingReview)
	flagged.Flags.HasAnomaly = true
	clean := &domain.Invoice{
		ID:           uuid.New(),
		Status:       domain.StatusPendingApproval,
		TotalAmount:  decimal.NewFromInt(700),
		InvoiceDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ReceivedDate: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	broken := uuid.New()

	invoices.On("ListByStatus", mock.Anything, mock.AnythingOfType("[]domain.InvoiceStatus"), 100).
		Return([]domain.Invoice{*waiting, *approved, *flagged, *clean, {ID: broken}}, nil)
	for _, inv := range []*domain.Invoice{waiting, approved, flagged, clean} {
		invoices.On("GetByID", mock.Anything, inv.ID).Return(inv, nil)
	}
	invoices.On("GetByID", mock.Anything, broken).Return(nil, errors.New("row decode"))
	invoices.On("Update", mock.Anything, mock.Anything).Return(nil)
	excRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.InvoiceException) bool {
		return e.Type == domain.ExceptionAnomalyDetected
	})).Return(nil).Twice()

	svc := newAnalysisService(t, invoices, new(mocks.MockVendorRepo), excRepo, dupByInvoice{})

	out := svc.SweepAnomalies(context.Background(), 100)

	assert.Equal(t, 5, out.Scanned)
	assert.ElementsMatch(t, []uuid.UUID{waiting.ID, approved.ID}, out.Flagged)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, broken, out.Failed[0].InvoiceID)

	assert.Equal(t, domain.StatusPendingReview, waiting.Status)
	assert.Equal(t, domain.SubStatusAnomaly, waiting.SubStatus)
	assert.True(t, waiting.Flags.RequiresManualReview)

	// Approved invoices cannot go back to review; they keep their status.
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.True(t, approved.Flags.HasAnomaly)

	assert.False(t, clean.Flags.HasAnomaly)
	invoices.AssertNumberOfCalls(t, "Update", 2)
	excRepo.AssertExpectations(t)
}

func TestAnalysisService_SweepAnomalies_ExceptionKeepsStatus(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	excRepo := new(mocks.MockExceptionRepo)

	failed := &domain.Invoice{
		ID:           uuid.New(),
		Status:       domain.StatusException,
		SubStatus:    domain.SubStatusProcessingFailed,
		TotalAmount:  decimal.NewFromInt(700),
		InvoiceDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ReceivedDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	invoices.On("ListByStatus", mock.Anything, mock.AnythingOfType("[]domain.InvoiceStatus"), 10).
		Return([]domain.Invoice{*failed}, nil)
	invoices.On("GetByID", mock.Anything, failed.ID).Return(failed, nil)
	invoices.On("Update", mock.Anything, failed).Return(nil).Once()
	excRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.InvoiceException) bool {
		return e.Type == domain.ExceptionAnomalyDetected && e.InvoiceID == failed.ID
	})).Return(nil).Once()

	svc := newAnalysisService(t, invoices, new(mocks.MockVendorRepo), excRepo, dupByInvoice{})

	out := svc.SweepAnomalies(context.Background(), 10)

	assert.Equal(t, []uuid.UUID{failed.ID}, out.Flagged)
	assert.Empty(t, out.Failed)
	assert.Equal(t, domain.StatusException, failed.Status)
	assert.Equal(t, domain.SubStatusProcessingFailed, failed.SubStatus)
	assert.True(t, failed.Flags.HasAnomaly)
	assert.True(t, failed.Flags.RequiresManualReview)
	invoices.AssertExpectations(t)
	excRepo.AssertExpectations(t)
}

func TestAnalysisService_SweepAnomalies_ListFailure(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	invoices.On("ListByStatus", mock.Anything, mock.Anything, 10).Return(nil, errors.New("db down"))

	svc := newAnalysisService(t, invoices, new(mocks.MockVendorRepo), new(mocks.MockExceptionRepo), dupByInvoice{})

	out := svc.SweepAnomalies(context.Background(), 10)

	assert.Zero(t, out.Scanned)
	require.Len(t, out.Failed, 1)
	assert.Contains(t, out.Failed[0].Error, "db down")
}
