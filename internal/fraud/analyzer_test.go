package fraud_test

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

	"ivms/internal/domain"
	"ivms/internal/duplicate"
	"ivms/internal/fraud"
	"ivms/mocks"
)

// Wednesday noon.
var analyzerNow = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

type stubDuplicates struct {
	res *duplicate.Result
	err error
}

func (s stubDuplicates) Check(context.Context, *domain.Invoice) (*duplicate.Result, error) {
	return s.res, s.err
}

func paid(amounts ...int64) []domain.Invoice {
	out := make([]domain.Invoice, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, domain.Invoice{ID: uuid.New(), TotalAmount: decimal.NewFromInt(a)})
	}
	return out
}

func newAnalyzer(t *testing.T, invoices *mocks.MockInvoiceRepo, vendors *mocks.MockVendorRepo, dup fraud.DuplicateChecker) *fraud.Analyzer {
	t.Helper()
	a, err := fraud.NewAnalyzer(invoices, vendors, dup, fraud.DefaultAnalyzerConfig(), nil)
	require.NoError(t, err)
	return a.WithClock(func() time.Time { return analyzerNow })
}

func TestNewAnalyzer_RejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := fraud.DefaultAnalyzerConfig()
	cfg.Weights.Price = 0.5

	_, err := fraud.NewAnalyzer(nil, nil, stubDuplicates{}, cfg, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidWeights)
}

func TestAnalyzer_CleanInvoice(t *testing.T) {
	vendorID := uuid.New()
	inv := &domain.Invoice{
		ID:          uuid.New(),
		VendorID:    &vendorID,
		TotalAmount: decimal.RequireFromString("1050.00"),
		DueDate:     analyzerNow.AddDate(0, 0, 30),
		CreatedAt:   analyzerNow,
		LineItems:   []domain.LineItem{{Description: "Steel bolts", LineTotal: decimal.RequireFromString("1050.00")}},
	}
	invoices := new(mocks.MockInvoiceRepo)
	invoices.On("ListPaidByVendor", mock.Anything, vendorID, inv.ID, 20).Return(paid(1000, 1000, 1000), nil)
	vendors := new(mocks.MockVendorRepo)
	vendors.On("GetByID", mock.Anything, vendorID).Return(&domain.Vendor{ID: vendorID, CreatedAt: analyzerNow.AddDate(-1, 0, 0)}, nil)

	an, err := newAnalyzer(t, invoices, vendors, stubDuplicates{res: &duplicate.Result{}}).Analyze(context.Background(), inv)

	require.NoError(t, err)
	assert.Equal(t, 0.0, an.Score)
	assert.Equal(t, domain.RiskNone, an.RiskLevel)
	assert.Empty(t, an.Indicators)
	assert.Empty(t, an.Recommendations)
	assert.False(t, an.Price.HasAnomaly)
	assert.False(t, an.Round.IsSuspicious)
}

func TestAnalyzer_EveryFactorFires(t *testing.T) {
	vendorID := uuid.New()
	saturdayNight := time.Date(2025, 6, 7, 23, 30, 0, 0, time.UTC)
	inv := &domain.Invoice{
		ID:          uuid.New(),
		VendorID:    &vendorID,
		TotalAmount: decimal.NewFromInt(5000),
		DueDate:     analyzerNow.Add(36 * time.Hour),
		CreatedAt:   saturdayNight,
		LineItems: []domain.LineItem{
			{Description: "Consulting services", LineTotal: decimal.NewFromInt(2500)},
			{Description: "Misc", LineTotal: decimal.NewFromInt(2500)},
		},
	}
	invoices := new(mocks.MockInvoiceRepo)
	invoices.On("ListPaidByVendor", mock.Anything, vendorID, inv.ID, 20).Return(paid(1000, 1100, 900), nil)
	vendors := new(mocks.MockVendorRepo)
	vendors.On("GetByID", mock.Anything, vendorID).Return(&domain.Vendor{ID: vendorID, CreatedAt: analyzerNow.AddDate(0, 0, -10)}, nil)
	dup := stubDuplicates{res: &duplicate.Result{IsDuplicate: true, Confidence: 1, Matches: []duplicate.Match{{InvoiceID: uuid.New()}}}}

	an, err := newAnalyzer(t, invoices, vendors, dup).Analyze(context.Background(), inv)

	require.NoError(t, err)
	assert.Equal(t, 0.85, an.Duplicate.Confidence)
	assert.Equal(t, 0.9, an.Price.Confidence)
	assert.Equal(t, domain.SeverityHigh, an.Price.Risk)
	assert.Equal(t, "above", an.Price.Direction)
	assert.Equal(t, 10, an.Vendor.AgeDays)
	assert.Equal(t, 1, an.Rush.DaysUntilDue)
	assert.Equal(t, 3, an.Pattern.Count)
	assert.InDelta(t, 0.8, an.Pattern.Confidence, 1e-9)
	assert.True(t, an.Round.IsSuspicious)

	// .35*.85 + .25*.9 + .10*.6 + .15*.6 + .05*.4 + .10*.8
	assert.InDelta(t, 0.7725, an.Score, 1e-9)
	assert.Equal(t, domain.RiskCritical, an.RiskLevel)
	assert.Len(t, an.Indicators, 6)
	require.Len(t, an.Recommendations, 4)
	assert.Equal(t, "critical", an.Recommendations[0].Priority)
}

func TestAnalyzer_InsufficientHistory(t *testing.T) {
	vendorID := uuid.New()
	inv := &domain.Invoice{ID: uuid.New(), VendorID: &vendorID, TotalAmount: decimal.NewFromInt(99999)}
	invoices := new(mocks.MockInvoiceRepo)
	invoices.On("ListPaidByVendor", mock.Anything, vendorID, inv.ID, 20).Return(paid(100, 200), nil)
	vendors := new(mocks.MockVendorRepo)
	vendors.On("GetByID", mock.Anything, vendorID).Return(nil, domain.ErrVendorNotFound)

	an, err := newAnalyzer(t, invoices, vendors, stubDuplicates{res: &duplicate.Result{}}).Analyze(context.Background(), inv)

	require.NoError(t, err)
	assert.False(t, an.Price.HasAnomaly)
	assert.Equal(t, "Insufficient historical data", an.Price.Reason)
	assert.Equal(t, "Vendor data not available", an.Vendor.Reason)
}

func TestAnalyzer_DuplicateCheckError(t *testing.T) {
	_, err := newAnalyzer(t, new(mocks.MockInvoiceRepo), new(mocks.MockVendorRepo), stubDuplicates{err: errors.New("db down")}).
		Analyze(context.Background(), &domain.Invoice{ID: uuid.New()})

	assert.ErrorContains(t, err, "db down")
}

func TestAnalyzer_RiskLevel(t *testing.T) {
	a := newAnalyzer(t, nil, nil, stubDuplicates{})
	tests := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0.05, domain.RiskNone},
		{0.1, domain.RiskLow},
		{0.3, domain.RiskMedium},
		{0.5, domain.RiskHigh},
		{0.7, domain.RiskCritical},
		{1.0, domain.RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, a.RiskLevel(tt.score), "score %.2f", tt.score)
	}
}
