package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivms/internal/domain"
)

func TestInvoice_Recalculate_BalanceInvariant(t *testing.T) {
	tests := []struct {
		name  string
		total string
		paid  string
		want  string
		high  bool
	}{
		{"unpaid", "500.00", "0", "500.00", false},
		{"partially_paid", "1200.50", "200.25", "1000.25", false},
		{"credit_memo", "-150.00", "0", "-150.00", false},
		{"exactly_threshold", "50000", "0", "50000", false},
		{"above_threshold", "50000.01", "10000", "40000.01", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &domain.Invoice{
				TotalAmount: decimal.RequireFromString(tt.total),
				AmountPaid:  decimal.RequireFromString(tt.paid),
			}
			inv.Recalculate()
			assert.True(t, inv.Balance.Equal(decimal.RequireFromString(tt.want)), "balance %s", inv.Balance)
			assert.True(t, inv.Balance.Equal(inv.TotalAmount.Sub(inv.AmountPaid)))
			assert.Equal(t, tt.high, inv.Flags.IsHighValue)
		})
	}
}

func TestInvoice_DerivedTotal(t *testing.T) {
	inv := &domain.Invoice{
		Subtotal:       decimal.NewFromInt(100),
		TaxAmount:      decimal.NewFromInt(10),
		ShippingAmount: decimal.NewFromInt(5),
		DiscountAmount: decimal.NewFromInt(15),
	}
	assert.True(t, inv.DerivedTotal().Equal(decimal.NewFromInt(100)))
}

func TestInvoice_TransitionTo_AppendsExactlyOneAuditEntry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	inv := &domain.Invoice{Status: domain.StatusSubmitted}

	require.NoError(t, inv.TransitionTo(domain.StatusProcessing, "", domain.SystemActor, "", now))
	require.NoError(t, inv.TransitionTo(domain.StatusException, domain.SubStatusDuplicate, domain.SystemActor, "dup", now))

	assert.Len(t, inv.AuditTrail, 2)
	assert.Len(t, inv.StatusHistory, 2)
	assert.Equal(t, domain.StatusException, inv.Status)
	assert.Equal(t, domain.SubStatusDuplicate, inv.SubStatus)
	assert.Equal(t, domain.AuditStatusChanged, inv.AuditTrail[1].Action)
	assert.Equal(t, "exception", inv.AuditTrail[1].Details["to"])
}

func TestInvoice_TransitionTo_RejectsIllegalMove(t *testing.T) {
	inv := &domain.Invoice{Status: domain.StatusArchived}

	err := inv.TransitionTo(domain.StatusApproved, "", domain.SystemActor, "", time.Now())

	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Empty(t, inv.AuditTrail)
	assert.Equal(t, domain.StatusArchived, inv.Status)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, domain.CanTransition(domain.StatusSubmitted, domain.StatusProcessing))
	assert.True(t, domain.CanTransition(domain.StatusMatching, domain.StatusNoMatch))
	assert.True(t, domain.CanTransition(domain.StatusException, domain.StatusProcessing))
	assert.True(t, domain.CanTransition(domain.StatusApproved, domain.StatusPaid))
	assert.False(t, domain.CanTransition(domain.StatusSubmitted, domain.StatusApproved))
	assert.False(t, domain.CanTransition(domain.StatusPaid, domain.StatusProcessing))
	assert.True(t, domain.IsTerminal(domain.StatusArchived))
}

func TestInvoice_MergeFields_KeepsHigherConfidence(t *testing.T) {
	inv := &domain.Invoice{ExtractedFields: []domain.ExtractedField{
		{Kind: domain.FieldInvoiceNumber, Value: "INV-1", Confidence: 0.7, Method: domain.ExtractionOCR},
		{Kind: domain.FieldOther, Name: "terms", Value: "net30", Confidence: 0.5},
	}}

	inv.MergeFields([]domain.ExtractedField{
		{Kind: domain.FieldInvoiceNumber, Value: "INV-001", Confidence: 0.95, Method: domain.ExtractionOCR},
		{Kind: domain.FieldTotalAmount, Value: "100.00", Confidence: 0.9},
		{Kind: domain.FieldOther, Name: "terms", Value: "net45", Confidence: 0.4},
		{Kind: domain.FieldOther, Name: "store", Value: "12", Confidence: 0.6},
	})

	require.Len(t, inv.ExtractedFields, 4)
	f, ok := inv.Field(domain.FieldInvoiceNumber)
	require.True(t, ok)
	assert.Equal(t, "INV-001", f.Value)
	assert.Equal(t, "net30", inv.ExtractedFields[1].Value)
}

func TestParseFieldKind(t *testing.T) {
	assert.Equal(t, domain.FieldPONumber, domain.ParseFieldKind("po_number"))
	assert.Equal(t, domain.FieldOther, domain.ParseFieldKind("shipping_method"))
}

func TestMatchRecord_EvaluateAutoMatch(t *testing.T) {
	rec := &domain.MatchRecord{Score: 0.97}
	assert.True(t, rec.EvaluateAutoMatch())

	rec.MismatchReasons = []domain.MismatchReason{{Type: domain.MismatchPrice, Severity: domain.SeverityWarning}}
	assert.False(t, rec.EvaluateAutoMatch())

	rec.MismatchReasons[0].Resolved = true
	assert.True(t, rec.EvaluateAutoMatch())

	rec.Score = 0.94
	assert.False(t, rec.EvaluateAutoMatch())
}

func TestMatchRecord_BlockingMismatches(t *testing.T) {
	rec := &domain.MatchRecord{MismatchReasons: []domain.MismatchReason{
		{Type: domain.MismatchPrice, Severity: domain.SeverityWarning},
		{Type: domain.MismatchQuantity, Severity: domain.SeverityError},
		{Type: domain.MismatchPONotFound, Severity: domain.SeverityCritical},
		{Type: domain.MismatchAmount, Severity: domain.SeverityError, Resolved: true},
	}}
	blocking := rec.BlockingMismatches()
	require.Len(t, blocking, 2)
	assert.Equal(t, domain.MismatchQuantity, blocking[0].Type)
}

func TestMissingRequiredFieldsError(t *testing.T) {
	err := &domain.MissingRequiredFieldsError{Fields: []string{"invoice_number", "total_amount"}}
	assert.True(t, errors.Is(err, domain.ErrMissingRequiredFields))
	assert.Contains(t, err.Error(), "invoice_number, total_amount")
	assert.True(t, domain.IsValidationError(err))
}
