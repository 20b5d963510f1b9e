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

	"ivms/internal/domain"
	"ivms/internal/fraud"
	"ivms/internal/port"
	"ivms/mocks"
)

func scorerInvoice(total string) *domain.Invoice {
	d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-7",
		TotalAmount:   decimal.RequireFromString(total),
		InvoiceDate:   d,
		ReceivedDate:  d.AddDate(0, 0, 2),
	}
}

func TestScorer_CleanInvoice(t *testing.T) {
	signal := new(mocks.MockFraudSignal)
	signal.On("Signal", mock.Anything, mock.Anything).Return(&port.FraudSignalResult{Score: 0}, nil)

	res := fraud.NewScorer(signal, fraud.DefaultScorerConfig(), nil).Score(context.Background(), scorerInvoice("1234.50"))

	assert.Equal(t, 0.0, res.Score)
	assert.False(t, res.Suspicious)
	assert.False(t, res.SignalDegraded)
	assert.Empty(t, res.Reasons)
}

func TestScorer_AllRules(t *testing.T) {
	signal := new(mocks.MockFraudSignal)
	signal.On("Signal", mock.Anything, mock.MatchedBy(func(r port.FraudSignalRequest) bool {
		return r.BankAccountChanged && r.InvoiceNumber == "INV-7"
	})).Return(&port.FraudSignalResult{Score: 10, Flags: []port.FraudFlag{{Type: "velocity"}}}, nil)

	inv := scorerInvoice("200000")
	inv.Flags.BankAccountChanged = true
	inv.ReceivedDate = inv.InvoiceDate.AddDate(0, 0, 120)

	res := fraud.NewScorer(signal, fraud.DefaultScorerConfig(), nil).Score(context.Background(), inv)

	assert.Equal(t, 60.0, res.Score)
	assert.True(t, res.Suspicious)
	assert.Equal(t, 10.0, res.ExternalScore)
	types := make([]string, 0, len(res.Reasons))
	for _, r := range res.Reasons {
		types = append(types, r.Type)
	}
	assert.ElementsMatch(t, []string{
		fraud.IndicatorExternalSignal, fraud.IndicatorBankChange, fraud.IndicatorHighAmount,
		fraud.IndicatorRoundAmount, fraud.IndicatorDateMismatch,
	}, types)
}

func TestScorer_ClampsAt100(t *testing.T) {
	signal := new(mocks.MockFraudSignal)
	signal.On("Signal", mock.Anything, mock.Anything).Return(&port.FraudSignalResult{Score: 95}, nil)

	inv := scorerInvoice("200000")
	inv.Flags.BankAccountChanged = true

	res := fraud.NewScorer(signal, fraud.DefaultScorerConfig(), nil).Score(context.Background(), inv)

	assert.Equal(t, 100.0, res.Score)
}

func TestScorer_SuspiciousIsInclusive(t *testing.T) {
	signal := new(mocks.MockFraudSignal)
	signal.On("Signal", mock.Anything, mock.Anything).Return(&port.FraudSignalResult{Score: 10}, nil)

	inv := scorerInvoice("900")
	inv.Flags.BankAccountChanged = true

	res := fraud.NewScorer(signal, fraud.DefaultScorerConfig(), nil).Score(context.Background(), inv)

	assert.Equal(t, 30.0, res.Score)
	assert.True(t, res.Suspicious)
}

func TestScorer_SignalFailureContributesNothing(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		signal := new(mocks.MockFraudSignal)
		signal.On("Signal", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		inv := scorerInvoice("900")
		inv.Flags.BankAccountChanged = true
		res := fraud.NewScorer(signal, fraud.DefaultScorerConfig(), nil).Score(context.Background(), inv)

		assert.Equal(t, 20.0, res.Score)
		assert.True(t, res.SignalDegraded)
		assert.False(t, res.Suspicious)
	})

	t.Run("nil_signal", func(t *testing.T) {
		res := fraud.NewScorer(nil, fraud.DefaultScorerConfig(), nil).Score(context.Background(), scorerInvoice("10"))

		assert.Equal(t, 0.0, res.Score)
		assert.True(t, res.SignalDegraded)
	})
}

func TestScorer_RoundAmountNeedsMoreThan5000(t *testing.T) {
	res := fraud.NewScorer(nil, fraud.DefaultScorerConfig(), nil).Score(context.Background(), scorerInvoice("5000"))
	assert.Equal(t, 0.0, res.Score)

	res = fraud.NewScorer(nil, fraud.DefaultScorerConfig(), nil).Score(context.Background(), scorerInvoice("6000"))
	assert.Equal(t, 5.0, res.Score)
}
