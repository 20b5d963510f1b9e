package coding_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ivms/internal/coding"
	"ivms/internal/domain"
	"ivms/internal/port"
	"ivms/mocks"
)

func invoice(category domain.Category) *domain.Invoice {
	return &domain.Invoice{
		ID:       uuid.New(),
		Category: category,
		LineItems: []domain.LineItem{
			{LineNumber: 1, Description: "Laptop"},
			{LineNumber: 2, Description: "Dock", GLAccount: "1500", CostCenter: "IT"},
		},
	}
}

func TestAdvise_AppliesConfidentServiceSuggestion(t *testing.T) {
	svc := new(mocks.MockCodingAdvisor)
	svc.On("Suggest", mock.Anything, mock.Anything).Return(&port.CodingResult{Suggestions: []domain.CodingSuggestion{
		{GLAccount: "5100", Confidence: 0.7},
		{GLAccount: "5200", CostCenter: "OPS", Confidence: 0.93},
	}}, nil)
	inv := invoice(domain.CategoryGoods)

	res := coding.NewAdvisor(svc, coding.DefaultConfig(), nil).Advise(context.Background(), inv)

	assert.True(t, res.Applied)
	assert.Equal(t, coding.SourceService, res.Source)
	assert.Equal(t, "5200", inv.GLAccount)
	assert.Equal(t, "OPS", inv.CostCenter)
	assert.True(t, inv.CodingApplied)
	assert.Equal(t, "5200", inv.LineItems[0].GLAccount)
	assert.Equal(t, "1500", inv.LineItems[1].GLAccount, "coded lines keep their account")
	require.Len(t, inv.CodingSuggestions, 2)
	assert.Equal(t, "5200", inv.CodingSuggestions[0].GLAccount)
}

func TestAdvise_LowConfidenceOnlySuggests(t *testing.T) {
	svc := new(mocks.MockCodingAdvisor)
	svc.On("Suggest", mock.Anything, mock.Anything).Return(&port.CodingResult{Suggestions: []domain.CodingSuggestion{
		{GLAccount: "5100", Confidence: 0.89},
	}}, nil)
	inv := invoice(domain.CategoryGoods)

	res := coding.NewAdvisor(svc, coding.DefaultConfig(), nil).Advise(context.Background(), inv)

	assert.False(t, res.Applied)
	assert.Empty(t, inv.GLAccount)
	assert.Equal(t, coding.SourceService, res.Source)
	require.Len(t, inv.CodingSuggestions, 2)
	assert.Equal(t, "5100", inv.CodingSuggestions[0].GLAccount)
	assert.Equal(t, "5000", inv.CodingSuggestions[1].GLAccount)
	assert.Equal(t, coding.SourceDefault, inv.CodingSuggestions[1].Source)
	assert.Equal(t, 0.6, inv.CodingSuggestions[1].Confidence)
}

func TestAdvise_DefaultTable(t *testing.T) {
	tests := []struct {
		category   domain.Category
		account    string
		confidence float64
	}{
		{domain.CategoryGoods, "5000", 0.6},
		{domain.CategoryServices, "6000", 0.55},
		{domain.CategorySubscription, "6100", 0.5},
		{domain.CategoryUtilities, "6200", 0.6},
		{domain.CategoryTravel, "6300", 0.5},
		{domain.CategoryOther, "6900", 0.4},
		{"", "6900", 0.4},
	}
	for _, tt := range tests {
		t.Run(string(tt.category)+"_default", func(t *testing.T) {
			svc := new(mocks.MockCodingAdvisor)
			svc.On("Suggest", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
			inv := invoice(tt.category)

			res := coding.NewAdvisor(svc, coding.DefaultConfig(), nil).Advise(context.Background(), inv)

			assert.Equal(t, coding.SourceDefault, res.Source)
			assert.False(t, res.Applied)
			require.Len(t, res.Suggestions, 1)
			assert.Equal(t, tt.account, res.Suggestions[0].GLAccount)
			assert.Equal(t, tt.confidence, res.Suggestions[0].Confidence)
			assert.Empty(t, inv.GLAccount)
		})
	}
}

func TestAdvise_DefaultNeverAppliedEvenWhenConfident(t *testing.T) {
	cfg := coding.DefaultConfig()
	cfg.Defaults = map[domain.Category]coding.Default{domain.CategoryOther: {GLAccount: "6900", Confidence: 0.99}}
	inv := invoice(domain.CategoryOther)

	res := coding.NewAdvisor(nil, cfg, nil).Advise(context.Background(), inv)

	assert.False(t, res.Applied)
	assert.Empty(t, inv.GLAccount)
}

func TestAdvise_AlreadyCoded(t *testing.T) {
	svc := new(mocks.MockCodingAdvisor)
	inv := invoice(domain.CategoryGoods)
	inv.GLAccount = "4000"

	res := coding.NewAdvisor(svc, coding.DefaultConfig(), nil).Advise(context.Background(), inv)

	assert.True(t, res.AlreadyCoded)
	assert.Equal(t, "4000", inv.GLAccount)
	svc.AssertNotCalled(t, "Suggest", mock.Anything, mock.Anything)
}
