package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ivms/internal/domain"
)

// MockMatchRecordRepo is a mock implementation of port.MatchRecordRepository.
type MockMatchRecordRepo struct {
	mock.Mock
}

func (m *MockMatchRecordRepo) Upsert(ctx context.Context, rec *domain.MatchRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockMatchRecordRepo) GetByInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.MatchRecord, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchRecord), args.Error(1)
}
