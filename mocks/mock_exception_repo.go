package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ivms/internal/domain"
)

// MockExceptionRepo is a mock implementation of port.ExceptionRepository.
type MockExceptionRepo struct {
	mock.Mock
}

func (m *MockExceptionRepo) Create(ctx context.Context, exc *domain.InvoiceException) error {
	args := m.Called(ctx, exc)
	return args.Error(0)
}

func (m *MockExceptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceException, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvoiceException), args.Error(1)
}

func (m *MockExceptionRepo) Update(ctx context.Context, exc *domain.InvoiceException) error {
	args := m.Called(ctx, exc)
	return args.Error(0)
}

func (m *MockExceptionRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceException, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.InvoiceException), args.Error(1)
}
