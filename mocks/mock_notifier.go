package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ivms/internal/domain"
)

// MockExceptionNotifier is a mock implementation of port.ExceptionNotifier.
type MockExceptionNotifier struct {
	mock.Mock
}

func (m *MockExceptionNotifier) NotifyException(ctx context.Context, exc *domain.InvoiceException, inv *domain.Invoice) error {
	args := m.Called(ctx, exc, inv)
	return args.Error(0)
}
