package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ivms/internal/domain"
)

// MockPurchaseOrderRepo is a mock implementation of port.PurchaseOrderRepository.
type MockPurchaseOrderRepo struct {
	mock.Mock
}

func (m *MockPurchaseOrderRepo) ListByNumbers(ctx context.Context, poNumbers []string) ([]domain.PurchaseOrder, error) {
	args := m.Called(ctx, poNumbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepo) ListReceipts(ctx context.Context, poNumbers []string) ([]domain.GoodsReceipt, error) {
	args := m.Called(ctx, poNumbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GoodsReceipt), args.Error(1)
}
