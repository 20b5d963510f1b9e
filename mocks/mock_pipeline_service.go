package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ivms/internal/service"
)

// MockPipelineService is a mock implementation of service.PipelineService.
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) ProcessInvoice(ctx context.Context, id uuid.UUID) (*service.ProcessResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}

func (m *MockPipelineService) ProcessBatch(ctx context.Context, ids []uuid.UUID) []service.BatchItemResult {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]service.BatchItemResult)
}
