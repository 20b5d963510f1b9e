package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ivms/internal/domain"
	"ivms/internal/service"
	"ivms/mocks"
)

func runWorker(t *testing.T, w *service.PipelineWorker, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	time.Sleep(d)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestPipelineWorker_PollsAndProcessesClaimedInvoices(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	pipeline := new(mocks.MockPipelineService)

	id := uuid.New()
	// First poll claims one invoice, later polls find nothing.
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{id}, nil).Once()
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{}, nil).Maybe()
	pipeline.On("ProcessInvoice", mock.Anything, id).
		Return(&service.ProcessResult{InvoiceID: id, Status: domain.StatusApproved}, nil).Once()

	w := service.NewPipelineWorker(invoices, pipeline, service.WorkerConfig{
		PollInterval: 50 * time.Millisecond,
		Concurrency:  2,
	}, nil)
	runWorker(t, w, 200*time.Millisecond)

	invoices.AssertCalled(t, "ClaimSubmitted", mock.Anything, mock.AnythingOfType("int"))
	pipeline.AssertExpectations(t)
}

func TestPipelineWorker_RespectsConcurrencyCap(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	pipeline := new(mocks.MockPipelineService)

	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{}, nil).Maybe()

	cfg := service.WorkerConfig{PollInterval: 50 * time.Millisecond, Concurrency: 3}
	w := service.NewPipelineWorker(invoices, pipeline, cfg, nil)
	runWorker(t, w, 150*time.Millisecond)

	for _, call := range invoices.Calls {
		if call.Method == "ClaimSubmitted" {
			limit := call.Arguments.Get(1).(int)
			assert.LessOrEqual(t, limit, cfg.Concurrency)
			assert.Positive(t, limit)
		}
	}
}

func TestPipelineWorker_SurvivesClaimAndRunErrors(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	pipeline := new(mocks.MockPipelineService)

	id := uuid.New()
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return(nil, errors.New("db down")).Once()
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{id}, nil).Once()
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{}, nil).Maybe()
	pipeline.On("ProcessInvoice", mock.Anything, id).
		Return(nil, errors.New("matcher exploded")).Once()
	invoices.On("ReleaseClaim", mock.Anything, id).Return(false, errors.New("db down")).Once()

	w := service.NewPipelineWorker(invoices, pipeline, service.WorkerConfig{
		PollInterval: 30 * time.Millisecond,
		Concurrency:  1,
	}, nil)
	runWorker(t, w, 250*time.Millisecond)

	pipeline.AssertExpectations(t)
	invoices.AssertCalled(t, "ReleaseClaim", mock.Anything, id)
}

func TestPipelineWorker_ReleasesClaimWhenRunCannotStart(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	pipeline := new(mocks.MockPipelineService)

	id := uuid.New()
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{id}, nil).Once()
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{}, nil).Maybe()
	pipeline.On("ProcessInvoice", mock.Anything, id).
		Return(nil, fmt.Errorf("pipelineService.ProcessInvoice: %w", domain.ErrLockTimeout)).Once()
	invoices.On("ReleaseClaim", mock.Anything, id).Return(true, nil).Once()

	w := service.NewPipelineWorker(invoices, pipeline, service.WorkerConfig{
		PollInterval: 30 * time.Millisecond,
		Concurrency:  1,
	}, nil)
	runWorker(t, w, 200*time.Millisecond)

	pipeline.AssertExpectations(t)
	invoices.AssertExpectations(t)
}

func TestPipelineWorker_CleanShutdown(t *testing.T) {
	invoices := new(mocks.MockInvoiceRepo)
	pipeline := new(mocks.MockPipelineService)
	invoices.On("ClaimSubmitted", mock.Anything, mock.AnythingOfType("int")).
		Return([]uuid.UUID{}, nil).Maybe()

	w := service.NewPipelineWorker(invoices, pipeline, service.WorkerConfig{
		PollInterval: 50 * time.Millisecond,
		Concurrency:  5,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
	pipeline.AssertNotCalled(t, "ProcessInvoice", mock.Anything, mock.Anything)
}
