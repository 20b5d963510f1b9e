package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ivms/internal/logger"
	"ivms/internal/port"
)

// WorkerConfig holds settings for the pipeline worker.
type WorkerConfig struct {
	PollInterval time.Duration
	Concurrency  int
	RunTimeout   time.Duration
}

// PipelineWorker polls for submitted invoices and runs the pipeline on them.
type PipelineWorker struct {
	invoices port.InvoiceRepository
	pipeline PipelineService
	cfg      WorkerConfig
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewPipelineWorker creates a new PipelineWorker.
func NewPipelineWorker(invoices port.InvoiceRepository, pipeline PipelineService, cfg WorkerConfig, log *zap.Logger) *PipelineWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &PipelineWorker{
		invoices: invoices,
		pipeline: pipeline,
		cfg:      cfg,
		log:      logger.OrNop(log),
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight runs have finished.
func (w *PipelineWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	w.log.Info("pipelineWorker: started",
		zap.Duration("poll", w.cfg.PollInterval),
		zap.Int("concurrency", w.cfg.Concurrency))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("pipelineWorker: shutting down, waiting for in-flight runs")
			w.wg.Wait()
			w.log.Info("pipelineWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			ids, err := w.invoices.ClaimSubmitted(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				w.log.Error("pipelineWorker: ClaimSubmitted failed", zap.Error(err))
				continue
			}

			for _, id := range ids {
				sem <- struct{}{}
				w.wg.Add(1)
				go func(id uuid.UUID) {
					defer w.wg.Done()
					defer func() { <-sem }()

					// In-flight runs finish even while shutting down.
					runCtx, cancel := context.WithTimeout(context.Background(), w.cfg.RunTimeout)
					defer cancel()

					res, err := w.pipeline.ProcessInvoice(runCtx, id)
					if err != nil {
						w.log.Warn("pipelineWorker: run failed",
							zap.String("invoice_id", id.String()), zap.Error(err))
						w.release(runCtx, id)
						return
					}
					w.log.Debug("pipelineWorker: run complete",
						zap.String("invoice_id", id.String()),
						zap.String("status", string(res.Status)))
				}(id)
			}
		}
	}
}

// release returns an invoice whose run failed before it started to the
// submitted queue so a later poll picks it up again.
func (w *PipelineWorker) release(ctx context.Context, id uuid.UUID) {
	// The run context may be the reason the run failed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	released, err := w.invoices.ReleaseClaim(ctx, id)
	if err != nil {
		w.log.Error("pipelineWorker: ReleaseClaim failed",
			zap.String("invoice_id", id.String()), zap.Error(err))
		return
	}
	if released {
		w.log.Info("pipelineWorker: claim released",
			zap.String("invoice_id", id.String()))
	}
}
