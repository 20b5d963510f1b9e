package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ivms/internal/domain"
	"ivms/internal/intake"
	"ivms/internal/logger"
	"ivms/internal/port"
	s3storage "ivms/internal/storage/s3"
)

// SubmitInput is the DTO for one invoice submission.
type SubmitInput struct {
	Payload intake.Payload
	Files   []intake.AttachedFile
	Channel domain.Channel
}

// SubmitResult summarizes an accepted submission.
type SubmitResult struct {
	InvoiceID            uuid.UUID            `json:"invoice_id"`
	Status               domain.InvoiceStatus `json:"status"`
	ExtractionConfidence float64              `json:"extraction_confidence"`
	RequiresReview       bool                 `json:"requires_review"`
}

// BulkItemResult is the per-item outcome of a bulk upload.
type BulkItemResult struct {
	Index  int           `json:"index"`
	Result *SubmitResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// IntakeConfig holds intake settings.
type IntakeConfig struct {
	Bucket          string
	ReviewBelow     float64
	BulkConcurrency int
}

// IntakeService accepts invoices from every channel and stores them as submitted.
type IntakeService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	BulkUpload(ctx context.Context, items []SubmitInput) []BulkItemResult
}

type intakeService struct {
	normalizer *intake.Normalizer
	invoices   port.InvoiceRepository
	files      port.FileMetaRepository
	storage    port.ObjectStorage
	cfg        IntakeConfig
	log        *zap.Logger
	now        func() time.Time
}

// NewIntakeService creates a new IntakeService implementation.
func NewIntakeService(
	normalizer *intake.Normalizer,
	invoices port.InvoiceRepository,
	files port.FileMetaRepository,
	storage port.ObjectStorage,
	cfg IntakeConfig,
	log *zap.Logger,
) IntakeService {
	return &intakeService{
		normalizer: normalizer,
		invoices:   invoices,
		files:      files,
		storage:    storage,
		cfg:        cfg,
		log:        logger.OrNop(log),
		now:        time.Now,
	}
}

// Submit normalizes the payload, uploads its documents and persists the
// invoice. Validation failures return before anything is stored.
func (s *intakeService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	norm, err := s.normalizer.Normalize(ctx, in.Payload, in.Files, in.Channel)
	if err != nil {
		return nil, fmt.Errorf("intakeService.Submit: %w", err)
	}

	inv := norm.Invoice
	inv.ID = uuid.New()
	now := s.now().UTC()

	metas, err := s.upload(ctx, inv, norm.Files, now)
	if err != nil {
		return nil, fmt.Errorf("intakeService.Submit: %w", err)
	}

	actor := inv.SubmittedBy
	if actor == "" {
		actor = string(in.Channel)
	}
	inv.AddAudit(domain.AuditInvoiceSubmitted, actor, map[string]any{
		"channel":               string(in.Channel),
		"files":                 len(metas),
		"extraction_confidence": inv.ExtractionConfidence,
	}, now)

	if err := s.invoices.Create(ctx, inv); err != nil {
		s.discard(ctx, metas)
		return nil, fmt.Errorf("intakeService.Submit: %w", err)
	}

	for i := range metas {
		if err := s.files.Create(ctx, &metas[i]); err != nil {
			s.log.Error("intakeService.Submit: saving file metadata",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("file_id", metas[i].ID.String()), zap.Error(err))
			s.discard(ctx, metas)
			s.cancel(ctx, inv, now)
			return nil, fmt.Errorf("intakeService.Submit: %w", err)
		}
	}

	s.log.Info("intakeService.Submit: invoice received",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("channel", string(in.Channel)),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Float64("extraction_confidence", inv.ExtractionConfidence),
		zap.Int("files", len(metas)))

	return &SubmitResult{
		InvoiceID:            inv.ID,
		Status:               inv.Status,
		ExtractionConfidence: inv.ExtractionConfidence,
		RequiresReview:       inv.ExtractionConfidence < s.cfg.ReviewBelow,
	}, nil
}

// BulkUpload submits every item concurrently and reports each outcome.
func (s *intakeService) BulkUpload(ctx context.Context, items []SubmitInput) []BulkItemResult {
	results := make([]BulkItemResult, len(items))

	var g errgroup.Group
	g.SetLimit(max(s.cfg.BulkConcurrency, 1))
	for i, item := range items {
		g.Go(func() error {
			results[i].Index = i
			res, err := s.Submit(ctx, item)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	s.log.Info("intakeService.BulkUpload: batch complete",
		zap.Int("total", len(items)), zap.Int("failed", failed))
	return results
}

// upload stores each prepared file and returns its metadata. A failed upload
// removes the objects already written for this invoice.
func (s *intakeService) upload(ctx context.Context, inv *domain.Invoice, files []intake.PreparedFile, now time.Time) ([]domain.FileMeta, error) {
	metas := make([]domain.FileMeta, 0, len(files))
	for _, f := range files {
		fileID := uuid.New()
		key := s3storage.ObjectKey(inv.ID, fileID, f.Name)

		_, err := s.storage.Upload(ctx, port.UploadInput{
			Bucket:      s.cfg.Bucket,
			Key:         key,
			Body:        bytes.NewReader(f.Content),
			ContentType: f.ContentType,
			Size:        int64(len(f.Content)),
		})
		if err != nil {
			s.log.Warn("intakeService.upload: upload failed",
				zap.String("invoice_id", inv.ID.String()), zap.String("key", key), zap.Error(err))
			s.discard(ctx, metas)
			return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
		}

		metas = append(metas, domain.FileMeta{
			ID:               fileID,
			InvoiceID:        inv.ID,
			FileName:         fileID.String() + "." + string(f.FileType),
			OriginalName:     f.Name,
			FileType:         f.FileType,
			FileSize:         int64(len(f.Content)),
			S3Bucket:         s.cfg.Bucket,
			S3Key:            key,
			ContentType:      f.ContentType,
			Hash:             f.Hash,
			PageCount:        f.Pages,
			NeedsEnhancement: f.NeedsEnhancement,
			CreatedAt:        now,
		})
		inv.FileIDs = append(inv.FileIDs, fileID)
	}
	return metas, nil
}

// cancel takes a half-stored invoice out of the queue so the pipeline never
// picks it up without its documents.
func (s *intakeService) cancel(ctx context.Context, inv *domain.Invoice, now time.Time) {
	err := inv.TransitionTo(domain.StatusCancelled, domain.SubStatusIntakeFailed, domain.SystemActor,
		"document metadata could not be saved", now)
	if err == nil {
		err = s.invoices.Update(ctx, inv)
	}
	if err != nil {
		s.log.Error("intakeService.cancel: invoice left submitted without documents",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}
}

func (s *intakeService) discard(ctx context.Context, metas []domain.FileMeta) {
	for _, m := range metas {
		if err := s.storage.Delete(ctx, m.S3Bucket, m.S3Key); err != nil {
			s.log.Warn("intakeService.discard: orphaned object",
				zap.String("key", m.S3Key), zap.Error(err))
		}
	}
}
