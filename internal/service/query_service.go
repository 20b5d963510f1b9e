package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ivms/internal/domain"
	"ivms/internal/port"
)

// InvoiceQueryService exposes read access to pipeline outcomes.
type InvoiceQueryService interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetMatchRecord(ctx context.Context, invoiceID uuid.UUID) (*domain.MatchRecord, error)
	ListExceptions(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceException, error)
	ListFiles(ctx context.Context, invoiceID uuid.UUID) ([]domain.FileMeta, error)
}

type invoiceQueryService struct {
	invoices   port.InvoiceRepository
	matches    port.MatchRecordRepository
	exceptions port.ExceptionRepository
	files      port.FileMetaRepository
}

// NewInvoiceQueryService creates a new InvoiceQueryService implementation.
func NewInvoiceQueryService(
	invoices port.InvoiceRepository,
	matches port.MatchRecordRepository,
	exceptions port.ExceptionRepository,
	files port.FileMetaRepository,
) InvoiceQueryService {
	return &invoiceQueryService{
		invoices:   invoices,
		matches:    matches,
		exceptions: exceptions,
		files:      files,
	}
}

func (s *invoiceQueryService) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invoiceQueryService.GetInvoice: %w", err)
	}
	return inv, nil
}

func (s *invoiceQueryService) GetMatchRecord(ctx context.Context, invoiceID uuid.UUID) (*domain.MatchRecord, error) {
	rec, err := s.matches.GetByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoiceQueryService.GetMatchRecord: %w", err)
	}
	return rec, nil
}

func (s *invoiceQueryService) ListExceptions(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceException, error) {
	out, err := s.exceptions.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoiceQueryService.ListExceptions: %w", err)
	}
	return out, nil
}

func (s *invoiceQueryService) ListFiles(ctx context.Context, invoiceID uuid.UUID) ([]domain.FileMeta, error) {
	out, err := s.files.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoiceQueryService.ListFiles: %w", err)
	}
	return out, nil
}
