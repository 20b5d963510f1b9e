package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ivms/internal/domain"
	"ivms/internal/port"
)

type fileMetaRepo struct {
	db *sqlx.DB
}

// NewFileMetaRepo creates a new PostgreSQL-backed FileMetaRepository.
func NewFileMetaRepo(db *sqlx.DB) port.FileMetaRepository {
	return &fileMetaRepo{db: db}
}

func (r *fileMetaRepo) Create(ctx context.Context, meta *domain.FileMeta) error {
	meta.CreatedAt = time.Now().UTC()

	query := `INSERT INTO file_metadata
		(id, invoice_id, file_name, original_name, file_type, file_size,
		 s3_bucket, s3_key, content_type, hash, page_count, needs_enhancement, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		meta.ID, meta.InvoiceID, meta.FileName, meta.OriginalName, meta.FileType, meta.FileSize,
		meta.S3Bucket, meta.S3Key, meta.ContentType, meta.Hash, meta.PageCount, meta.NeedsEnhancement,
		meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("fileMetaRepo.Create: %w", err)
	}
	return nil
}

func (r *fileMetaRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.FileMeta, error) {
	var files []domain.FileMeta
	err := r.db.SelectContext(ctx, &files,
		"SELECT * FROM file_metadata WHERE invoice_id = $1 ORDER BY created_at ASC", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("fileMetaRepo.ListByInvoice: %w", err)
	}
	return files, nil
}
