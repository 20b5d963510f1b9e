package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ivms/internal/domain"
	"ivms/internal/port"
)

type matchRecordRow struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Data      []byte    `db:"data"`
}

type matchRecordRepo struct {
	db *sqlx.DB
}

// NewMatchRecordRepo creates a new PostgreSQL-backed MatchRecordRepository.
func NewMatchRecordRepo(db *sqlx.DB) port.MatchRecordRepository {
	return &matchRecordRepo{db: db}
}

// Upsert stores the invoice's single match record. An existing record keeps
// its id and creation time.
func (r *matchRecordRepo) Upsert(ctx context.Context, rec *domain.MatchRecord) error {
	now := time.Now().UTC()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("matchRecordRepo.Upsert marshal: %w", err)
	}

	query := `INSERT INTO match_records (id, invoice_id, status, score, source, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (invoice_id) DO UPDATE SET
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			source = EXCLUDED.source,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.InvoiceID, rec.Status, rec.Score, rec.Source, data, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("matchRecordRepo.Upsert: %w", err)
	}
	return nil
}

func (r *matchRecordRepo) GetByInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.MatchRecord, error) {
	var row matchRecordRow
	err := r.db.GetContext(ctx, &row,
		"SELECT id, created_at, data FROM match_records WHERE invoice_id = $1", invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMatchRecordNotFound
		}
		return nil, fmt.Errorf("matchRecordRepo.GetByInvoice: %w", err)
	}

	var rec domain.MatchRecord
	if err := json.Unmarshal(row.Data, &rec); err != nil {
		return nil, fmt.Errorf("matchRecordRepo.GetByInvoice decode: %w", err)
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return &rec, nil
}
