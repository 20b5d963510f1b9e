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

type exceptionRepo struct {
	db *sqlx.DB
}

// NewExceptionRepo creates a new PostgreSQL-backed ExceptionRepository.
func NewExceptionRepo(db *sqlx.DB) port.ExceptionRepository {
	return &exceptionRepo{db: db}
}

func (r *exceptionRepo) Create(ctx context.Context, exc *domain.InvoiceException) error {
	if exc.CreatedAt.IsZero() {
		exc.CreatedAt = time.Now().UTC()
	}
	exc.UpdatedAt = exc.CreatedAt

	data, err := json.Marshal(exc)
	if err != nil {
		return fmt.Errorf("exceptionRepo.Create marshal: %w", err)
	}

	query := `INSERT INTO invoice_exceptions
		(id, invoice_id, type, severity, priority, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		exc.ID, exc.InvoiceID, exc.Type, exc.Severity, exc.Priority, exc.Status,
		data, exc.CreatedAt, exc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("exceptionRepo.Create: %w", err)
	}
	return nil
}

func (r *exceptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceException, error) {
	var data []byte
	err := r.db.GetContext(ctx, &data, "SELECT data FROM invoice_exceptions WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrExceptionNotFound
		}
		return nil, fmt.Errorf("exceptionRepo.GetByID: %w", err)
	}
	var exc domain.InvoiceException
	if err := json.Unmarshal(data, &exc); err != nil {
		return nil, fmt.Errorf("exceptionRepo.GetByID decode: %w", err)
	}
	return &exc, nil
}

func (r *exceptionRepo) Update(ctx context.Context, exc *domain.InvoiceException) error {
	exc.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(exc)
	if err != nil {
		return fmt.Errorf("exceptionRepo.Update marshal: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE invoice_exceptions SET priority = $1, status = $2, data = $3, updated_at = $4
		 WHERE id = $5`,
		exc.Priority, exc.Status, data, exc.UpdatedAt, exc.ID)
	if err != nil {
		return fmt.Errorf("exceptionRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrExceptionNotFound
	}
	return nil
}

func (r *exceptionRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceException, error) {
	var rows [][]byte
	err := r.db.SelectContext(ctx, &rows,
		"SELECT data FROM invoice_exceptions WHERE invoice_id = $1 ORDER BY created_at ASC", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("exceptionRepo.ListByInvoice: %w", err)
	}

	out := make([]domain.InvoiceException, 0, len(rows))
	for _, data := range rows {
		var exc domain.InvoiceException
		if err := json.Unmarshal(data, &exc); err != nil {
			return nil, fmt.Errorf("exceptionRepo.ListByInvoice decode: %w", err)
		}
		out = append(out, exc)
	}
	return out, nil
}
