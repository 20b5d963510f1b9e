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

// invoiceRow is the stored form of an invoice. The full record lives in the
// data document; version is authoritative in its own column.
type invoiceRow struct {
	Version int64  `db:"version"`
	Data    []byte `db:"data"`
}

func (r invoiceRow) decode() (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := json.Unmarshal(r.Data, &inv); err != nil {
		return nil, err
	}
	inv.Version = r.Version
	return &inv, nil
}

type invoiceRepo struct {
	db *sqlx.DB
}

// NewInvoiceRepo creates a new PostgreSQL-backed InvoiceRepository.
func NewInvoiceRepo(db *sqlx.DB) port.InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Version == 0 {
		inv.Version = 1
	}
	inv.Recalculate()

	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("invoiceRepo.Create marshal: %w", err)
	}

	query := `INSERT INTO invoices (
		id, version, invoice_number, vendor_id, channel, status, sub_status,
		total_amount, amount_paid, invoice_date, received_date, document_hash,
		data, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11, $12,
		$13, $14, $15
	)`

	_, err = r.db.ExecContext(ctx, query,
		inv.ID, inv.Version, inv.InvoiceNumber, inv.VendorID, inv.Channel, inv.Status, inv.SubStatus,
		inv.TotalAmount, inv.AmountPaid, inv.InvoiceDate, inv.ReceivedDate, inv.DocumentHash,
		data, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("invoiceRepo.Create: %w", err)
	}
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var row invoiceRow
	err := r.db.GetContext(ctx, &row, "SELECT version, data FROM invoices WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("invoiceRepo.GetByID: %w", err)
	}
	inv, err := row.decode()
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.GetByID decode: %w", err)
	}
	return inv, nil
}

// Update writes inv only if the stored version still equals inv.Version.
func (r *invoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	prev := inv.Version
	inv.Version = prev + 1
	inv.UpdatedAt = time.Now().UTC()
	inv.Recalculate()

	data, err := json.Marshal(inv)
	if err != nil {
		inv.Version = prev
		return fmt.Errorf("invoiceRepo.Update marshal: %w", err)
	}

	query := `UPDATE invoices SET
		version = $1, invoice_number = $2, vendor_id = $3, status = $4, sub_status = $5,
		total_amount = $6, amount_paid = $7, invoice_date = $8, document_hash = $9,
		data = $10, updated_at = $11
		WHERE id = $12 AND version = $13`

	result, err := r.db.ExecContext(ctx, query,
		inv.Version, inv.InvoiceNumber, inv.VendorID, inv.Status, inv.SubStatus,
		inv.TotalAmount, inv.AmountPaid, inv.InvoiceDate, inv.DocumentHash,
		data, inv.UpdatedAt,
		inv.ID, prev)
	if err != nil {
		inv.Version = prev
		return fmt.Errorf("invoiceRepo.Update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		inv.Version = prev
		return fmt.Errorf("invoiceRepo.Update %s: %w", inv.ID, domain.ErrConcurrentModification)
	}
	return nil
}

func (r *invoiceRepo) ListByStatus(ctx context.Context, statuses []domain.InvoiceStatus, limit int) ([]domain.Invoice, error) {
	var rows []invoiceRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT version, data FROM invoices
		 WHERE status = ANY($1)
		 ORDER BY received_date ASC LIMIT $2`,
		statusStrings(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.ListByStatus: %w", err)
	}
	return decodeInvoices(rows, "invoiceRepo.ListByStatus")
}

// ClaimSubmitted flips the status column of the oldest submitted invoices to
// processing. The JSON document keeps its submitted status until the pipeline
// saves it, so the run still starts from submitted.
func (r *invoiceRepo) ClaimSubmitted(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`UPDATE invoices SET status = $1, updated_at = NOW()
		 WHERE id IN (
			SELECT id FROM invoices WHERE status = $2
			ORDER BY received_date ASC LIMIT $3
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id`,
		domain.StatusProcessing, domain.StatusSubmitted, limit)
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.ClaimSubmitted: %w", err)
	}
	return ids, nil
}

// ReleaseClaim resets the status column to submitted while the document still
// says submitted, i.e. the pipeline never saved its processing state.
func (r *invoiceRepo) ReleaseClaim(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3 AND data->>'status' = $1`,
		domain.StatusSubmitted, id, domain.StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("invoiceRepo.ReleaseClaim: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListPaidByVendor returns the vendor's most recent paid invoices, newest first.
func (r *invoiceRepo) ListPaidByVendor(ctx context.Context, vendorID, excludeID uuid.UUID, limit int) ([]domain.Invoice, error) {
	var rows []invoiceRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT version, data FROM invoices
		 WHERE vendor_id = $1 AND id != $2 AND status = $3
		 ORDER BY invoice_date DESC LIMIT $4`,
		vendorID, excludeID, domain.StatusPaid, limit)
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.ListPaidByVendor: %w", err)
	}
	return decodeInvoices(rows, "invoiceRepo.ListPaidByVendor")
}

func decodeInvoices(rows []invoiceRow, op string) ([]domain.Invoice, error) {
	out := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		inv, err := row.decode()
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", op, err)
		}
		out = append(out, *inv)
	}
	return out, nil
}
