package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ivms/internal/port"
)

const maxDuplicateCandidates = 50

type duplicateFinderRepo struct {
	db *sqlx.DB
}

// NewDuplicateFinderRepo creates a new PostgreSQL-backed DuplicateInvoiceFinder.
func NewDuplicateFinderRepo(db *sqlx.DB) port.DuplicateInvoiceFinder {
	return &duplicateFinderRepo{db: db}
}

func (r *duplicateFinderRepo) FindDuplicateCandidates(ctx context.Context, q port.DuplicateQuery) ([]port.DuplicateCandidate, error) {
	var matches []port.DuplicateCandidate
	err := r.db.SelectContext(ctx, &matches, `
		SELECT id, invoice_number, total_amount, invoice_date, document_hash, status
		FROM invoices
		WHERE vendor_id = $1
		  AND id != $2
		  AND invoice_date BETWEEN $3 AND $4
		  AND (
		      invoice_number = $5
		      OR total_amount BETWEEN $6 AND $7
		      OR ($8 != '' AND document_hash = $8)
		  )
		ORDER BY invoice_date DESC
		LIMIT $9`,
		q.VendorID, q.ExcludeID, q.From, q.To,
		q.InvoiceNumber, q.AmountLow, q.AmountHigh, q.DocumentHash,
		maxDuplicateCandidates,
	)
	if err != nil {
		return nil, fmt.Errorf("duplicateFinderRepo.FindDuplicateCandidates: %w", err)
	}
	return matches, nil
}
