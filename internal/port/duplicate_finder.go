package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DuplicateQuery narrows prior invoices to one vendor and a date window. A
// candidate qualifies when it shares the invoice number, falls inside the
// amount band, or carries the same document hash.
type DuplicateQuery struct {
	VendorID      uuid.UUID
	ExcludeID     uuid.UUID
	From          time.Time
	To            time.Time
	InvoiceNumber string
	AmountLow     decimal.Decimal
	AmountHigh    decimal.Decimal
	DocumentHash  string
}

// DuplicateCandidate is the slice of a prior invoice needed for similarity scoring.
type DuplicateCandidate struct {
	ID            uuid.UUID       `db:"id"`
	InvoiceNumber string          `db:"invoice_number"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	InvoiceDate   time.Time       `db:"invoice_date"`
	DocumentHash  string          `db:"document_hash"`
	Status        string          `db:"status"`
}

// DuplicateInvoiceFinder looks up prior invoices that may duplicate a new one.
type DuplicateInvoiceFinder interface {
	FindDuplicateCandidates(ctx context.Context, q DuplicateQuery) ([]DuplicateCandidate, error)
}
