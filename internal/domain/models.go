package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vendor is the supplier master record consulted by the pipeline.
type Vendor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	TaxID           string    `db:"tax_id" json:"tax_id"`
	Email           string    `db:"email" json:"email"`
	Website         string    `db:"website" json:"website"`
	BankAccount     string    `db:"bank_account" json:"bank_account"`
	RoutingNumber   string    `db:"routing_number" json:"routing_number"`
	PaymentTerms    string    `db:"payment_terms" json:"payment_terms"`
	HistoricalScore float64   `db:"historical_score" json:"historical_score"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// AgeDays returns how many whole days the vendor has existed at now.
func (v *Vendor) AgeDays(now time.Time) int {
	return int(now.Sub(v.CreatedAt).Hours() / 24)
}

// FileMeta represents an attached document stored in object storage.
type FileMeta struct {
	ID               uuid.UUID `db:"id" json:"id"`
	InvoiceID        uuid.UUID `db:"invoice_id" json:"invoice_id"`
	FileName         string    `db:"file_name" json:"file_name"`
	OriginalName     string    `db:"original_name" json:"original_name"`
	FileType         FileType  `db:"file_type" json:"file_type"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	S3Bucket         string    `db:"s3_bucket" json:"s3_bucket"`
	S3Key            string    `db:"s3_key" json:"s3_key"`
	ContentType      string    `db:"content_type" json:"content_type"`
	Hash             string    `db:"hash" json:"hash"`
	PageCount        int       `db:"page_count" json:"page_count"`
	NeedsEnhancement bool      `db:"needs_enhancement" json:"needs_enhancement"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// OrderLine is a line on a purchase order or goods receipt.
type OrderLine struct {
	Description string          `json:"description"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// PurchaseOrder is the ordering side of a three-way match.
type PurchaseOrder struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PONumber    string          `db:"po_number" json:"po_number"`
	VendorID    uuid.UUID       `db:"vendor_id" json:"vendor_id"`
	VendorName  string          `db:"vendor_name" json:"vendor_name"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Lines       json.RawMessage `db:"lines" json:"lines"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// GoodsReceipt records what was actually delivered against a purchase order.
type GoodsReceipt struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	GRNNumber  string          `db:"grn_number" json:"grn_number"`
	PONumber   string          `db:"po_number" json:"po_number"`
	Lines      json.RawMessage `db:"lines" json:"lines"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
}

// DecodeLines unmarshals raw order lines.
func DecodeLines(raw json.RawMessage) ([]OrderLine, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var lines []OrderLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
