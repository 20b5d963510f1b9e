// Package intake turns channel-specific submissions into canonical invoices.
package intake

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ivms/internal/domain"
)

// Payload is the raw submission as received from a channel. Zero values mean
// "not supplied"; TotalAmount is a pointer because zero is a valid total.
type Payload struct {
	InvoiceNumber string              `json:"invoice_number"`
	VendorID      *uuid.UUID          `json:"vendor_id,omitempty"`
	VendorName    string              `json:"vendor_name"`
	VendorTaxID   string              `json:"vendor_tax_id"`
	DocumentType  domain.DocumentType `json:"document_type"`

	// Email channel.
	SenderEmail string `json:"sender_email"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`

	InvoiceDate  *time.Time `json:"invoice_date,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	PaymentTerms string     `json:"payment_terms"`

	Currency       string           `json:"currency"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	TaxRate        decimal.Decimal  `json:"tax_rate"`
	TaxType        string           `json:"tax_type"`
	ShippingAmount decimal.Decimal  `json:"shipping_amount"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	TotalAmount    *decimal.Decimal `json:"total_amount,omitempty"`
	AmountPaid     decimal.Decimal  `json:"amount_paid"`

	Category    domain.Category     `json:"category"`
	PONumbers   []string            `json:"po_numbers"`
	LineItems   []domain.LineItem   `json:"line_items"`
	BankDetails *domain.BankDetails `json:"bank_details,omitempty"`
	GLAccount   string              `json:"gl_account"`
	CostCenter  string              `json:"cost_center"`
	SubmittedBy string              `json:"submitted_by"`
}

// AttachedFile is one uploaded document.
type AttachedFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// PreparedFile is an attached file after hashing and recognition.
type PreparedFile struct {
	AttachedFile
	FileType         domain.FileType
	Hash             string
	NeedsEnhancement bool
	Text             string
	Confidence       float64
	Pages            int
	Recognized       bool
}

// Normalized is the canonical, unsaved invoice plus its prepared files.
type Normalized struct {
	Invoice *domain.Invoice
	Files   []PreparedFile
}

// structuredHeader holds the fields api and edi submissions must carry.
type structuredHeader struct {
	InvoiceNumber string `json:"invoice_number" validate:"required"`
	VendorID      string `json:"vendor_id" validate:"required,uuid"`
	TotalAmount   string `json:"total_amount" validate:"required,numeric"`
}

func headerOf(p Payload) structuredHeader {
	h := structuredHeader{InvoiceNumber: p.InvoiceNumber}
	if p.VendorID != nil && *p.VendorID != uuid.Nil {
		h.VendorID = p.VendorID.String()
	}
	if p.TotalAmount != nil {
		h.TotalAmount = p.TotalAmount.String()
	}
	return h
}
