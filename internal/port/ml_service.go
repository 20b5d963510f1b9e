package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ivms/internal/domain"
)

// FileRef points the extraction service at a stored document.
type FileRef struct {
	FileID      uuid.UUID `json:"file_id"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	URL         string    `json:"url,omitempty"`
}

// ExtractionRequest asks for enhanced field extraction.
type ExtractionRequest struct {
	InvoiceID      uuid.UUID               `json:"invoice_id"`
	Files          []FileRef               `json:"files"`
	ExistingFields []domain.ExtractedField `json:"existing_fields"`
}

// ExtractionResult carries enhanced fields. Success=false means nothing usable came back.
type ExtractionResult struct {
	Success          bool                    `json:"success"`
	Fields           []domain.ExtractedField `json:"fields"`
	Confidence       float64                 `json:"confidence"`
	LineItems        []domain.LineItem       `json:"line_items"`
	FieldConfidences map[string]float64      `json:"field_confidences"`
}

// Extractor performs enhanced extraction on low-confidence invoices.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error)
}

// MatchRequest asks for PO/GRN reconciliation of an invoice.
type MatchRequest struct {
	InvoiceID  uuid.UUID         `json:"invoice_id"`
	VendorID   *uuid.UUID        `json:"vendor_id,omitempty"`
	VendorName string            `json:"vendor_name"`
	PONumbers  []string          `json:"po_numbers"`
	LineItems  []domain.LineItem `json:"line_items"`
	Total      decimal.Decimal   `json:"total"`
	Tolerance  domain.Tolerance  `json:"tolerance"`
}

// MatchResult is the matcher's verdict, before it is stored as a MatchRecord.
type MatchResult struct {
	MatchType       domain.MatchType        `json:"match_type"`
	Status          domain.MatchStatus      `json:"status"`
	Score           float64                 `json:"score"`
	MatchedPOs      []string                `json:"matched_pos"`
	MatchedGRNs     []string                `json:"matched_grns"`
	LineMatches     []domain.LineMatch      `json:"line_matches"`
	MismatchReasons []domain.MismatchReason `json:"mismatch_reasons"`
	MatchedAmount   decimal.Decimal         `json:"matched_amount"`
	UnmatchedAmount decimal.Decimal         `json:"unmatched_amount"`
	Source          domain.MatchSource      `json:"source"`
}

// Matcher reconciles an invoice against purchase orders and receipts.
type Matcher interface {
	Match(ctx context.Context, req MatchRequest) (*MatchResult, error)
}

// FraudSignalRequest asks the external model for a fraud signal.
type FraudSignalRequest struct {
	InvoiceID          uuid.UUID           `json:"invoice_id"`
	VendorID           *uuid.UUID          `json:"vendor_id,omitempty"`
	VendorName         string              `json:"vendor_name"`
	InvoiceNumber      string              `json:"invoice_number"`
	Amount             decimal.Decimal     `json:"amount"`
	BankDetails        *domain.BankDetails `json:"bank_details,omitempty"`
	BankAccountChanged bool                `json:"bank_account_changed"`
}

// FraudFlag is one reason reported by the fraud signal.
type FraudFlag struct {
	Type     string          `json:"type"`
	Severity domain.Severity `json:"severity"`
	Detail   string          `json:"detail"`
}

// FraudSignalResult is the external fraud score (0–100). Degraded marks a fallback result.
type FraudSignalResult struct {
	Score    float64     `json:"fraud_score"`
	Flags    []FraudFlag `json:"flags"`
	Degraded bool        `json:"-"`
}

// FraudSignal augments local fraud heuristics with an external model.
type FraudSignal interface {
	Signal(ctx context.Context, req FraudSignalRequest) (*FraudSignalResult, error)
}

// CodingRequest asks for GL/cost-centre suggestions.
type CodingRequest struct {
	InvoiceID uuid.UUID         `json:"invoice_id"`
	VendorID  *uuid.UUID        `json:"vendor_id,omitempty"`
	Category  domain.Category   `json:"category"`
	LineItems []domain.LineItem `json:"line_items"`
}

// CodingResult lists suggestions ordered by descending confidence.
type CodingResult struct {
	Suggestions []domain.CodingSuggestion `json:"suggestions"`
}

// CodingAdvisor proposes GL coding for an invoice.
type CodingAdvisor interface {
	Suggest(ctx context.Context, req CodingRequest) (*CodingResult, error)
}
