package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HighValueThreshold is the total above which an invoice is high value.
var HighValueThreshold = decimal.NewFromInt(50000)

// LineItem is a single billed line on an invoice.
type LineItem struct {
	LineNumber  int             `json:"line_number"`
	Description string          `json:"description"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	GLAccount   string          `json:"gl_account,omitempty"`
	CostCenter  string          `json:"cost_center,omitempty"`
	MatchStatus MatchStatus     `json:"match_status,omitempty"`
}

// Amount returns the line total, or quantity × unit price when no total was given.
func (l LineItem) Amount() decimal.Decimal {
	if !l.LineTotal.IsZero() {
		return l.LineTotal
	}
	return l.Quantity.Mul(l.UnitPrice)
}

// ExtractedField is one value pulled from a document. Kind is drawn from a
// closed set; Name is only meaningful when Kind is FieldOther.
type ExtractedField struct {
	Kind       FieldKind        `json:"kind"`
	Name       string           `json:"name,omitempty"`
	Value      string           `json:"value"`
	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
}

// Key returns the identity of the field inside an invoice's field set.
func (f ExtractedField) Key() string {
	if f.Kind == FieldOther {
		return string(FieldOther) + ":" + f.Name
	}
	return string(f.Kind)
}

// Flags bundles the boolean risk markers set while processing.
type Flags struct {
	IsDuplicate          bool `json:"is_duplicate"`
	IsFraudSuspect       bool `json:"is_fraud_suspect"`
	HasAnomaly           bool `json:"has_anomaly"`
	BankAccountChanged   bool `json:"bank_account_changed"`
	RequiresManualReview bool `json:"requires_manual_review"`
	IsHighValue          bool `json:"is_high_value"`
}

// BankDetails are the remittance details printed on an invoice.
type BankDetails struct {
	AccountName   string `json:"account_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	RoutingNumber string `json:"routing_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
}

// RiskIndicator explains one contribution to a fraud score.
type RiskIndicator struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Points      float64  `json:"points"`
}

// CodingSuggestion is a proposed GL account and cost centre.
type CodingSuggestion struct {
	GLAccount  string  `json:"gl_account"`
	CostCenter string  `json:"cost_center,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Source     string  `json:"source"`
}

// TaxIssue is one finding from tax validation.
type TaxIssue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// TaxValidation is the persisted outcome of tax validation.
type TaxValidation struct {
	Valid       bool            `json:"valid"`
	ComputedTax decimal.Decimal `json:"computed_tax"`
	DeclaredTax decimal.Decimal `json:"declared_tax"`
	Difference  decimal.Decimal `json:"difference"`
	Issues      []TaxIssue      `json:"issues,omitempty"`
}

// AuditEntry is an append-only record of something that happened to an invoice.
type AuditEntry struct {
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// StatusChange records one transition of the status machine.
type StatusChange struct {
	From      InvoiceStatus `json:"from"`
	To        InvoiceStatus `json:"to"`
	SubStatus string        `json:"sub_status,omitempty"`
	Actor     string        `json:"actor"`
	Reason    string        `json:"reason,omitempty"`
	ChangedAt time.Time     `json:"changed_at"`
}

// Invoice is the canonical, channel-independent invoice record.
type Invoice struct {
	ID      uuid.UUID `json:"id"`
	Version int64     `json:"version"`

	InvoiceNumber string       `json:"invoice_number"`
	VendorID      *uuid.UUID   `json:"vendor_id,omitempty"`
	VendorName    string       `json:"vendor_name"`
	VendorTaxID   string       `json:"vendor_tax_id,omitempty"`
	Channel       Channel      `json:"channel"`
	DocumentType  DocumentType `json:"document_type"`

	InvoiceDate  time.Time `json:"invoice_date"`
	ReceivedDate time.Time `json:"received_date"`
	DueDate      time.Time `json:"due_date"`
	PaymentTerms string    `json:"payment_terms"`

	Currency       string          `json:"currency"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxType        string          `json:"tax_type,omitempty"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Balance        decimal.Decimal `json:"balance"`

	Category             Category         `json:"category"`
	LineItems            []LineItem       `json:"line_items"`
	ExtractedFields      []ExtractedField `json:"extracted_fields"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
	ExtractionMethod     ExtractionMethod `json:"extraction_method"`
	DocumentHash         string           `json:"document_hash,omitempty"`
	FileIDs              []uuid.UUID      `json:"file_ids,omitempty"`

	HasPO         bool        `json:"has_po"`
	PONumbers     []string    `json:"po_numbers,omitempty"`
	MatchedPOIDs  []string    `json:"matched_po_ids,omitempty"`
	MatchedGRNIDs []string    `json:"matched_grn_ids,omitempty"`
	MatchType     MatchType   `json:"match_type,omitempty"`
	MatchStatus   MatchStatus `json:"match_status,omitempty"`
	MatchScore    float64     `json:"match_score"`

	Flags          Flags           `json:"flags"`
	FraudScore     float64         `json:"fraud_score"`
	RiskIndicators []RiskIndicator `json:"risk_indicators,omitempty"`
	BankDetails    *BankDetails    `json:"bank_details,omitempty"`

	GLAccount         string             `json:"gl_account,omitempty"`
	CostCenter        string             `json:"cost_center,omitempty"`
	CodingSuggestions []CodingSuggestion `json:"coding_suggestions,omitempty"`
	CodingApplied     bool               `json:"coding_applied"`
	TaxValidation     *TaxValidation     `json:"tax_validation,omitempty"`

	AutomationScore float64 `json:"automation_score"`
	AutoApproved    bool    `json:"auto_approved"`

	Status    InvoiceStatus `json:"status"`
	SubStatus string        `json:"sub_status,omitempty"`
	Priority  Priority      `json:"priority"`
	IsUrgent  bool          `json:"is_urgent"`

	AuditTrail    []AuditEntry   `json:"audit_trail"`
	StatusHistory []StatusChange `json:"status_history"`

	SubmittedBy string    `json:"submitted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DerivedTotal returns subtotal + tax + shipping − discount.
func (inv *Invoice) DerivedTotal() decimal.Decimal {
	return inv.Subtotal.Add(inv.TaxAmount).Add(inv.ShippingAmount).Sub(inv.DiscountAmount)
}

// Recalculate restores the derived money invariants. Repositories call it on
// every save.
func (inv *Invoice) Recalculate() {
	inv.Balance = inv.TotalAmount.Sub(inv.AmountPaid)
	inv.Flags.IsHighValue = inv.TotalAmount.GreaterThan(HighValueThreshold)
}

// IsCreditMemo reports whether the document is a credit memo.
func (inv *Invoice) IsCreditMemo() bool {
	return inv.DocumentType == DocumentTypeCreditMemo
}

// AddAudit appends an audit entry.
func (inv *Invoice) AddAudit(action, actor string, details map[string]any, at time.Time) {
	inv.AuditTrail = append(inv.AuditTrail, AuditEntry{
		Action:    action,
		Actor:     actor,
		Timestamp: at,
		Details:   details,
	})
}

// TransitionTo moves the invoice to a new status. Every successful call
// appends exactly one audit entry and one status-history record.
func (inv *Invoice) TransitionTo(to InvoiceStatus, subStatus, actor, reason string, at time.Time) error {
	from := inv.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	inv.Status = to
	inv.SubStatus = subStatus
	inv.StatusHistory = append(inv.StatusHistory, StatusChange{
		From:      from,
		To:        to,
		SubStatus: subStatus,
		Actor:     actor,
		Reason:    reason,
		ChangedAt: at,
	})
	details := map[string]any{"from": string(from), "to": string(to)}
	if subStatus != "" {
		details["sub_status"] = subStatus
	}
	if reason != "" {
		details["reason"] = reason
	}
	inv.AddAudit(AuditStatusChanged, actor, details, at)
	return nil
}

// Field returns the extracted field with the given kind, if present.
func (inv *Invoice) Field(kind FieldKind) (ExtractedField, bool) {
	for _, f := range inv.ExtractedFields {
		if f.Kind == kind {
			return f, true
		}
	}
	return ExtractedField{}, false
}

// MergeFields overlays fields onto the invoice's field set. An incoming field
// replaces an existing one with the same key only when its confidence is higher.
func (inv *Invoice) MergeFields(fields []ExtractedField) {
	idx := make(map[string]int, len(inv.ExtractedFields))
	for i, f := range inv.ExtractedFields {
		idx[f.Key()] = i
	}
	for _, f := range fields {
		if i, ok := idx[f.Key()]; ok {
			if f.Confidence > inv.ExtractedFields[i].Confidence {
				inv.ExtractedFields[i] = f
			}
			continue
		}
		idx[f.Key()] = len(inv.ExtractedFields)
		inv.ExtractedFields = append(inv.ExtractedFields, f)
	}
}

// MobileReviewConfidence is the extraction confidence below which mobile
// captures need a human look.
const MobileReviewConfidence = 0.8

// LowConfidenceCapture reports whether the invoice is a mobile capture read
// with less than MobileReviewConfidence.
func (inv *Invoice) LowConfidenceCapture() bool {
	return inv.Channel == ChannelMobile && inv.ExtractionConfidence < MobileReviewConfidence
}

// IsCoded reports whether a GL account is already assigned.
func (inv *Invoice) IsCoded() bool {
	return inv.GLAccount != ""
}
