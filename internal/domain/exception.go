package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceException is a trackable record of a blocking or notable finding.
type InvoiceException struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	Type             ExceptionType   `json:"type"`
	Severity         Severity        `json:"severity"`
	Priority         int             `json:"priority"`
	Status           ExceptionStatus `json:"status"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	FinancialImpact  decimal.Decimal `json:"financial_impact"`
	SuggestedActions []string        `json:"suggested_actions"`
	Details          map[string]any  `json:"details,omitempty"`
	ResponseDueAt    time.Time       `json:"response_due_at"`
	ResolutionDueAt  time.Time       `json:"resolution_due_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy       string          `json:"resolved_by,omitempty"`
	Resolution       string          `json:"resolution,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsOpen reports whether the exception still needs attention.
func (e *InvoiceException) IsOpen() bool {
	return e.Status == ExceptionStatusOpen || e.Status == ExceptionStatusInProgress
}

// IsBreached reports whether the resolution deadline has passed while open.
func (e *InvoiceException) IsBreached(now time.Time) bool {
	return e.IsOpen() && now.After(e.ResolutionDueAt)
}
