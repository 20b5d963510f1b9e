package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AutoMatchThreshold is the minimum score for straight-through matching.
const AutoMatchThreshold = 0.95

// Tolerance is the allowed variance before a mismatch is raised.
type Tolerance struct {
	PricePercent    decimal.Decimal `json:"price_percent"`
	QuantityPercent decimal.Decimal `json:"quantity_percent"`
	AmountAbsolute  decimal.Decimal `json:"amount_absolute"`
}

// DefaultTolerance returns 2% price, 5% quantity and $10 absolute amount variance.
func DefaultTolerance() Tolerance {
	return Tolerance{
		PricePercent:    decimal.NewFromInt(2),
		QuantityPercent: decimal.NewFromInt(5),
		AmountAbsolute:  decimal.NewFromInt(10),
	}
}

// LineMatch is the reconciliation detail for one invoice line.
type LineMatch struct {
	LineNumber       int             `json:"line_number"`
	Description      string          `json:"description"`
	InvoiceQuantity  decimal.Decimal `json:"invoice_quantity"`
	InvoicePrice     decimal.Decimal `json:"invoice_price"`
	POQuantity       decimal.Decimal `json:"po_quantity"`
	POPrice          decimal.Decimal `json:"po_price"`
	GRNQuantity      decimal.Decimal `json:"grn_quantity"`
	PriceVariance    float64         `json:"price_variance"`
	QuantityVariance float64         `json:"quantity_variance"`
	Status           MatchStatus     `json:"status"`
	Score            float64         `json:"score"`
}

// MismatchReason is a typed discrepancy found while matching.
type MismatchReason struct {
	Type        MismatchType `json:"type"`
	Severity    Severity     `json:"severity"`
	Description string       `json:"description"`
	LineNumber  int          `json:"line_number,omitempty"`
	Expected    string       `json:"expected,omitempty"`
	Actual      string       `json:"actual,omitempty"`
	Resolved    bool         `json:"resolved"`
}

// MatchRecord is the reconciliation outcome for one invoice.
type MatchRecord struct {
	ID                uuid.UUID        `json:"id"`
	InvoiceID         uuid.UUID        `json:"invoice_id"`
	MatchType         MatchType        `json:"match_type"`
	Status            MatchStatus      `json:"status"`
	Score             float64          `json:"score"`
	MatchedPOs        []string         `json:"matched_pos"`
	MatchedGRNs       []string         `json:"matched_grns"`
	LineMatches       []LineMatch      `json:"line_matches"`
	MismatchReasons   []MismatchReason `json:"mismatch_reasons"`
	MatchedAmount     decimal.Decimal  `json:"matched_amount"`
	UnmatchedAmount   decimal.Decimal  `json:"unmatched_amount"`
	Tolerance         Tolerance        `json:"tolerance"`
	Source            MatchSource      `json:"source"`
	AutoMatchEligible bool             `json:"auto_match_eligible"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// UnresolvedMismatches counts mismatch reasons that are still open.
func (m *MatchRecord) UnresolvedMismatches() int {
	n := 0
	for _, r := range m.MismatchReasons {
		if !r.Resolved {
			n++
		}
	}
	return n
}

// EvaluateAutoMatch recomputes AutoMatchEligible and returns it.
func (m *MatchRecord) EvaluateAutoMatch() bool {
	m.AutoMatchEligible = m.Score >= AutoMatchThreshold && m.UnresolvedMismatches() == 0
	return m.AutoMatchEligible
}

// BlockingMismatches returns the mismatches that must raise exceptions.
func (m *MatchRecord) BlockingMismatches() []MismatchReason {
	var out []MismatchReason
	for _, r := range m.MismatchReasons {
		if !r.Resolved && r.Severity.IsBlocking() {
			out = append(out, r)
		}
	}
	return out
}
