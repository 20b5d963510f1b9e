// Package anomaly flags invoices whose dates, amounts or terms look wrong.
package anomaly

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ivms/internal/domain"
)

// Anomaly types.
const (
	TypeFutureDate        = "future_date"
	TypeStaleInvoice      = "stale_invoice"
	TypeNegativeAmount    = "negative_amount"
	TypeShortPaymentTerms = "short_payment_terms"
)

// Config holds the anomaly thresholds.
type Config struct {
	MaxAgeDays     int
	ShortTermsDays int
	HighValue      decimal.Decimal
}

// DefaultConfig returns a 180-day age limit and 15-day short terms on
// invoices above 50,000.
func DefaultConfig() Config {
	return Config{MaxAgeDays: 180, ShortTermsDays: 15, HighValue: domain.HighValueThreshold}
}

// Anomaly is one finding.
type Anomaly struct {
	Type        string          `json:"type"`
	Severity    domain.Severity `json:"severity"`
	Description string          `json:"description"`
}

// Result lists the findings for one invoice.
type Result struct {
	HasAnomaly bool      `json:"has_anomaly"`
	Anomalies  []Anomaly `json:"anomalies"`
}

// Reasons returns the finding descriptions.
func (r *Result) Reasons() []string {
	out := make([]string, 0, len(r.Anomalies))
	for _, a := range r.Anomalies {
		out = append(out, a.Description)
	}
	return out
}

// Checker runs the anomaly rules.
type Checker struct {
	cfg Config
	now func() time.Time
}

// NewChecker creates a Checker.
func NewChecker(cfg Config) *Checker {
	return &Checker{cfg: cfg, now: time.Now}
}

// WithClock overrides the checker's notion of now.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Check evaluates every rule.
func (c *Checker) Check(inv *domain.Invoice) *Result {
	res := &Result{}
	now := c.now()

	if !inv.InvoiceDate.IsZero() && inv.InvoiceDate.After(now) {
		res.add(TypeFutureDate, domain.SeverityHigh,
			fmt.Sprintf("invoice date %s is in the future", inv.InvoiceDate.Format("2006-01-02")))
	}

	if !inv.InvoiceDate.IsZero() {
		ref := inv.ReceivedDate
		if ref.IsZero() {
			ref = now
		}
		if age := int(ref.Sub(inv.InvoiceDate).Hours() / 24); age > c.cfg.MaxAgeDays {
			res.add(TypeStaleInvoice, domain.SeverityMedium,
				fmt.Sprintf("invoice is older than 6 months (%d days before receipt)", age))
		}
	}

	if inv.TotalAmount.IsNegative() && !inv.IsCreditMemo() {
		res.add(TypeNegativeAmount, domain.SeverityHigh,
			fmt.Sprintf("negative total %s on a non-credit-memo invoice", inv.TotalAmount.StringFixed(2)))
	}

	if inv.TotalAmount.GreaterThan(c.cfg.HighValue) {
		if days := termDays(inv); days < c.cfg.ShortTermsDays {
			res.add(TypeShortPaymentTerms, domain.SeverityMedium,
				fmt.Sprintf("payment terms of %d days on a high-value invoice", days))
		}
	}

	res.HasAnomaly = len(res.Anomalies) > 0
	return res
}

func (r *Result) add(typ string, sev domain.Severity, desc string) {
	r.Anomalies = append(r.Anomalies, Anomaly{Type: typ, Severity: sev, Description: desc})
}

// termDays prefers the actual due-date gap and falls back to the terms table.
func termDays(inv *domain.Invoice) int {
	if !inv.DueDate.IsZero() && !inv.InvoiceDate.IsZero() {
		return int(inv.DueDate.Sub(inv.InvoiceDate).Hours() / 24)
	}
	days, _ := domain.PaymentTermDays(inv.PaymentTerms)
	return days
}
