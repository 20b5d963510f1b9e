// Package tax checks the declared tax on an invoice.
package tax

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"ivms/internal/domain"
)

// Issue codes.
const (
	IssueCalculation    = "tax_calculation"
	IssueTaxIDFormat    = "tax_id_format"
	IssueMissingTaxType = "missing_tax_type"
	IssueMissingRate    = "missing_tax_rate"
)

var (
	einPattern     = regexp.MustCompile(`^\d{2}-\d{7}$`)
	genericPattern = regexp.MustCompile(`^[A-Za-z0-9-]{5,20}$`)
	hundred        = decimal.NewFromInt(100)
)

// Config holds the allowed difference between computed and declared tax.
type Config struct {
	Tolerance decimal.Decimal
}

// DefaultConfig allows a $1 difference.
func DefaultConfig() Config {
	return Config{Tolerance: decimal.NewFromInt(1)}
}

// Validator recomputes tax from subtotal and rate.
type Validator struct {
	cfg Config
}

// NewValidator creates a Validator.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate never fails; findings are reported as issues. Valid is false only
// when an error-severity issue was raised.
func (v *Validator) Validate(inv *domain.Invoice) *domain.TaxValidation {
	res := &domain.TaxValidation{
		DeclaredTax: inv.TaxAmount,
		ComputedTax: decimal.Zero,
		Difference:  decimal.Zero,
	}

	// A declared amount with no rate is checked against a computed zero.
	if inv.TaxRate.IsPositive() || inv.TaxAmount.IsPositive() {
		res.ComputedTax = inv.Subtotal.Mul(inv.TaxRate).Div(hundred).Round(2)
		res.Difference = res.ComputedTax.Sub(inv.TaxAmount).Abs()
		if res.Difference.GreaterThan(v.cfg.Tolerance) {
			res.Issues = append(res.Issues, domain.TaxIssue{
				Code:     IssueCalculation,
				Severity: domain.SeverityError,
				Message: fmt.Sprintf("declared tax %s differs from computed tax %s by %s",
					inv.TaxAmount.StringFixed(2), res.ComputedTax.StringFixed(2), res.Difference.StringFixed(2)),
			})
		}
	}
	if inv.TaxAmount.IsPositive() && inv.TaxRate.IsZero() {
		res.Issues = append(res.Issues, domain.TaxIssue{
			Code:     IssueMissingRate,
			Severity: domain.SeverityInfo,
			Message:  "tax declared without a tax rate",
		})
	}

	if inv.VendorTaxID != "" && !einPattern.MatchString(inv.VendorTaxID) && !genericPattern.MatchString(inv.VendorTaxID) {
		res.Issues = append(res.Issues, domain.TaxIssue{
			Code:     IssueTaxIDFormat,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("vendor tax id %q has an unrecognised format", inv.VendorTaxID),
		})
	}

	if inv.TaxAmount.IsPositive() && inv.TaxType == "" {
		res.Issues = append(res.Issues, domain.TaxIssue{
			Code:     IssueMissingTaxType,
			Severity: domain.SeverityWarning,
			Message:  "tax amount present but tax type is missing",
		})
	}

	res.Valid = true
	for _, is := range res.Issues {
		if is.Severity == domain.SeverityError {
			res.Valid = false
		}
	}
	return res
}
