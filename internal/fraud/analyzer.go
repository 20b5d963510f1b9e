package fraud

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/duplicate"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Analyzer indicator types.
const (
	IndicatorDuplicate      = "DUPLICATE_INVOICE"
	IndicatorPriceAnomaly   = "PRICE_ANOMALY"
	IndicatorNewVendor      = "NEW_VENDOR"
	IndicatorRushPayment    = "RUSH_PAYMENT"
	IndicatorRound          = "ROUND_AMOUNT"
	IndicatorPatternAnomaly = "PATTERN_ANOMALY"
)

var genericTerms = []string{"services", "consulting", "misc", "other", "various"}

// Weights are the per-factor contributions to the analyzer score.
type Weights struct {
	Duplicate float64
	Price     float64
	Rush      float64
	Round     float64
	NewVendor float64
	Frequency float64
}

// DefaultWeights returns the standard factor weights.
func DefaultWeights() Weights {
	return Weights{Duplicate: 0.35, Price: 0.25, Rush: 0.15, Round: 0.05, NewVendor: 0.10, Frequency: 0.10}
}

// Validate checks that the weights sum to 1.
func (w Weights) Validate() error {
	sum := w.Duplicate + w.Price + w.Rush + w.Round + w.NewVendor + w.Frequency
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: sum is %.4f", domain.ErrInvalidWeights, sum)
	}
	return nil
}

// AnalyzerConfig holds the analyzer thresholds.
type AnalyzerConfig struct {
	Weights          Weights
	PriceVariancePct float64
	HistoryLimit     int
	MinHistory       int
	NewVendorDays    int
	RushPaymentDays  int
	RoundThreshold   decimal.Decimal
}

// DefaultAnalyzerConfig returns the standard analyzer configuration.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Weights:          DefaultWeights(),
		PriceVariancePct: 20,
		HistoryLimit:     20,
		MinHistory:       3,
		NewVendorDays:    30,
		RushPaymentDays:  3,
		RoundThreshold:   decimal.NewFromInt(1000),
	}
}

// DuplicateChecker is the slice of the duplicate detector the analyzer needs.
type DuplicateChecker interface {
	Check(ctx context.Context, inv *domain.Invoice) (*duplicate.Result, error)
}

// DuplicateCheck is the duplicate factor.
type DuplicateCheck struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Count       int     `json:"duplicate_count"`
	Confidence  float64 `json:"confidence"`
}

// PriceAnalysis compares the invoice total with the vendor's paid history.
type PriceAnalysis struct {
	HasAnomaly      bool            `json:"has_anomaly"`
	Reason          string          `json:"reason,omitempty"`
	CurrentAmount   float64         `json:"current_amount"`
	AverageAmount   float64         `json:"average_amount"`
	StdDeviation    float64         `json:"standard_deviation"`
	ZScore          float64         `json:"z_score"`
	VariancePercent float64         `json:"variance_percent"`
	Direction       string          `json:"direction,omitempty"`
	Confidence      float64         `json:"confidence"`
	Risk            domain.Severity `json:"risk,omitempty"`
}

// VendorAnalysis flags young vendor accounts.
type VendorAnalysis struct {
	IsNewVendor bool    `json:"is_new_vendor"`
	AgeDays     int     `json:"vendor_age_days"`
	Reason      string  `json:"reason,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// PatternAnalysis flags unusual submission patterns.
type PatternAnalysis struct {
	Weekend      bool            `json:"has_weekend_submission"`
	AfterHours   bool            `json:"has_after_hours_submission"`
	GenericItems bool            `json:"unusual_line_items"`
	Count        int             `json:"anomaly_count"`
	HasAnomaly   bool            `json:"has_anomaly"`
	Confidence   float64         `json:"confidence"`
	Risk         domain.Severity `json:"risk"`
}

// RushCheck flags payment requested at short notice.
type RushCheck struct {
	IsRush       bool    `json:"is_rush"`
	DaysUntilDue int     `json:"days_until_due"`
	Confidence   float64 `json:"confidence"`
}

// RoundCheck flags invoices made only of round amounts.
type RoundCheck struct {
	IsRound       bool    `json:"is_round"`
	AllItemsRound bool    `json:"all_items_round"`
	IsSuspicious  bool    `json:"is_suspicious"`
	Confidence    float64 `json:"confidence"`
}

// Indicator is one fired factor.
type Indicator struct {
	Type        string          `json:"type"`
	Severity    domain.Severity `json:"severity"`
	Description string          `json:"description"`
	Confidence  float64         `json:"confidence"`
}

// Recommendation is a suggested reviewer action.
type Recommendation struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

// Analysis is the full fraud analysis of one invoice.
type Analysis struct {
	InvoiceID       uuid.UUID        `json:"invoice_id"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
	Duplicate       DuplicateCheck   `json:"duplicate_check"`
	Price           PriceAnalysis    `json:"price_analysis"`
	Vendor          VendorAnalysis   `json:"vendor_analysis"`
	Pattern         PatternAnalysis  `json:"pattern_analysis"`
	Rush            RushCheck        `json:"rush_payment_check"`
	Round           RoundCheck       `json:"round_amount_check"`
	Score           float64          `json:"anomaly_score"`
	RiskLevel       domain.RiskLevel `json:"risk_level"`
	Indicators      []Indicator      `json:"fraud_indicators"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Analyzer is the weighted multi-factor fraud model.
type Analyzer struct {
	invoices port.InvoiceRepository
	vendors  port.VendorRepository
	dup      DuplicateChecker
	cfg      AnalyzerConfig
	now      func() time.Time
	log      *zap.Logger
}

// NewAnalyzer creates an Analyzer. It fails when the weights do not sum to 1.
func NewAnalyzer(invoices port.InvoiceRepository, vendors port.VendorRepository, dup DuplicateChecker, cfg AnalyzerConfig, log *zap.Logger) (*Analyzer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{
		invoices: invoices,
		vendors:  vendors,
		dup:      dup,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.OrNop(log),
	}, nil
}

// WithClock overrides the analyzer's notion of now.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze runs every factor against the invoice.
func (a *Analyzer) Analyze(ctx context.Context, inv *domain.Invoice) (*Analysis, error) {
	now := a.now().UTC()
	out := &Analysis{InvoiceID: inv.ID, AnalyzedAt: now}

	dup, err := a.dup.Check(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("fraud.Analyze: %w", err)
	}
	out.Duplicate = DuplicateCheck{IsDuplicate: dup.IsDuplicate, Count: len(dup.Matches)}
	if dup.IsDuplicate {
		out.Duplicate.Confidence = 0.85
	}

	if out.Price, err = a.analyzePrice(ctx, inv); err != nil {
		return nil, fmt.Errorf("fraud.Analyze: %w", err)
	}
	if out.Vendor, err = a.analyzeVendor(ctx, inv, now); err != nil {
		return nil, fmt.Errorf("fraud.Analyze: %w", err)
	}
	out.Pattern = analyzePatterns(inv)
	out.Rush = a.checkRush(inv, now)
	out.Round = a.checkRound(inv)

	out.Score = a.score(out)
	out.RiskLevel = a.RiskLevel(out.Score)
	out.Indicators = indicators(out)
	out.Recommendations = recommendations(out)

	a.log.Debug("fraud.Analyze: analyzed",
		zap.String("invoice_id", inv.ID.String()),
		zap.Float64("score", out.Score),
		zap.String("risk_level", string(out.RiskLevel)))
	return out, nil
}

// RiskLevel buckets an analyzer score.
func (a *Analyzer) RiskLevel(score float64) domain.RiskLevel {
	switch {
	case score >= 0.7:
		return domain.RiskCritical
	case score >= 0.5:
		return domain.RiskHigh
	case score >= 0.3:
		return domain.RiskMedium
	case score >= 0.1:
		return domain.RiskLow
	default:
		return domain.RiskNone
	}
}

func (a *Analyzer) analyzePrice(ctx context.Context, inv *domain.Invoice) (PriceAnalysis, error) {
	if inv.VendorID == nil {
		return PriceAnalysis{Reason: "No historical data for comparison"}, nil
	}
	history, err := a.invoices.ListPaidByVendor(ctx, *inv.VendorID, inv.ID, a.cfg.HistoryLimit)
	if err != nil {
		return PriceAnalysis{}, err
	}
	if len(history) < a.cfg.MinHistory {
		return PriceAnalysis{Reason: "Insufficient historical data"}, nil
	}

	var amounts []float64
	for _, h := range history {
		if !h.TotalAmount.IsZero() {
			amounts = append(amounts, h.TotalAmount.InexactFloat64())
		}
	}
	if len(amounts) == 0 {
		return PriceAnalysis{Reason: "No amount data available"}, nil
	}

	mean, std := meanStd(amounts)
	current := inv.TotalAmount.InexactFloat64()
	z := 0.0
	if std > 0 {
		z = math.Abs(current-mean) / std
	}
	pct := 0.0
	if mean > 0 {
		pct = (current - mean) / mean * 100
	}

	res := PriceAnalysis{
		CurrentAmount:   current,
		AverageAmount:   round(mean, 2),
		StdDeviation:    round(std, 2),
		ZScore:          round(z, 2),
		VariancePercent: round(pct, 1),
		Direction:       "below",
		Risk:            domain.SeverityInfo,
	}
	if pct > 0 {
		res.Direction = "above"
	}
	res.HasAnomaly = z > 2 || math.Abs(pct) > a.cfg.PriceVariancePct
	if res.HasAnomaly {
		res.Confidence = math.Min(0.9, z*0.3)
		res.Risk = domain.SeverityMedium
		if z > 3 {
			res.Risk = domain.SeverityHigh
		}
	}
	return res, nil
}

func (a *Analyzer) analyzeVendor(ctx context.Context, inv *domain.Invoice, now time.Time) (VendorAnalysis, error) {
	if inv.VendorID == nil {
		return VendorAnalysis{Reason: "Vendor data not available"}, nil
	}
	v, err := a.vendors.GetByID(ctx, *inv.VendorID)
	if errors.Is(err, domain.ErrVendorNotFound) {
		return VendorAnalysis{Reason: "Vendor data not available"}, nil
	}
	if err != nil {
		return VendorAnalysis{}, err
	}

	age := 365
	if !v.CreatedAt.IsZero() {
		age = v.AgeDays(now)
	}
	res := VendorAnalysis{AgeDays: age, IsNewVendor: age < a.cfg.NewVendorDays}
	if res.IsNewVendor {
		res.Confidence = 0.6
	}
	return res, nil
}

func analyzePatterns(inv *domain.Invoice) PatternAnalysis {
	var p PatternAnalysis
	if !inv.CreatedAt.IsZero() {
		wd := inv.CreatedAt.Weekday()
		p.Weekend = wd == time.Saturday || wd == time.Sunday
		h := inv.CreatedAt.Hour()
		p.AfterHours = h < 6 || h > 22
	}
	if len(inv.LineItems) > 0 {
		generic := 0
		for _, li := range inv.LineItems {
			desc := strings.ToLower(li.Description)
			for _, term := range genericTerms {
				if strings.Contains(desc, term) {
					generic++
					break
				}
			}
		}
		p.GenericItems = generic == len(inv.LineItems)
	}

	for _, fired := range []bool{p.Weekend, p.AfterHours, p.GenericItems} {
		if fired {
			p.Count++
		}
	}
	p.HasAnomaly = p.Count >= 2
	p.Risk = domain.SeverityLow
	if p.HasAnomaly {
		p.Confidence = 0.5 + float64(p.Count)*0.1
		p.Risk = domain.SeverityMedium
	}
	if p.Count >= 3 {
		p.Risk = domain.SeverityHigh
	}
	return p
}

func (a *Analyzer) checkRush(inv *domain.Invoice, now time.Time) RushCheck {
	if inv.DueDate.IsZero() {
		return RushCheck{}
	}
	days := int(math.Floor(inv.DueDate.Sub(now).Hours() / 24))
	res := RushCheck{DaysUntilDue: days, IsRush: days <= a.cfg.RushPaymentDays}
	if res.IsRush {
		res.Confidence = 0.6
	}
	return res
}

var (
	hundred = decimal.NewFromInt(100)
	ten     = decimal.NewFromInt(10)
)

func (a *Analyzer) checkRound(inv *domain.Invoice) RoundCheck {
	res := RoundCheck{
		IsRound: inv.TotalAmount.GreaterThanOrEqual(a.cfg.RoundThreshold) && inv.TotalAmount.Mod(hundred).IsZero(),
	}
	if len(inv.LineItems) > 0 {
		res.AllItemsRound = true
		for _, li := range inv.LineItems {
			if !li.Amount().Mod(ten).IsZero() {
				res.AllItemsRound = false
				break
			}
		}
	}
	res.IsSuspicious = res.IsRound && res.AllItemsRound
	if res.IsSuspicious {
		res.Confidence = 0.4
	}
	return res
}

func (a *Analyzer) score(an *Analysis) float64 {
	w := a.cfg.Weights
	s := 0.0
	if an.Duplicate.IsDuplicate {
		s += w.Duplicate * an.Duplicate.Confidence
	}
	if an.Price.HasAnomaly {
		s += w.Price * an.Price.Confidence
	}
	if an.Rush.IsRush {
		s += w.Rush * an.Rush.Confidence
	}
	if an.Round.IsSuspicious {
		s += w.Round * an.Round.Confidence
	}
	if an.Vendor.IsNewVendor {
		s += w.NewVendor * an.Vendor.Confidence
	}
	if an.Pattern.HasAnomaly {
		s += w.Frequency * an.Pattern.Confidence
	}
	return math.Min(1, s)
}

func indicators(an *Analysis) []Indicator {
	var out []Indicator
	if an.Duplicate.IsDuplicate {
		out = append(out, Indicator{
			Type:        IndicatorDuplicate,
			Severity:    domain.SeverityHigh,
			Description: fmt.Sprintf("Potential duplicate invoice detected (%d matches)", an.Duplicate.Count),
			Confidence:  an.Duplicate.Confidence,
		})
	}
	if an.Price.HasAnomaly {
		out = append(out, Indicator{
			Type:        IndicatorPriceAnomaly,
			Severity:    an.Price.Risk,
			Description: fmt.Sprintf("Invoice amount %.1f%% %s average", an.Price.VariancePercent, an.Price.Direction),
			Confidence:  an.Price.Confidence,
		})
	}
	if an.Vendor.IsNewVendor {
		out = append(out, Indicator{
			Type:        IndicatorNewVendor,
			Severity:    domain.SeverityMedium,
			Description: fmt.Sprintf("Vendor account is only %d days old", an.Vendor.AgeDays),
			Confidence:  an.Vendor.Confidence,
		})
	}
	if an.Rush.IsRush {
		out = append(out, Indicator{
			Type:        IndicatorRushPayment,
			Severity:    domain.SeverityMedium,
			Description: fmt.Sprintf("Payment due in %d days", an.Rush.DaysUntilDue),
			Confidence:  an.Rush.Confidence,
		})
	}
	if an.Round.IsSuspicious {
		out = append(out, Indicator{
			Type:        IndicatorRound,
			Severity:    domain.SeverityLow,
			Description: "Invoice contains only round amounts",
			Confidence:  an.Round.Confidence,
		})
	}
	if an.Pattern.HasAnomaly {
		var issues []string
		if an.Pattern.Weekend {
			issues = append(issues, "weekend submission")
		}
		if an.Pattern.AfterHours {
			issues = append(issues, "after-hours submission")
		}
		if an.Pattern.GenericItems {
			issues = append(issues, "generic line items")
		}
		out = append(out, Indicator{
			Type:        IndicatorPatternAnomaly,
			Severity:    an.Pattern.Risk,
			Description: "Unusual patterns: " + strings.Join(issues, ", "),
			Confidence:  an.Pattern.Confidence,
		})
	}
	return out
}

func recommendations(an *Analysis) []Recommendation {
	var out []Recommendation
	switch {
	case an.Score >= 0.7:
		out = append(out, Recommendation{Priority: "critical", Action: "Hold payment and escalate to fraud team immediately"})
	case an.Score >= 0.5:
		out = append(out, Recommendation{Priority: "high", Action: "Require additional approval before processing"})
	}
	if an.Duplicate.IsDuplicate {
		out = append(out, Recommendation{Priority: "high", Action: "Verify this is not a duplicate submission before payment"})
	}
	if an.Price.HasAnomaly {
		out = append(out, Recommendation{Priority: "medium", Action: "Request itemized breakdown and compare with contract rates"})
	}
	if an.Vendor.IsNewVendor {
		out = append(out, Recommendation{Priority: "medium", Action: "Verify vendor credentials and banking information"})
	}
	return out
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (float64, float64) {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	sq := 0.0
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
