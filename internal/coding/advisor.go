// Package coding proposes and applies GL account coding.
package coding

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Suggestion sources.
const (
	SourceService = "service"
	SourceDefault = "default"
)

// Default is the fallback coding for one category.
type Default struct {
	GLAccount  string
	CostCenter string
	Confidence float64
}

// Config holds the apply threshold, call timeout and default table.
type Config struct {
	ApplyThreshold float64
	Timeout        time.Duration
	Defaults       map[domain.Category]Default
}

// DefaultConfig returns a 0.9 apply threshold and the standard default table.
func DefaultConfig() Config {
	return Config{
		ApplyThreshold: 0.9,
		Timeout:        20 * time.Second,
		Defaults: map[domain.Category]Default{
			domain.CategoryGoods:        {GLAccount: "5000", Confidence: 0.6},
			domain.CategoryServices:     {GLAccount: "6000", Confidence: 0.55},
			domain.CategorySubscription: {GLAccount: "6100", Confidence: 0.5},
			domain.CategoryUtilities:    {GLAccount: "6200", Confidence: 0.6},
			domain.CategoryTravel:       {GLAccount: "6300", Confidence: 0.5},
			domain.CategoryOther:        {GLAccount: "6900", Confidence: 0.4},
		},
	}
}

// Result describes what the advisor did.
type Result struct {
	Suggestions  []domain.CodingSuggestion `json:"suggestions"`
	Applied      bool                      `json:"applied"`
	AlreadyCoded bool                      `json:"already_coded"`
	Source       string                    `json:"source"`
}

// Advisor asks the coding service for suggestions and falls back to the
// category default table.
type Advisor struct {
	svc port.CodingAdvisor
	cfg Config
	log *zap.Logger
}

// NewAdvisor creates an Advisor. svc may be nil.
func NewAdvisor(svc port.CodingAdvisor, cfg Config, log *zap.Logger) *Advisor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Defaults == nil {
		cfg.Defaults = DefaultConfig().Defaults
	}
	return &Advisor{svc: svc, cfg: cfg, log: logger.OrNop(log)}
}

// Advise records suggestions on the invoice and applies the top one when its
// confidence reaches the threshold. Below the threshold the category default
// is appended after the service suggestions. Default-table suggestions are
// never applied. Invoices that already carry a GL account are left alone.
func (a *Advisor) Advise(ctx context.Context, inv *domain.Invoice) *Result {
	if inv.IsCoded() {
		return &Result{AlreadyCoded: true}
	}

	res := &Result{Source: SourceService}
	res.Suggestions = a.fromService(ctx, inv)
	if len(res.Suggestions) == 0 {
		res.Source = SourceDefault
		res.Suggestions = []domain.CodingSuggestion{a.fallback(inv.Category)}
	}

	top := res.Suggestions[0]
	switch {
	case res.Source != SourceService:
	case top.Confidence >= a.cfg.ApplyThreshold:
		apply(inv, top)
		res.Applied = true
	default:
		res.Suggestions = append(res.Suggestions, a.fallback(inv.Category))
	}
	inv.CodingSuggestions = res.Suggestions
	return res
}

func (a *Advisor) fromService(ctx context.Context, inv *domain.Invoice) []domain.CodingSuggestion {
	if a.svc == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	out, err := a.svc.Suggest(callCtx, port.CodingRequest{
		InvoiceID: inv.ID,
		VendorID:  inv.VendorID,
		Category:  inv.Category,
		LineItems: inv.LineItems,
	})
	if err != nil {
		a.log.Warn("coding.Advise: coding service unavailable",
			zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		return nil
	}

	suggestions := make([]domain.CodingSuggestion, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s.GLAccount == "" {
			continue
		}
		if s.Source == "" {
			s.Source = SourceService
		}
		suggestions = append(suggestions, s)
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions
}

func (a *Advisor) fallback(c domain.Category) domain.CodingSuggestion {
	d, ok := a.cfg.Defaults[c]
	if !ok {
		d = a.cfg.Defaults[domain.CategoryOther]
		c = domain.CategoryOther
	}
	return domain.CodingSuggestion{
		GLAccount:  d.GLAccount,
		CostCenter: d.CostCenter,
		Confidence: d.Confidence,
		Reason:     "default account for category " + string(c),
		Source:     SourceDefault,
	}
}

// apply sets the account on the invoice and on every line not yet coded.
func apply(inv *domain.Invoice, s domain.CodingSuggestion) {
	inv.GLAccount = s.GLAccount
	inv.CostCenter = s.CostCenter
	inv.CodingApplied = true
	for i := range inv.LineItems {
		if inv.LineItems[i].GLAccount == "" {
			inv.LineItems[i].GLAccount = s.GLAccount
			inv.LineItems[i].CostCenter = s.CostCenter
		}
	}
}
