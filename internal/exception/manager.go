// Package exception creates, tracks and resolves invoice exceptions.
package exception

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

// Rule is the fixed classification of one exception type.
type Rule struct {
	Severity     domain.Severity
	BasePriority int
	Title        string
	Actions      []string
}

var rules = map[domain.ExceptionType]Rule{
	domain.ExceptionDuplicateInvoice: {
		Severity: domain.SeverityHigh, BasePriority: 7, Title: "Possible duplicate invoice",
		Actions: []string{"Compare with the matching prior invoice", "Confirm with the vendor whether this is a resubmission", "Reject if already paid"},
	},
	domain.ExceptionFraudSuspected: {
		Severity: domain.SeverityCritical, BasePriority: 9, Title: "Suspected fraudulent invoice",
		Actions: []string{"Hold payment", "Escalate to the fraud team", "Verify vendor identity through a known contact"},
	},
	domain.ExceptionPONotFound: {
		Severity: domain.SeverityMedium, BasePriority: 5, Title: "Purchase order not found",
		Actions: []string{"Verify the PO number with the requester", "Request a corrected invoice from the vendor"},
	},
	domain.ExceptionGRNNotFound: {
		Severity: domain.SeverityMedium, BasePriority: 5, Title: "Goods receipt not found",
		Actions: []string{"Confirm delivery with the receiving team", "Record the goods receipt before approval"},
	},
	domain.ExceptionQuantityMismatch: {
		Severity: domain.SeverityMedium, BasePriority: 5, Title: "Quantity does not match receipt",
		Actions: []string{"Compare invoiced quantity with goods received", "Request a credit memo for the difference"},
	},
	domain.ExceptionPriceMismatch: {
		Severity: domain.SeverityMedium, BasePriority: 6, Title: "Price does not match purchase order",
		Actions: []string{"Compare unit prices with the PO and contract", "Request a corrected invoice or approve the variance"},
	},
	domain.ExceptionAmountMismatch: {
		Severity: domain.SeverityHigh, BasePriority: 6, Title: "Invoice total does not match purchase order",
		Actions: []string{"Reconcile invoice total with PO total", "Check for unbilled shipping, tax or discounts"},
	},
	domain.ExceptionInvalidTaxCalculation: {
		Severity: domain.SeverityLow, BasePriority: 3, Title: "Tax calculation discrepancy",
		Actions: []string{"Recalculate tax at the applicable rate", "Ask the vendor to confirm the tax amount"},
	},
	domain.ExceptionBankAccountChange: {
		Severity: domain.SeverityHigh, BasePriority: 8, Title: "Vendor bank details changed",
		Actions: []string{"Verify the new bank details by phone using a known contact", "Do not pay until verified"},
	},
	domain.ExceptionAnomalyDetected: {
		Severity: domain.SeverityMedium, BasePriority: 4, Title: "Invoice anomaly detected",
		Actions: []string{"Review the flagged dates, amounts and terms"},
	},
	domain.ExceptionMatchFailed: {
		Severity: domain.SeverityHigh, BasePriority: 6, Title: "Purchase order matching failed",
		Actions: []string{"Match the invoice to its PO manually", "Check PO numbers and line descriptions"},
	},
	domain.ExceptionProcessingFailed: {
		Severity: domain.SeverityHigh, BasePriority: 7, Title: "Invoice processing failed",
		Actions: []string{"Inspect the audit trail for the failing stage", "Re-run processing once the cause is fixed"},
	},
}

var (
	boostLow  = decimal.NewFromInt(50000)
	boostHigh = decimal.NewFromInt(100000)
)

// RuleFor returns the classification of t.
func RuleFor(t domain.ExceptionType) (Rule, error) {
	r, ok := rules[t]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", domain.ErrUnknownExceptionType, t)
	}
	return r, nil
}

// Priority boosts a base priority by +1 above 50,000 and +2 above 100,000,
// capped at 10.
func Priority(base int, amount decimal.Decimal) int {
	p := base
	abs := amount.Abs()
	switch {
	case abs.GreaterThan(boostHigh):
		p += 2
	case abs.GreaterThan(boostLow):
		p++
	}
	if p > 10 {
		p = 10
	}
	return p
}

// Config holds the SLA offsets.
type Config struct {
	ResponseSLA   time.Duration
	ResolutionSLA time.Duration
}

// DefaultConfig returns a 4h response and 24h resolution SLA.
func DefaultConfig() Config {
	return Config{ResponseSLA: 4 * time.Hour, ResolutionSLA: 24 * time.Hour}
}

// Manager owns exception records.
type Manager struct {
	repo     port.ExceptionRepository
	notifier port.ExceptionNotifier
	cfg      Config
	now      func() time.Time
	log      *zap.Logger
}

// NewManager creates a Manager. notifier may be nil.
func NewManager(repo port.ExceptionRepository, notifier port.ExceptionNotifier, cfg Config, log *zap.Logger) *Manager {
	return &Manager{repo: repo, notifier: notifier, cfg: cfg, now: time.Now, log: logger.OrNop(log)}
}

// WithClock overrides the manager's notion of now.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create records an exception against the invoice and appends an
// exception_created audit entry to it. The caller saves the invoice.
func (m *Manager) Create(ctx context.Context, inv *domain.Invoice, typ domain.ExceptionType, details map[string]any) (*domain.InvoiceException, error) {
	rule, err := RuleFor(typ)
	if err != nil {
		return nil, fmt.Errorf("exception.Create: %w", err)
	}

	now := m.now().UTC()
	desc := rule.Title
	if reason, ok := details["reason"].(string); ok && reason != "" {
		desc = reason
	}
	exc := &domain.InvoiceException{
		ID:               uuid.New(),
		InvoiceID:        inv.ID,
		Type:             typ,
		Severity:         rule.Severity,
		Priority:         Priority(rule.BasePriority, inv.TotalAmount),
		Status:           domain.ExceptionStatusOpen,
		Title:            rule.Title,
		Description:      desc,
		FinancialImpact:  inv.TotalAmount.Abs(),
		SuggestedActions: append([]string(nil), rule.Actions...),
		Details:          details,
		ResponseDueAt:    now.Add(m.cfg.ResponseSLA),
		ResolutionDueAt:  now.Add(m.cfg.ResolutionSLA),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.repo.Create(ctx, exc); err != nil {
		return nil, fmt.Errorf("exception.Create: %w", err)
	}

	inv.AddAudit(domain.AuditExceptionCreated, domain.SystemActor, map[string]any{
		"exception_id": exc.ID.String(),
		"type":         string(typ),
		"severity":     string(exc.Severity),
		"priority":     exc.Priority,
	}, now)

	m.log.Info("exception.Create: exception raised",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("type", string(typ)),
		zap.Int("priority", exc.Priority))

	if exc.Severity == domain.SeverityHigh || exc.Severity == domain.SeverityCritical {
		m.notify(ctx, exc, inv)
	}
	return exc, nil
}

func (m *Manager) notify(ctx context.Context, exc *domain.InvoiceException, inv *domain.Invoice) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyException(ctx, exc, inv); err != nil {
		m.log.Warn("exception.Create: notification failed",
			zap.String("exception_id", exc.ID.String()), zap.Error(err))
	}
}

// Resolve closes one exception as resolved.
func (m *Manager) Resolve(ctx context.Context, id uuid.UUID, resolution, by string) (*domain.InvoiceException, error) {
	return m.close(ctx, id, domain.ExceptionStatusResolved, resolution, by)
}

// Dismiss closes one exception as not requiring action.
func (m *Manager) Dismiss(ctx context.Context, id uuid.UUID, reason, by string) (*domain.InvoiceException, error) {
	return m.close(ctx, id, domain.ExceptionStatusDismissed, reason, by)
}

func (m *Manager) close(ctx context.Context, id uuid.UUID, status domain.ExceptionStatus, resolution, by string) (*domain.InvoiceException, error) {
	exc, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("exception.close: %w", err)
	}
	if !exc.IsOpen() {
		return nil, fmt.Errorf("exception.close: %w", domain.ErrExceptionClosed)
	}
	now := m.now().UTC()
	exc.Status = status
	exc.Resolution = resolution
	exc.ResolvedBy = by
	exc.ResolvedAt = &now
	exc.UpdatedAt = now
	if err := m.repo.Update(ctx, exc); err != nil {
		return nil, fmt.Errorf("exception.close: %w", err)
	}
	return exc, nil
}

// ListByInvoice returns all exceptions of an invoice.
func (m *Manager) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceException, error) {
	out, err := m.repo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("exception.ListByInvoice: %w", err)
	}
	return out, nil
}
