package noop

import (
	"context"

	"go.uber.org/zap"

	"ivms/internal/domain"
	"ivms/internal/logger"
	"ivms/internal/port"
)

type noopNotifier struct {
	log *zap.Logger
}

// NewNoopNotifier creates an ExceptionNotifier that only logs.
func NewNoopNotifier(log *zap.Logger) port.ExceptionNotifier {
	return &noopNotifier{log: logger.OrNop(log)}
}

func (n *noopNotifier) NotifyException(_ context.Context, exc *domain.InvoiceException, inv *domain.Invoice) error {
	n.log.Info("notify.Noop: exception raised",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("exception_id", exc.ID.String()),
		zap.String("type", string(exc.Type)),
		zap.String("severity", string(exc.Severity)),
		zap.Int("priority", exc.Priority),
	)
	return nil
}
