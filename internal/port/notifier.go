package port

import (
	"context"

	"ivms/internal/domain"
)

// ExceptionNotifier tells the AP team about exceptions that need attention.
type ExceptionNotifier interface {
	NotifyException(ctx context.Context, exc *domain.InvoiceException, inv *domain.Invoice) error
}
