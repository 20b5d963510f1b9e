package port

import (
	"context"

	"github.com/google/uuid"

	"ivms/internal/domain"
)

// InvoiceRepository defines the contract for canonical invoice persistence.
// Update is versioned: it fails with domain.ErrConcurrentModification when the
// stored version differs from inv.Version, and bumps inv.Version on success.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	ListByStatus(ctx context.Context, statuses []domain.InvoiceStatus, limit int) ([]domain.Invoice, error)
	// ClaimSubmitted marks up to limit submitted invoices as taken and returns
	// their ids. Concurrent callers never receive the same id.
	ClaimSubmitted(ctx context.Context, limit int) ([]uuid.UUID, error)
	// ReleaseClaim hands a claimed invoice back to the queue if its run never
	// started. It reports whether the claim was released.
	ReleaseClaim(ctx context.Context, id uuid.UUID) (bool, error)
	ListPaidByVendor(ctx context.Context, vendorID, excludeID uuid.UUID, limit int) ([]domain.Invoice, error)
}

// VendorRepository defines read access to the vendor master plus seeding.
type VendorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error)
	FindByDomain(ctx context.Context, emailDomain string) (*domain.Vendor, error)
	Upsert(ctx context.Context, vendor *domain.Vendor) error
}

// MatchRecordRepository persists the single match record of each invoice.
type MatchRecordRepository interface {
	Upsert(ctx context.Context, rec *domain.MatchRecord) error
	GetByInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.MatchRecord, error)
}

// ExceptionRepository persists invoice exceptions.
type ExceptionRepository interface {
	Create(ctx context.Context, exc *domain.InvoiceException) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceException, error)
	Update(ctx context.Context, exc *domain.InvoiceException) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.InvoiceException, error)
}

// FileMetaRepository defines the contract for attached-file metadata.
type FileMetaRepository interface {
	Create(ctx context.Context, meta *domain.FileMeta) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.FileMeta, error)
}

// PurchaseOrderRepository reads purchase orders and goods receipts for local matching.
type PurchaseOrderRepository interface {
	ListByNumbers(ctx context.Context, poNumbers []string) ([]domain.PurchaseOrder, error)
	ListReceipts(ctx context.Context, poNumbers []string) ([]domain.GoodsReceipt, error)
}
