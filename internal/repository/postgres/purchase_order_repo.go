package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ivms/internal/domain"
	"ivms/internal/port"
)

type purchaseOrderRepo struct {
	db *sqlx.DB
}

// NewPurchaseOrderRepo creates a new PostgreSQL-backed PurchaseOrderRepository.
func NewPurchaseOrderRepo(db *sqlx.DB) port.PurchaseOrderRepository {
	return &purchaseOrderRepo{db: db}
}

func (r *purchaseOrderRepo) ListByNumbers(ctx context.Context, poNumbers []string) ([]domain.PurchaseOrder, error) {
	if len(poNumbers) == 0 {
		return nil, nil
	}
	var pos []domain.PurchaseOrder
	err := r.db.SelectContext(ctx, &pos,
		"SELECT * FROM purchase_orders WHERE po_number = ANY($1) ORDER BY po_number", poNumbers)
	if err != nil {
		return nil, fmt.Errorf("purchaseOrderRepo.ListByNumbers: %w", err)
	}
	return pos, nil
}

func (r *purchaseOrderRepo) ListReceipts(ctx context.Context, poNumbers []string) ([]domain.GoodsReceipt, error) {
	if len(poNumbers) == 0 {
		return nil, nil
	}
	var grns []domain.GoodsReceipt
	err := r.db.SelectContext(ctx, &grns,
		"SELECT * FROM goods_receipts WHERE po_number = ANY($1) ORDER BY received_at", poNumbers)
	if err != nil {
		return nil, fmt.Errorf("purchaseOrderRepo.ListReceipts: %w", err)
	}
	return grns, nil
}
