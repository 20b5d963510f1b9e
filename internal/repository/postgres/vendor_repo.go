package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ivms/internal/domain"
	"ivms/internal/port"
)

type vendorRepo struct {
	db *sqlx.DB
}

// NewVendorRepo creates a new PostgreSQL-backed VendorRepository.
func NewVendorRepo(db *sqlx.DB) port.VendorRepository {
	return &vendorRepo{db: db}
}

func (r *vendorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error) {
	var v domain.Vendor
	err := r.db.GetContext(ctx, &v, "SELECT * FROM vendors WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVendorNotFound
		}
		return nil, fmt.Errorf("vendorRepo.GetByID: %w", err)
	}
	return &v, nil
}

// FindByDomain matches the domain against the vendor's email domain or its
// website host, ignoring a leading "www.". The oldest vendor wins on ties.
func (r *vendorRepo) FindByDomain(ctx context.Context, emailDomain string) (*domain.Vendor, error) {
	d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(emailDomain)), "www.")
	if d == "" {
		return nil, domain.ErrVendorNotFound
	}

	var v domain.Vendor
	err := r.db.GetContext(ctx, &v, `
		SELECT * FROM vendors
		WHERE lower(split_part(email, '@', 2)) = $1
		   OR lower(regexp_replace(website, '^(https?://)?(www\.)?([^/:]+).*$', '\3')) = $1
		ORDER BY created_at ASC
		LIMIT 1`, d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVendorNotFound
		}
		return nil, fmt.Errorf("vendorRepo.FindByDomain: %w", err)
	}
	return &v, nil
}

func (r *vendorRepo) Upsert(ctx context.Context, v *domain.Vendor) error {
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	query := `INSERT INTO vendors (
		id, name, tax_id, email, website, bank_account, routing_number,
		payment_terms, historical_score, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		tax_id = EXCLUDED.tax_id,
		email = EXCLUDED.email,
		website = EXCLUDED.website,
		bank_account = EXCLUDED.bank_account,
		routing_number = EXCLUDED.routing_number,
		payment_terms = EXCLUDED.payment_terms,
		historical_score = EXCLUDED.historical_score,
		updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.Name, v.TaxID, v.Email, v.Website, v.BankAccount, v.RoutingNumber,
		v.PaymentTerms, v.HistoricalScore, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("vendorRepo.Upsert: %w", err)
	}
	return nil
}
