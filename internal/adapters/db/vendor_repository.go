package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/vendor"

	"github.com/google/uuid"
)

const vendorColumns = `id, user_id, business_name, tier, phone, email, suspended_until, created_at, updated_at`

// VendorRepository implements the vendor repository interface
type VendorRepository struct {
	conn *Connection
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(conn *Connection) *VendorRepository {
	return &VendorRepository{conn: conn}
}

// GetByID retrieves a vendor by ID
func (r *VendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*vendor.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

	var v vendor.Vendor
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&v.ID,
		&v.UserID,
		&v.BusinessName,
		&v.Tier,
		&v.Phone,
		&v.Email,
		&v.SuspendedUntil,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return &v, nil
}

// Create creates a new vendor
func (r *VendorRepository) Create(ctx context.Context, v *vendor.Vendor) error {
	query := `
		INSERT INTO vendors (` + vendorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		v.ID,
		v.UserID,
		v.BusinessName,
		v.Tier,
		v.Phone,
		v.Email,
		v.SuspendedUntil,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

// Suspend sets the vendor's suspension expiry
func (r *VendorRepository) Suspend(ctx context.Context, id uuid.UUID, until time.Time) error {
	query := `UPDATE vendors SET suspended_until = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, until)
	if err != nil {
		return fmt.Errorf("failed to suspend vendor: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrVendorNotFound
	}
	return nil
}
