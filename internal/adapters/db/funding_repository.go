package db

import (
	"context"
	"database/sql"
	"fmt"

	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/wallet"

	"github.com/google/uuid"
)

// FundingRepository implements the funding request repository interface
type FundingRepository struct {
	conn *Connection
}

// NewFundingRepository creates a new funding repository
func NewFundingRepository(conn *Connection) *FundingRepository {
	return &FundingRepository{conn: conn}
}

// Create creates a new funding request
func (r *FundingRepository) Create(ctx context.Context, fr *wallet.FundingRequest) error {
	query := `
		INSERT INTO funding_requests (id, vendor_id, reference, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		fr.ID, fr.VendorID, fr.Reference, fr.Amount, fr.Status, fr.CreatedAt, fr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create funding request: %w", err)
	}
	return nil
}

// GetByReference retrieves a funding request by its provider reference
func (r *FundingRepository) GetByReference(ctx context.Context, reference string) (*wallet.FundingRequest, error) {
	query := `
		SELECT id, vendor_id, reference, amount, status, created_at, updated_at
		FROM funding_requests
		WHERE reference = $1
	`

	var fr wallet.FundingRequest
	err := r.conn.GetDB().QueryRowContext(ctx, query, reference).Scan(
		&fr.ID,
		&fr.VendorID,
		&fr.Reference,
		&fr.Amount,
		&fr.Status,
		&fr.CreatedAt,
		&fr.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrFundingNotFound
		}
		return nil, fmt.Errorf("failed to get funding request: %w", err)
	}
	return &fr, nil
}

// UpdateStatus moves the funding request through its lifecycle
func (r *FundingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status wallet.FundingStatus) error {
	query := `UPDATE funding_requests SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update funding request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrFundingNotFound
	}
	return nil
}
