package db

import (
	"context"
	"database/sql"
	"fmt"

	"salvage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// CaseRepository implements the salvage case repository interface
type CaseRepository struct {
	conn *Connection
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(conn *Connection) *CaseRepository {
	return &CaseRepository{conn: conn}
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.Case, error) {
	query := `SELECT id, title, status, created_at, updated_at FROM cases WHERE id = $1`

	var c shared.Case
	err := r.conn.GetDB().QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return &c, nil
}

// UpdateStatus moves the case through its lifecycle
func (r *CaseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.CaseStatus) error {
	query := `UPDATE cases SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update case status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrCaseNotFound
	}
	return nil
}
