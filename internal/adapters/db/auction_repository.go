package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"salvage-auction-service/internal/domain/auction"
	"salvage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const auctionColumns = `id, case_id, current_bid, current_bidder_id, start_time, end_time,
	original_end_time, extension_count, min_increment, status, watcher_count, created_at, updated_at`

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.CaseID,
		a.CurrentBid,
		a.CurrentBidderID,
		a.StartTime,
		a.EndTime,
		a.OriginalEndTime,
		a.ExtensionCount,
		a.MinIncrement,
		a.Status,
		a.WatcherCount,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction by ID
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// List retrieves a page of auctions, optionally filtered by status
func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	baseQuery := `SELECT ` + auctionColumns + ` FROM auctions `

	var whereClause string
	var args []interface{}
	argCount := 1

	if status != nil {
		whereClause = "WHERE status = $1 "
		args = append(args, *status)
		argCount++
	}

	query := baseQuery + whereClause +
		fmt.Sprintf("ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	return collectAuctions(rows)
}

// GetActiveByCaseID retrieves open auctions for a specific case
func (r *AuctionRepository) GetActiveByCaseID(ctx context.Context, caseID uuid.UUID) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE case_id = $1 AND status IN ('active', 'extended')
		ORDER BY created_at DESC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get open auctions by case ID: %w", err)
	}
	defer rows.Close()

	return collectAuctions(rows)
}

// ListEnded retrieves open auctions whose end time has passed
func (r *AuctionRepository) ListEnded(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status IN ('active', 'extended') AND end_time <= $1
		ORDER BY end_time ASC
		LIMIT $2
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ended auctions: %w", err)
	}
	defer rows.Close()

	return collectAuctions(rows)
}

// Extend conditionally pushes the end time out. The WHERE clause pins the
// stored end time to what the caller observed, so concurrent extension
// checks cannot stack extensions for the same window.
func (r *AuctionRepository) Extend(ctx context.Context, id uuid.UUID, newEndTime, expectedEndTime time.Time) error {
	query := `
		UPDATE auctions
		SET end_time = $2, status = 'extended', extension_count = extension_count + 1, updated_at = NOW()
		WHERE id = $1 AND end_time = $3 AND status IN ('active', 'extended')
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, newEndTime, expectedEndTime)
	if err != nil {
		return fmt.Errorf("failed to extend auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrBidConflict
	}
	return nil
}

// Close marks the auction closed if it still accepts bids
func (r *AuctionRepository) Close(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE auctions
		SET status = 'closed', updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'extended')
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrAuctionNotFound
	}
	return nil
}

// UpdateWatcherCount records the live viewer count
func (r *AuctionRepository) UpdateWatcherCount(ctx context.Context, id uuid.UUID, count int) error {
	query := `UPDATE auctions SET watcher_count = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.conn.GetDB().ExecContext(ctx, query, id, count); err != nil {
		return fmt.Errorf("failed to update watcher count: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	err := row.Scan(
		&a.ID,
		&a.CaseID,
		&a.CurrentBid,
		&a.CurrentBidderID,
		&a.StartTime,
		&a.EndTime,
		&a.OriginalEndTime,
		&a.ExtensionCount,
		&a.MinIncrement,
		&a.Status,
		&a.WatcherCount,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAuctions(rows *sql.Rows) ([]*auction.Auction, error) {
	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}
	return auctions, nil
}
