package db

import (
	"context"
	"database/sql"
	"fmt"

	"salvage-auction-service/internal/domain/bidding"
	"salvage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const bidColumns = `id, auction_id, vendor_id, amount, otp_verified, ip_address, device_id, created_at`

// BidRepository implements the bid repository interface. Bids are an
// append-only ledger: there is no update or delete path.
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

// GetByID retrieves a bid by ID
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bidding.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return b, nil
}

// GetByAuctionID retrieves all bids for an auction, highest first
func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bidding.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*bidding.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}
	return bids, nil
}

// GetHighestBid retrieves the highest bid for an auction
func (r *BidRepository) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bidding.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return b, nil
}

// ListBidderIDs returns the distinct vendors that have bid on an auction
func (r *BidRepository) ListBidderIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT vendor_id FROM bids WHERE auction_id = $1`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bidders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bidder ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bidders: %w", err)
	}
	return ids, nil
}

/*
PlaceWithOCC appends the bid and advances the auction's leading bid in one
transaction:
 1. Re-read the auction's current bid and status inside the transaction.
 2. Reject if the auction no longer accepts bids or the observed bid is stale.
 3. Insert the bid row.
 4. Conditionally update the auction, pinning current_bid to the observed
    value in the WHERE clause.

If another transaction advanced the bid concurrently the conditional update
touches zero rows and the whole transaction rolls back with ErrBidConflict.
*/
func (r *BidRepository) PlaceWithOCC(ctx context.Context, newBid *bidding.Bid, expectedCurrentBid *float64) error {
	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		var dbCurrentBid sql.NullFloat64
		var minIncrement float64
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT current_bid, min_increment, status FROM auctions WHERE id = $1`,
			newBid.AuctionID,
		).Scan(&dbCurrentBid, &minIncrement, &status)
		if err != nil {
			if err == sql.ErrNoRows {
				return shared.ErrAuctionNotFound
			}
			return fmt.Errorf("failed to read auction for bid placement: %w", err)
		}

		if status != "active" && status != "extended" {
			return shared.ErrAuctionNotAcceptingBids
		}

		// Stale observation: someone else already advanced the bid.
		if dbCurrentBid.Valid != (expectedCurrentBid != nil) ||
			(dbCurrentBid.Valid && dbCurrentBid.Float64 != *expectedCurrentBid) {
			return shared.ErrBidConflict
		}

		floor := minIncrement
		if dbCurrentBid.Valid {
			floor = dbCurrentBid.Float64 + minIncrement
		}
		if newBid.Amount < floor {
			return shared.ErrBidAmountTooLow
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			newBid.ID,
			newBid.AuctionID,
			newBid.VendorID,
			newBid.Amount,
			newBid.OTPVerified,
			newBid.IPAddress,
			newBid.DeviceID,
			newBid.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE auctions
			SET current_bid = $2, current_bidder_id = $3, updated_at = $4
			WHERE id = $1 AND current_bid IS NOT DISTINCT FROM $5
		`,
			newBid.AuctionID,
			newBid.Amount,
			newBid.VendorID,
			newBid.CreatedAt,
			expectedCurrentBid,
		)
		if err != nil {
			return fmt.Errorf("failed to update auction bid: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrBidConflict
		}
		return nil
	})
}

func scanBid(row rowScanner) (*bidding.Bid, error) {
	var b bidding.Bid
	err := row.Scan(
		&b.ID,
		&b.AuctionID,
		&b.VendorID,
		&b.Amount,
		&b.OTPVerified,
		&b.IPAddress,
		&b.DeviceID,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
