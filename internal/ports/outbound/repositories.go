package outbound

import (
	"context"
	"time"

	"salvage-auction-service/internal/domain/auction"
	"salvage-auction-service/internal/domain/bidding"
	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/vendor"
	"salvage-auction-service/internal/domain/wallet"

	"github.com/google/uuid"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create creates a new auction
	Create(ctx context.Context, a *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// List retrieves a page of auctions, optionally filtered by status
	List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error)

	// GetActiveByCaseID retrieves open auctions for a specific case
	GetActiveByCaseID(ctx context.Context, caseID uuid.UUID) ([]*auction.Auction, error)

	// ListEnded retrieves open auctions whose end time has passed
	ListEnded(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error)

	// Extend conditionally pushes the end time out. The update only applies
	// while the stored end time still matches expectedEndTime, so two
	// concurrent extension checks cannot both fire.
	Extend(ctx context.Context, id uuid.UUID, newEndTime, expectedEndTime time.Time) error

	// Close marks the auction closed if it still accepts bids
	Close(ctx context.Context, id uuid.UUID) error

	// UpdateWatcherCount records the live viewer count
	UpdateWatcherCount(ctx context.Context, id uuid.UUID, count int) error
}

// BidRepository defines the interface for bid data operations
type BidRepository interface {
	// GetByID retrieves a bid by ID
	GetByID(ctx context.Context, id uuid.UUID) (*bidding.Bid, error)

	// GetByAuctionID retrieves all bids for an auction, highest first
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bidding.Bid, error)

	// GetHighestBid retrieves the highest bid for an auction
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bidding.Bid, error)

	// ListBidderIDs returns the distinct vendors that have bid on an auction
	ListBidderIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error)

	// PlaceWithOCC appends the bid and advances the auction's current bid in
	// one transaction. The auction update is conditioned on the observed
	// current bid so two concurrent bids cannot both win; the loser gets
	// shared.ErrBidConflict.
	PlaceWithOCC(ctx context.Context, b *bidding.Bid, expectedCurrentBid *float64) error
}

// VendorRepository defines the interface for vendor data operations
type VendorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*vendor.Vendor, error)
	Create(ctx context.Context, v *vendor.Vendor) error

	// Suspend sets the vendor's suspension expiry
	Suspend(ctx context.Context, id uuid.UUID, until time.Time) error
}

// CaseRepository defines the interface for salvage case data operations
type CaseRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*shared.Case, error)

	// UpdateStatus moves the case through its lifecycle
	UpdateStatus(ctx context.Context, id uuid.UUID, status shared.CaseStatus) error
}

// WalletRepository defines the interface for escrow wallet data operations.
// Apply runs a ledger mutation against a row-locked wallet and persists the
// resulting transaction record atomically.
type WalletRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error)
	GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*wallet.Wallet, error)

	// CreateForVendor lazily provisions an empty wallet
	CreateForVendor(ctx context.Context, vendorID uuid.UUID) (*wallet.Wallet, error)

	// Apply locks the wallet row, runs mutate against the loaded entity and,
	// if it succeeds, writes the updated balances plus the transaction record
	// in the same database transaction.
	Apply(ctx context.Context, walletID uuid.UUID, mutate func(w *wallet.Wallet) (*wallet.Transaction, error)) (*wallet.Transaction, error)

	// ListTransactions returns the wallet's ledger history, newest first
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]*wallet.Transaction, error)
}

// FundingRepository defines the interface for funding request data operations
type FundingRepository interface {
	Create(ctx context.Context, fr *wallet.FundingRequest) error
	GetByReference(ctx context.Context, reference string) (*wallet.FundingRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status wallet.FundingStatus) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error)
	GetByReference(ctx context.Context, reference string) (*payment.Payment, error)

	// ListPending returns payments not yet decided by a finance officer
	ListPending(ctx context.Context, limit int) ([]*payment.Payment, error)

	// Update persists verification state changes
	Update(ctx context.Context, p *payment.Payment) error

	// MarkReminded records that the deadline reminder has gone out so the
	// sweep sends it at most once
	MarkReminded(ctx context.Context, id uuid.UUID) error

	// ListUnreminded returns pending payments inside the reminder window
	// that have not been reminded yet
	ListUnreminded(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)

	// MarkForfeited records that forfeiture side effects have run for this
	// payment so the sweep is idempotent
	MarkForfeited(ctx context.Context, id uuid.UUID) error

	// ListUnforfeited returns pending payments past the forfeit threshold
	// whose forfeiture has not been processed
	ListUnforfeited(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)
}
