package inbound

import (
	"context"
	"time"

	"salvage-auction-service/internal/domain/auction"
	"salvage-auction-service/internal/domain/bidding"
	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/wallet"

	"github.com/google/uuid"
)

// AuctionService defines the interface for auction lifecycle operations
type AuctionService interface {
	// CreateAuction opens bidding for an approved salvage case
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// ListAuctions retrieves a page of auctions
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*auction.Auction, error)

	// CloseAuction finalizes an ended auction. Idempotent: closing an
	// already-closed auction returns the existing result.
	CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.ClosureResult, error)

	// EvaluateExtension applies the anti-sniping rule if a bid landed
	// inside the extension window
	EvaluateExtension(ctx context.Context, auctionID uuid.UUID) (bool, error)
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid validates and records a new bid on an auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bidding.Bid, error)

	// GetBids retrieves bids for an auction
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bidding.Bid, error)

	// GetHighestBid retrieves the highest bid for an auction
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bidding.Bid, error)
}

// WalletService defines the interface for escrow wallet operations
type WalletService interface {
	// FundWallet starts a provider checkout for an escrow top-up
	FundWallet(ctx context.Context, req FundWalletRequest) (*FundWalletResponse, error)

	// Balance returns the wallet's balance snapshot, cache-first
	Balance(ctx context.Context, walletID uuid.UUID) (*wallet.Wallet, error)

	// Credit adds confirmed external funds
	Credit(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error)

	// Freeze reserves available funds against a won auction
	Freeze(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error)

	// Unfreeze reverses a freeze
	Unfreeze(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error)

	// Debit releases frozen funds out of escrow on pickup confirmation
	Debit(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error)
}

// PaymentService defines the interface for payment operations
type PaymentService interface {
	// GetPayment returns the payment with its time-derived deadline state
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, payment.DeadlineState, error)

	// DecidePayment records a finance officer's verify/reject decision
	DecidePayment(ctx context.Context, req DecidePaymentRequest) (*payment.Payment, error)

	// HandleProviderEvent consumes a signed payment-provider webhook
	HandleProviderEvent(ctx context.Context, rawBody []byte, signature string) error

	// DeadlineSweep sends due reminders and processes forfeitures
	DeadlineSweep(ctx context.Context, now time.Time) error
}

// request to create an auction
type CreateAuctionRequest struct {
	CaseID       uuid.UUID `json:"case_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	MinIncrement float64   `json:"min_increment"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Status   *auction.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// request to place a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Amount    float64   `json:"amount"`
	OTPCode   string    `json:"otp"`
	IPAddress string    `json:"ip_address"`
	DeviceID  string    `json:"device_id"`
}

// request to fund an escrow wallet
type FundWalletRequest struct {
	VendorID uuid.UUID `json:"vendor_id"`
	Amount   float64   `json:"amount"`
}

// FundWalletResponse carries the provider checkout handoff
type FundWalletResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// request for a finance officer's decision on a payment
type DecidePaymentRequest struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	FinanceOfficerID uuid.UUID `json:"finance_officer_id"`
	Action           string    `json:"action"` // "verify" or "reject"
	Comment          string    `json:"comment"`
}
