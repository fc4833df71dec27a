package shared

import "errors"

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound         = errors.New("auction not found")
	ErrAuctionNotAcceptingBids = errors.New("auction is not accepting bids")
	ErrAuctionCancelled        = errors.New("auction cancelled")
	ErrInvalidEndTime          = errors.New("end time must be after start time")
	ErrInvalidIncrement        = errors.New("minimum increment must be greater than 0")
	ErrCaseAlreadyOnAuction    = errors.New("case is already in an active auction")

	// Bid errors
	ErrBidAmountTooLow  = errors.New("bid amount must be at least current bid plus minimum increment")
	ErrBidAmountInvalid = errors.New("bid amount must be greater than 0")
	ErrBidCeilingHit    = errors.New("bid amount exceeds vendor tier limit")
	ErrBidConflict      = errors.New("auction was outbid concurrently, retry")
	ErrNoBidsFound      = errors.New("no bids found")

	// OTP errors
	ErrOTPInvalid = errors.New("one-time code is invalid or expired")

	// Vendor errors
	ErrVendorNotFound  = errors.New("vendor not found")
	ErrVendorSuspended = errors.New("vendor is suspended from bidding")

	// Case errors
	ErrCaseNotFound = errors.New("salvage case not found")

	// Wallet errors
	ErrWalletNotFound           = errors.New("escrow wallet not found")
	ErrInsufficientAvailable    = errors.New("insufficient available balance")
	ErrInsufficientFrozen       = errors.New("insufficient frozen balance")
	ErrLedgerInvariantViolation = errors.New("wallet balance does not equal available plus frozen")
	ErrAmountNotPositive        = errors.New("amount must be greater than 0")
	ErrFundingOutOfRange        = errors.New("funding amount outside allowed range")
	ErrFundingNotFound          = errors.New("funding request not found")
	ErrRateLimited              = errors.New("too many attempts, try again later")

	// Payment errors
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyFinal  = errors.New("payment already verified or rejected")
	ErrPaymentAmountWrong   = errors.New("payment amount does not match winning bid")
	ErrUnknownPaymentAction = errors.New("unknown payment action")

	// Webhook errors
	ErrWebhookSignature      = errors.New("webhook signature mismatch")
	ErrWebhookAmountMismatch = errors.New("webhook amount does not match funding request")

	// Live feed errors
	ErrAuctionIDRequired   = errors.New("auction_id is required")
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrUnknownMessageType  = errors.New("unknown message type")

	// Database errors
	ErrDatabaseQuery       = errors.New("database query failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")
)
