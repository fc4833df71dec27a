package bidding

import (
	"time"

	"github.com/google/uuid"
)

// Bid is the immutable record of one accepted bid. Bids form an append-only
// ledger of the auction's history and are never mutated or deleted.
type Bid struct {
	ID          uuid.UUID `json:"id"`
	AuctionID   uuid.UUID `json:"auction_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	Amount      float64   `json:"amount"`
	OTPVerified bool      `json:"otp_verified"`
	IPAddress   string    `json:"ip_address"`
	DeviceID    string    `json:"device_id"`
	CreatedAt   time.Time `json:"created_at"`
}
