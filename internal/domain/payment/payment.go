package payment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the stored, manually-driven outcome of a payment
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// PaymentWindow is how long a winner has to settle after closure.
const PaymentWindow = 24 * time.Hour

// Payment is created when an auction closes with a winner. Amount must equal
// the winning bid. Terminal once verified or rejected.
type Payment struct {
	ID         uuid.UUID  `json:"id"`
	AuctionID  uuid.UUID  `json:"auction_id"`
	VendorID   uuid.UUID  `json:"vendor_id"`
	Amount     float64    `json:"amount"`
	Method     string     `json:"method"`
	Reference  string     `json:"reference"`
	Status     Status     `json:"status"`
	Deadline   time.Time  `json:"deadline"`
	VerifiedBy *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Final reports whether a finance officer has already decided this payment
func (p *Payment) Final() bool {
	return p.Status == StatusVerified || p.Status == StatusRejected
}

// Verify records a finance officer's approval
func (p *Payment) Verify(officerID uuid.UUID, now time.Time) {
	p.Status = StatusVerified
	p.VerifiedBy = &officerID
	p.VerifiedAt = &now
	p.UpdatedAt = now
}

// Reject records a finance officer's rejection
func (p *Payment) Reject(officerID uuid.UUID, now time.Time) {
	p.Status = StatusRejected
	p.VerifiedBy = &officerID
	p.VerifiedAt = &now
	p.UpdatedAt = now
}

// State returns the time-derived deadline state for this payment at now.
func (p *Payment) State(now time.Time) DeadlineState {
	return Classify(now, p.Deadline, p.Status)
}
