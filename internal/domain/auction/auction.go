package auction

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current status of an auction
type Status string

const (
	StatusActive    Status = "active"
	StatusExtended  Status = "extended"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// Auction represents a salvage case offered for competitive bidding.
// CurrentBid and CurrentBidderID are nil until the first accepted bid.
type Auction struct {
	ID              uuid.UUID  `json:"id"`
	CaseID          uuid.UUID  `json:"case_id"`
	CurrentBid      *float64   `json:"current_bid,omitempty"`
	CurrentBidderID *uuid.UUID `json:"current_bidder_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	OriginalEndTime time.Time  `json:"original_end_time"`
	ExtensionCount  int        `json:"extension_count"`
	MinIncrement    float64    `json:"min_increment"`
	Status          Status     `json:"status"`
	WatcherCount    int        `json:"watcher_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AcceptsBids returns true while bids may still be placed
func (a *Auction) AcceptsBids() bool {
	return a.Status == StatusActive || a.Status == StatusExtended
}

// IsClosed returns true once the auction is finalized
func (a *Auction) IsClosed() bool {
	return a.Status == StatusClosed
}

// MinimumNextBid returns the smallest amount the next bid may carry
func (a *Auction) MinimumNextBid() float64 {
	current := 0.0
	if a.CurrentBid != nil {
		current = *a.CurrentBid
	}
	return current + a.MinIncrement
}

// RecordBid updates the leading bid. CurrentBid stays non-decreasing:
// lower amounts are ignored.
func (a *Auction) RecordBid(bidderID uuid.UUID, amount float64) {
	if a.CurrentBid != nil && amount <= *a.CurrentBid {
		return
	}
	a.CurrentBid = &amount
	a.CurrentBidderID = &bidderID
	a.UpdatedAt = time.Now()
}

// Extend pushes the end time out and marks the auction extended
func (a *Auction) Extend(now time.Time) {
	a.EndTime = a.EndTime.Add(ExtensionAmount)
	a.Status = StatusExtended
	a.ExtensionCount++
	a.UpdatedAt = now
}

// Close marks the auction as closed
func (a *Auction) Close(now time.Time) {
	a.Status = StatusClosed
	a.UpdatedAt = now
}

// Ended returns true once the clock has run out
func (a *Auction) Ended(now time.Time) bool {
	return !a.EndTime.After(now)
}
