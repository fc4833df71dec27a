package shared

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus represents the lifecycle state of a salvage case
type CaseStatus string

const (
	CaseStatusApproved  CaseStatus = "approved"
	CaseStatusOnAuction CaseStatus = "on_auction"
	CaseStatusSold      CaseStatus = "sold"
)

// Case represents a salvage case offered for sale
type Case struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Status    CaseStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
