package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notifier sends SMS and email to vendors. Calls are best-effort side
// effects of already-committed operations: failures are logged by the
// caller, never propagated.
type Notifier interface {
	SendSMS(ctx context.Context, phone, message string) error
	SendEmail(ctx context.Context, to, subject, body string) error
}

// TransferClient requests an external funds transfer to the platform's
// settlement account after an escrow debit.
type TransferClient interface {
	Transfer(ctx context.Context, reference string, amount float64) error
}

// OTPStore issues and verifies one-time codes bound to a phone number.
// Verify consumes the code: a second verification of the same code fails.
type OTPStore interface {
	Issue(ctx context.Context, phone string, ttl time.Duration) (string, error)
	Verify(ctx context.Context, phone, code string) (bool, error)
}

// BalanceCache holds short-TTL wallet balance snapshots
type BalanceCache interface {
	Get(ctx context.Context, walletID uuid.UUID) (balance, available, frozen float64, ok bool)
	Set(ctx context.Context, walletID uuid.UUID, balance, available, frozen float64) error
	Invalidate(ctx context.Context, walletID uuid.UUID) error
}

// RateLimiter bounds repeated attempts per key with a counter-and-TTL
// pattern
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// AuditEntry is one append-only record of a state-changing operation
type AuditEntry struct {
	Actor    string                 `json:"actor"`
	Action   string                 `json:"action"`
	Entity   string                 `json:"entity"`
	EntityID string                 `json:"entity_id"`
	Before   map[string]interface{} `json:"before,omitempty"`
	After    map[string]interface{} `json:"after,omitempty"`
}

// AuditLog is the outbound sink for audit records. The core never reads
// them back.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}
