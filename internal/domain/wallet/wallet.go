package wallet

import (
	"time"

	"salvage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Funding bounds for a single wallet top-up, in naira.
const (
	MinFundingAmount = 50_000.0
	MaxFundingAmount = 5_000_000.0
)

// Wallet is a vendor's escrow balance. The ledger invariant
// Balance == Available + Frozen holds after every mutation; a violation
// beyond the amount tolerance aborts the operation.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	Balance   float64   `json:"balance"`
	Available float64   `json:"available_balance"`
	Frozen    float64   `json:"frozen_amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionType is the kind of ledger operation recorded
type TransactionType string

const (
	TxCredit   TransactionType = "credit"
	TxDebit    TransactionType = "debit"
	TxFreeze   TransactionType = "freeze"
	TxUnfreeze TransactionType = "unfreeze"
)

// Transaction is the immutable record of one ledger operation
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	WalletID     uuid.UUID       `json:"wallet_id"`
	Type         TransactionType `json:"type"`
	Amount       float64         `json:"amount"`
	BalanceAfter float64         `json:"balance_after"`
	Reference    string          `json:"reference"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Credit adds confirmed external funds to the wallet
func (w *Wallet) Credit(amount float64) error {
	if amount <= 0 {
		return shared.ErrAmountNotPositive
	}
	w.Balance += amount
	w.Available += amount
	return w.checkInvariant()
}

// Freeze reserves available funds against a won auction
func (w *Wallet) Freeze(amount float64) error {
	if amount <= 0 {
		return shared.ErrAmountNotPositive
	}
	if w.Available < amount {
		return shared.ErrInsufficientAvailable
	}
	w.Available -= amount
	w.Frozen += amount
	return w.checkInvariant()
}

// Unfreeze reverses a freeze, returning funds to the available pool
func (w *Wallet) Unfreeze(amount float64) error {
	if amount <= 0 {
		return shared.ErrAmountNotPositive
	}
	if w.Frozen < amount {
		return shared.ErrInsufficientFrozen
	}
	w.Frozen -= amount
	w.Available += amount
	return w.checkInvariant()
}

// Debit releases frozen funds out of the wallet on pickup confirmation
func (w *Wallet) Debit(amount float64) error {
	if amount <= 0 {
		return shared.ErrAmountNotPositive
	}
	if w.Frozen < amount {
		return shared.ErrInsufficientFrozen
	}
	w.Frozen -= amount
	w.Balance -= amount
	return w.checkInvariant()
}

func (w *Wallet) checkInvariant() error {
	if !shared.AmountsEqual(w.Balance, w.Available+w.Frozen) {
		return shared.ErrLedgerInvariantViolation
	}
	if w.Balance < 0 || w.Available < 0 || w.Frozen < 0 {
		return shared.ErrLedgerInvariantViolation
	}
	return nil
}

// ValidFundingAmount reports whether amount is inside the allowed top-up range
func ValidFundingAmount(amount float64) bool {
	return amount >= MinFundingAmount && amount <= MaxFundingAmount
}

// FundingStatus is the lifecycle state of a funding request
type FundingStatus string

const (
	FundingInitiated FundingStatus = "initiated"
	FundingCompleted FundingStatus = "completed"
	FundingFailed    FundingStatus = "failed"
)

// FundingRequest tracks a provider checkout initiated by a vendor
type FundingRequest struct {
	ID        uuid.UUID     `json:"id"`
	VendorID  uuid.UUID     `json:"vendor_id"`
	Reference string        `json:"reference"`
	Amount    float64       `json:"amount"`
	Status    FundingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
