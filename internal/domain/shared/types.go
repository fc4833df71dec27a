package shared

import "github.com/google/uuid"

// ClosureResult represents the result of closing an auction
type ClosureResult struct {
	AuctionID        uuid.UUID
	WinnerID         *uuid.UUID
	WinningAmount    *float64
	PaymentReference *string
	Status           string
}

// AmountTolerance is the precision within which two naira amounts are
// considered equal.
const AmountTolerance = 0.01

// AmountsEqual reports whether two amounts match within AmountTolerance.
// The tolerance is inclusive: amounts exactly 0.01 apart are equal, even
// though their float64 difference overshoots 0.01 by a few ulps.
func AmountsEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= AmountTolerance+1e-9
}

// Kobo converts a naira amount to whole kobo, the precision used by the
// payment provider on the wire.
func Kobo(amount float64) int64 {
	if amount >= 0 {
		return int64(amount*100 + 0.5)
	}
	return int64(amount*100 - 0.5)
}
