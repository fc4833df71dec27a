package payment

import "time"

// DeadlineState is the time-derived position of a payment relative to its
// deadline. It is recomputed on every read, never stored.
type DeadlineState string

const (
	StatePending      DeadlineState = "pending"
	StateReminderSent DeadlineState = "reminder_sent"
	StateOverdue      DeadlineState = "overdue"
	StateForfeited    DeadlineState = "forfeited"
	StateVerified     DeadlineState = "verified"
	StateRejected     DeadlineState = "rejected"
)

const (
	// ReminderWindow is how far ahead of the deadline the reminder state begins.
	ReminderWindow = 12 * time.Hour

	// OverdueAfter is how far past the deadline a payment becomes overdue.
	OverdueAfter = 24 * time.Hour

	// ForfeitAfter is how far past the deadline a payment is forfeited.
	ForfeitAfter = 48 * time.Hour
)

// Classify maps elapsed time against the deadline to a deadline state.
// A terminal manual decision (verified or rejected) short-circuits the
// time-based progression at any point. The function is total and monotone
// in now, so the derived state never moves backward.
func Classify(now, deadline time.Time, terminal Status) DeadlineState {
	switch terminal {
	case StatusVerified:
		return StateVerified
	case StatusRejected:
		return StateRejected
	}

	elapsed := now.Sub(deadline)
	switch {
	case elapsed >= ForfeitAfter:
		return StateForfeited
	case elapsed >= OverdueAfter:
		return StateOverdue
	case elapsed >= -ReminderWindow:
		return StateReminderSent
	default:
		return StatePending
	}
}
