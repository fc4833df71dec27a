package auction

import "time"

const (
	// ExtensionWindow is how close to the end a bid must land to trigger
	// an anti-sniping extension.
	ExtensionWindow = 5 * time.Minute

	// ExtensionAmount is how far each extension pushes the end time.
	ExtensionAmount = 2 * time.Minute

	// IdleCloseWindow is the quiet period after the last bid beyond which
	// an auction is considered closeable early.
	IdleCloseWindow = 5 * time.Minute
)

// ShouldExtend reports whether a bid landing at now is inside the
// anti-sniping window. There is no cap on how often an auction extends.
func ShouldExtend(endTime, now time.Time) bool {
	return endTime.Sub(now) < ExtensionWindow && endTime.After(now)
}

// CloseableEarly reports whether the auction has gone quiet for long enough
// to be finalized ahead of its end time. Advisory only: nothing invokes it
// automatically.
func CloseableEarly(lastBidAt, now time.Time) bool {
	return now.Sub(lastBidAt) >= IdleCloseWindow
}
