package ports

import "time"

// CancelFunc cancels a scheduled call. It reports whether the call was
// cancelled before it ran.
type CancelFunc func() bool

// Scheduler abstracts delayed execution so confirmation checks and sell
// retries can be driven deterministically in tests instead of sleeping on
// the wall clock.
type Scheduler interface {
	// Schedule runs fn once after d. The returned CancelFunc stops the call
	// if it has not fired yet.
	Schedule(d time.Duration, fn func()) CancelFunc
}
