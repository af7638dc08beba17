package domain

import "github.com/jonboulle/clockwork"

// clock is the package-level wall clock read by the seasonal rule.
// Tests freeze the month with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used by Analyze. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
