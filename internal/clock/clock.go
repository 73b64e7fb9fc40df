// Package clock is the time source for a game session: "now" and
// delayed callbacks. Loop runs callbacks on a single goroutine for
// production; Fake is advanced by hand in tests.
package clock

import "time"

// Clock is everything the game core needs from time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a scheduled callback. Stop reports whether the call
// prevented the callback from running.
type Timer interface {
	Stop() bool
}
