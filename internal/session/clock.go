package session

import "time"

// Timer is a pending callback created by [Clock.AfterFunc].
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call stopped the timer.
	Stop() bool
}

// Clock is the time source of a [Manager].
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock returns a [Clock] backed by the time package.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
