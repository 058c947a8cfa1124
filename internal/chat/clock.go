package chat

import "time"

// Clock abstracts timer scheduling so the reveal and progress loops can run
// against deterministic time in tests.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run after d. The returned Timer stops the
	// callback if it has not fired yet.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop reports whether the callback was prevented from running.
	Stop() bool
}

type systemClock struct{}

// SystemClock returns the wall-clock implementation used outside tests.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
