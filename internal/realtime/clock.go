package realtime

import "time"

// Timer is the subset of *time.Timer the coordinator needs. Tests install a
// manual implementation so debounce behavior is asserted without sleeping.
type Timer interface {
	Reset(d time.Duration) bool
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
