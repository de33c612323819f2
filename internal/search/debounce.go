package search

import "time"

// Timer is a scheduled callback that can be canceled before it runs.
type Timer interface {
	Stop() bool
}

// Scheduler arms debounce timers. Tests substitute a manual scheduler so
// debounce behavior does not depend on wall-clock time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// ClockScheduler schedules on the runtime timer.
type ClockScheduler struct{}

func (ClockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
