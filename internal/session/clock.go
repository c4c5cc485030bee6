package session

import "time"

// Clock returns the current time. Tests replace it to drive the time tracker.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
