package session

import (
	"maps"
	"time"
)

// TimeTracker attributes wall-clock time to the question currently on screen.
// It is not safe for concurrent use; Session serializes access.
type TimeTracker struct {
	clock Clock
	spent map[string]float64

	activeKey   string
	activeSince time.Time
	active      bool
}

func NewTimeTracker(clock Clock) *TimeTracker {
	if clock == nil {
		clock = systemClock
	}
	return &TimeTracker{
		clock: clock,
		spent: make(map[string]float64),
	}
}

// OnQuestionChange flushes the interval of the outgoing question before the
// incoming one starts accruing. An empty newKey stops tracking.
func (t *TimeTracker) OnQuestionChange(newKey string) {
	now := t.clock()

	if t.active {
		t.spent[t.activeKey] += elapsedSeconds(t.activeSince, now)
	}

	if newKey == "" {
		t.activeKey = ""
		t.activeSince = time.Time{}
		t.active = false
		return
	}

	t.activeKey = newKey
	t.activeSince = now
	t.active = true
}

// Seed sets the accumulated time of key, used when restoring saved progress
func (t *TimeTracker) Seed(key string, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	t.spent[key] = seconds
}

// Snapshot returns a copy of the accumulated times with the running interval
// folded in. The tracker itself is not modified.
func (t *TimeTracker) Snapshot() map[string]float64 {
	snapshot := maps.Clone(t.spent)
	if t.active {
		snapshot[t.activeKey] += elapsedSeconds(t.activeSince, t.clock())
	}
	return snapshot
}

func (t *TimeTracker) Active() (string, time.Time, bool) {
	return t.activeKey, t.activeSince, t.active
}

func (t *TimeTracker) Reset() {
	clear(t.spent)
	t.activeKey = ""
	t.activeSince = time.Time{}
	t.active = false
}

func elapsedSeconds(since, now time.Time) float64 {
	d := now.Sub(since).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
