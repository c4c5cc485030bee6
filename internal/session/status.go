package session

import (
	"sync"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
)

// StatusFeed publishes saved-status changes to typed subscribers.
// Each subscriber only ever sees the latest value; stale pending values are replaced.
type StatusFeed struct {
	mu          sync.Mutex
	status      models.SavedStatus
	subscribers map[int]chan models.SavedStatus
	nextID      int
}

func NewStatusFeed(initial models.SavedStatus) *StatusFeed {
	return &StatusFeed{
		status:      initial,
		subscribers: make(map[int]chan models.SavedStatus),
	}
}

func (f *StatusFeed) Status() models.SavedStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Subscribe returns a channel receiving status changes and a cancel function
// that closes it.
func (f *StatusFeed) Subscribe() (<-chan models.SavedStatus, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan models.SavedStatus, 1)
	f.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subscribers[id]; ok {
				delete(f.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (f *StatusFeed) Set(status models.SavedStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status == status {
		return
	}
	f.status = status

	for _, ch := range f.subscribers {
		select {
		case ch <- status:
		default:
			// drop the stale value, keep the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- status:
			default:
			}
		}
	}
}

// Close closes every subscriber channel
func (f *StatusFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subscribers {
		delete(f.subscribers, id)
		close(ch)
	}
}
