package session

import (
	"testing"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestStatusFeed(t *testing.T) {
	feed := NewStatusFeed(models.StatusSaved)
	updates, cancel := feed.Subscribe()

	feed.Set(models.StatusSaved)
	select {
	case s := <-updates:
		t.Fatalf("unexpected update %s", s)
	default:
	}

	feed.Set(models.StatusUnsaved)
	feed.Set(models.StatusSaving)
	assert.Equal(t, models.StatusSaving, <-updates, "only the latest value is kept")
	assert.Equal(t, models.StatusSaving, feed.Status())

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)

	other, _ := feed.Subscribe()
	feed.Close()
	_, open = <-other
	assert.False(t, open)
}
