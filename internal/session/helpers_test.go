package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func str(s string) *string { return &s }

func secs(f float64) *float64 { return &f }

func sampleQuestions() []models.Question {
	return []models.Question{
		{BackendKey: "Q1", LocalKey: "q1", Type: models.MultipleChoice},
		{BackendKey: "Q2", LocalKey: "q2", Type: models.LongAnswer},
		{BackendKey: "Q3", LocalKey: "q3", Type: models.ShortAnswer},
		{BackendKey: "Q4", LocalKey: "q4", Type: models.Drawing},
	}
}

func newTestSession(clock *fakeClock) *Session {
	return New("attempt-1", Options{
		Clock:  clock.Now,
		Logger: discardLogger(),
	})
}

func pngUpload(name string) models.Upload {
	return models.Upload{Filename: name, MIMEType: "image/png", Size: int64(len(pngHeader)), Data: pngHeader}
}
