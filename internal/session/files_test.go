package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedEncoder blocks every encode until release is closed
type gatedEncoder struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedEncoder() *gatedEncoder {
	return &gatedEncoder{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (e *gatedEncoder) Encode(ctx context.Context, upload models.Upload) (models.FileAttachment, error) {
	e.calls.Add(1)
	e.started <- struct{}{}
	<-e.release
	if ctx.Err() != nil {
		return models.FileAttachment{}, ctx.Err()
	}
	if strings.HasPrefix(upload.Filename, "bad") {
		return models.FileAttachment{}, errors.New("corrupt image")
	}
	return models.FileAttachment{Filename: upload.Filename, MIMEType: "image/png", Size: upload.Size, Data: upload.Data}, nil
}

func TestFileStore_MarkersAndOrder(t *testing.T) {
	clock := newFakeClock()
	encoder := newGatedEncoder()
	store := NewFileStore(encoder, clock.Now, 2)

	uploads := []models.Upload{
		{Filename: "a.png", Size: 3, Data: []byte("aaa")},
		{Filename: "bad.png", Size: 1, Data: []byte("b")},
		{Filename: "c.png", Size: 2, Data: []byte("cc")},
	}

	done := make(chan AddFilesResult)
	go func() {
		done <- store.AddFiles(context.Background(), "q2", uploads)
	}()

	<-encoder.started
	pending, ok := store.ProcessingState(models.ProcessingKey{QuestionKey: "q2", Filename: "a.png", Token: "3"})
	require.True(t, ok)
	assert.Equal(t, models.ProcessingPending, pending.Status)

	close(encoder.release)
	result := <-done

	require.Len(t, result.Added, 2)
	assert.Equal(t, "a.png", result.Added[0].Filename)
	assert.Equal(t, "c.png", result.Added[1].Filename)
	assert.Equal(t, clock.Now(), result.Added[0].AddedAt)

	require.Len(t, result.Failed, 1)
	assert.Equal(t, models.ProcessingFailure, result.Failed[0].Status)
	assert.Equal(t, "corrupt image", result.Failed[0].Error)

	markers := store.Processing()
	assert.Len(t, markers, 3)
	assert.Equal(t, models.ProcessingSuccess, markers[result.Keys[0]].Status)
	assert.Equal(t, models.ProcessingFailure, markers[result.Keys[1]].Status)
	assert.Equal(t, "q2|bad.png|1", result.Keys[1].String())
	assert.Equal(t, 2, store.Count("q2"))
}

func TestFileStore_EncodeSurvivesCancelledContext(t *testing.T) {
	encoder := newGatedEncoder()
	store := NewFileStore(encoder, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan AddFilesResult)
	go func() {
		done <- store.AddFiles(ctx, "q2", []models.Upload{{Filename: "a.png", Size: 1, Data: []byte("a")}})
	}()

	<-encoder.started
	cancel()
	close(encoder.release)

	result := <-done
	assert.Len(t, result.Added, 1)
	assert.Equal(t, 1, store.Count("q2"))
}

func TestFileStore_ResetDropsInFlightEncodes(t *testing.T) {
	encoder := newGatedEncoder()
	store := NewFileStore(encoder, nil, 1)

	done := make(chan AddFilesResult)
	go func() {
		done <- store.AddFiles(context.Background(), "q2", []models.Upload{{Filename: "a.png", Size: 1, Data: []byte("a")}})
	}()

	<-encoder.started
	store.Reset()
	close(encoder.release)
	<-done

	assert.Zero(t, store.Count("q2"))
	assert.Empty(t, store.Processing())
}

func TestFileStore_RemoveFirstMatch(t *testing.T) {
	store := NewFileStore(NewContentEncoder(0), nil, 0)
	result := store.AddFiles(context.Background(), "q2", []models.Upload{
		{Filename: "same.png", MIMEType: "image/png", Size: 1, Token: "t1", Data: pngHeader},
		{Filename: "same.png", MIMEType: "image/png", Size: 1, Token: "t2", Data: append([]byte{}, pngHeader...)},
		{Filename: "other.pdf", Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("%PDF-1.4\n%test\n")), nil
		}},
	})
	require.Len(t, result.Added, 3)
	assert.Equal(t, "application/pdf", result.Added[2].MIMEType)
	assert.NotEqual(t, result.Keys[0], result.Keys[1])

	removed, remaining := store.RemoveFile("q2", "same.png")
	assert.True(t, removed)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, "same.png", store.Attachments("q2")[0].Filename)

	removed, remaining = store.RemoveFile("q2", "nothing.png")
	assert.False(t, removed)
	assert.Equal(t, 2, remaining)

	store.RemoveFile("q2", "same.png")
	store.RemoveFile("q2", "other.pdf")
	assert.Zero(t, store.Count("q2"))
	assert.Nil(t, store.Attachments("q2"))
}
