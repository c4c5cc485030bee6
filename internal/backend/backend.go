// Package backend talks to the remote learning platform that owns attempts,
// saved progress and grading.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
)

var ErrAttemptNotFound = errors.New("attempt not found on backend")

// AttemptBackend is the remote collaborator of an attempt session
type AttemptBackend interface {
	FetchAttempt(ctx context.Context, attemptID string) (*models.Attempt, error)
	SaveProgress(ctx context.Context, attemptID string, answers models.SavedAnswers) error
	Submit(ctx context.Context, attemptID string, payload models.SubmissionPayload) (*models.SubmitResult, error)
}

// RemoteError is a non-2xx answer from the backend
type RemoteError struct {
	Method string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backend method %s failed with status %d: %s", e.Method, e.Status, e.Body)
}

// IsRetryable reports whether the failure is worth another try later
func (e *RemoteError) IsRetryable() bool {
	return e.Status >= 500 || e.Status == 429
}
