package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/session"
)

// AttemptSessionService holds the live answer state of open attempts and
// forwards progress and submissions to the backend
type AttemptSessionService interface {
	Open(ctx context.Context, attemptID, userID string) (*SessionView, error)
	Get(ctx context.Context, attemptID, userID string) (*SessionView, error)

	RecordAnswer(ctx context.Context, attemptID, userID, questionKey string, req *RecordAnswerRequest) (*models.AnswerState, error)
	Navigate(ctx context.Context, attemptID, userID, questionKey string) error
	ToggleReview(ctx context.Context, attemptID, userID, questionKey string) (bool, error)
	SetCompletion(ctx context.Context, attemptID, userID, questionKey string, completed bool) error
	AddFiles(ctx context.Context, attemptID, userID, questionKey string, uploads []models.Upload) (*session.AddFilesResult, error)
	RemoveFile(ctx context.Context, attemptID, userID, questionKey, filename string) (bool, error)

	Preview(ctx context.Context, attemptID, userID string) (models.SubmissionPayload, error)
	Save(ctx context.Context, attemptID, userID string) error
	Submit(ctx context.Context, attemptID, userID, reason string) (*SubmitResponse, error)
	HandleTimeout(ctx context.Context, attemptID string) (*SubmitResponse, error)

	AutoSaveDirty(ctx context.Context) int
	SubmitExpired(ctx context.Context) int

	TimeReport(ctx context.Context, attemptID, userID string) ([]byte, error)
	Shutdown(ctx context.Context)
}

// RecordAnswerRequest carries exactly the field matching QuestionType
type RecordAnswerRequest struct {
	QuestionType models.QuestionType `json:"question_type" validate:"required,question_type"`
	Option       *models.Option      `json:"option,omitempty"`
	Text         *string             `json:"text,omitempty"`
	Drawing      *string             `json:"drawing,omitempty"`
}

type SubmitRequest struct {
	Reason string `json:"reason" validate:"omitempty,end_reason"`
}

type SessionView struct {
	AttemptID        string                   `json:"attempt_id"`
	TestID           string                   `json:"test_id"`
	Title            string                   `json:"title"`
	SavedStatus      models.SavedStatus       `json:"saved_status"`
	Questions        []models.AnswerState     `json:"questions"`
	CompletedCount   int                      `json:"completed_count"`
	ReviewCount      int                      `json:"review_count"`
	EndsAt           *time.Time               `json:"ends_at,omitempty"`
	RemainingSeconds *int                     `json:"remaining_seconds,omitempty"`
	Processing       []models.ProcessingState `json:"processing,omitempty"`
	Skipped          []string                 `json:"skipped,omitempty"`
}

type SubmitResponse struct {
	AttemptID     string               `json:"attempt_id"`
	Reason        string               `json:"reason"`
	QuestionCount int                  `json:"question_count"`
	AnsweredCount int                  `json:"answered_count"`
	TotalSeconds  int                  `json:"total_seconds"`
	Result        *models.SubmitResult `json:"result"`
}
