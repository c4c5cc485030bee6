package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/go-resty/resty/v2"
)

type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	Retries   int

	FetchMethod  string
	SaveMethod   string
	SubmitMethod string
}

// RestyBackend calls whitelisted RPC methods as POST {base}/api/method/{method}.
// Responses are wrapped in a {"message": ...} envelope.
type RestyBackend struct {
	client *resty.Client
	config Config
	logger *slog.Logger
}

type envelope[T any] struct {
	Message T `json:"message"`
}

type attemptResponse struct {
	Name         string                        `json:"name"`
	Test         string                        `json:"test"`
	Student      string                        `json:"student"`
	Title        string                        `json:"title"`
	Status       string                        `json:"status"`
	Duration     int                           `json:"duration"`
	StartedAt    *time.Time                    `json:"started_at"`
	Questions    []questionResponse            `json:"questions"`
	SavedAnswers map[string]models.SavedAnswer `json:"saved_answers"`
}

type questionResponse struct {
	Name     string  `json:"name"`
	Question string  `json:"question"`
	Type     string  `json:"question_type"`
	Title    string  `json:"title"`
	Marks    float64 `json:"marks"`
}

type submitResponse struct {
	Status   string   `json:"status"`
	Score    *float64 `json:"score"`
	MaxScore *float64 `json:"max_score"`
}

func NewRestyBackend(config Config, logger *slog.Logger) *RestyBackend {
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(config.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// saves and submits are not idempotent, only fetches are retried
			if resp == nil || resp.Request == nil || !isFetch(resp.Request, config.FetchMethod) {
				return false
			}
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})

	if config.APIKey != "" {
		client.SetHeader("Authorization", fmt.Sprintf("token %s:%s", config.APIKey, config.APISecret))
	}

	return &RestyBackend{client: client, config: config, logger: logger}
}

func isFetch(req *resty.Request, method string) bool {
	return strings.HasSuffix(req.URL, "/api/method/"+method)
}

func (b *RestyBackend) call(ctx context.Context, method string, body, result any) error {
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post("/api/method/" + method)
	if err != nil {
		return fmt.Errorf("backend method %s: %w", method, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return ErrAttemptNotFound
	}
	if resp.IsError() {
		b.logger.WarnContext(ctx, "Backend call failed",
			"method", method,
			"status", resp.StatusCode(),
			"duration", resp.Time())
		return &RemoteError{Method: method, Status: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}

	b.logger.DebugContext(ctx, "Backend call succeeded", "method", method, "duration", resp.Time())
	return nil
}

func (b *RestyBackend) FetchAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	var out envelope[attemptResponse]
	if err := b.call(ctx, b.config.FetchMethod, map[string]any{"attempt_id": attemptID}, &out); err != nil {
		return nil, err
	}
	if out.Message.Name == "" {
		return nil, ErrAttemptNotFound
	}

	msg := out.Message
	attempt := &models.Attempt{
		ID:           msg.Name,
		TestID:       msg.Test,
		StudentID:    msg.Student,
		Title:        msg.Title,
		Status:       msg.Status,
		TimeLimit:    msg.Duration,
		StartedAt:    msg.StartedAt,
		SavedAnswers: models.SavedAnswers(msg.SavedAnswers),
		Questions:    make([]models.Question, 0, len(msg.Questions)),
	}
	for _, q := range msg.Questions {
		attempt.Questions = append(attempt.Questions, models.Question{
			BackendKey: q.Name,
			LocalKey:   q.Question,
			Type:       normalizeType(q.Type),
			Title:      q.Title,
			Points:     q.Marks,
		})
	}
	return attempt, nil
}

func (b *RestyBackend) SaveProgress(ctx context.Context, attemptID string, answers models.SavedAnswers) error {
	var out envelope[any]
	return b.call(ctx, b.config.SaveMethod, map[string]any{
		"attempt_id": attemptID,
		"answers":    answers,
	}, &out)
}

func (b *RestyBackend) Submit(ctx context.Context, attemptID string, payload models.SubmissionPayload) (*models.SubmitResult, error) {
	var out envelope[submitResponse]
	err := b.call(ctx, b.config.SubmitMethod, map[string]any{
		"attempt_id": attemptID,
		"answers":    payload,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &models.SubmitResult{
		AttemptID: attemptID,
		Status:    out.Message.Status,
		Score:     out.Message.Score,
		MaxScore:  out.Message.MaxScore,
	}, nil
}

// normalizeType maps the platform's display names onto question types
func normalizeType(v string) models.QuestionType {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "multiple choice", "multiple_choice", "choices", "mcq":
		return models.MultipleChoice
	case "short answer", "short_answer", "user input":
		return models.ShortAnswer
	case "long answer", "long_answer", "essay", "open ended":
		return models.LongAnswer
	case "drawing", "canvas":
		return models.Drawing
	default:
		return models.QuestionType(v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsRetryable reports whether err is a transient backend failure
func IsRetryable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.IsRetryable()
	}
	return err != nil && !errors.Is(err, ErrAttemptNotFound) && !errors.Is(err, context.Canceled)
}
