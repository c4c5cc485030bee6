package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kinds of attempt session events
type EventType string

const (
	EventAttemptOpened        EventType = "attempt.opened"
	EventAttemptProgressSaved EventType = "attempt.progress_saved"
	EventAttemptSubmitted     EventType = "attempt.submitted"
	EventAttemptTimedOut      EventType = "attempt.timed_out"
	EventAttachmentFailed     EventType = "attachment.failed"
)

const (
	eventSource  = "attempt-session-service"
	eventVersion = "1.0"
)

// AttemptEvent is the envelope published for every attempt session event
type AttemptEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Version   string         `json:"version"`
	Data      any            `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type AttemptOpenedEvent struct {
	AttemptID     string     `json:"attempt_id"`
	TestID        string     `json:"test_id"`
	UserID        string     `json:"user_id"`
	QuestionCount int        `json:"question_count"`
	Restored      int        `json:"restored"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
}

type ProgressSavedEvent struct {
	AttemptID     string `json:"attempt_id"`
	UserID        string `json:"user_id"`
	AnsweredCount int    `json:"answered_count"`
	TotalSeconds  int    `json:"total_seconds"`
}

type AttemptSubmittedEvent struct {
	AttemptID     string    `json:"attempt_id"`
	TestID        string    `json:"test_id"`
	UserID        string    `json:"user_id"`
	Reason        string    `json:"reason"`
	SubmittedAt   time.Time `json:"submitted_at"`
	QuestionCount int       `json:"question_count"`
	AnsweredCount int       `json:"answered_count"`
	TotalSeconds  int       `json:"total_seconds"`
	Score         *float64  `json:"score,omitempty"`
}

type AttachmentFailedEvent struct {
	AttemptID   string `json:"attempt_id"`
	QuestionKey string `json:"question_key"`
	Filename    string `json:"filename"`
	Error       string `json:"error"`
}

func newEvent(eventType EventType, data any) *AttemptEvent {
	return &AttemptEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewAttemptOpenedEvent(data AttemptOpenedEvent) *AttemptEvent {
	return newEvent(EventAttemptOpened, data)
}

func NewProgressSavedEvent(data ProgressSavedEvent) *AttemptEvent {
	return newEvent(EventAttemptProgressSaved, data)
}

// NewAttemptSubmittedEvent picks the timed-out type when the attempt ended by running out of time
func NewAttemptSubmittedEvent(data AttemptSubmittedEvent, timedOut bool) *AttemptEvent {
	if timedOut {
		return newEvent(EventAttemptTimedOut, data)
	}
	return newEvent(EventAttemptSubmitted, data)
}

func NewAttachmentFailedEvent(data AttachmentFailedEvent) *AttemptEvent {
	return newEvent(EventAttachmentFailed, data)
}

func GenerateEventID() string {
	return uuid.NewString()
}
