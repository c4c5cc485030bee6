package models

import "time"

const (
	EndReasonSubmitted = "submitted"
	EndReasonTimeout   = "time_out"
)

// Attempt is one student taking one test, as supplied by the backend
type Attempt struct {
	ID           string       `json:"id"`
	TestID       string       `json:"test_id"`
	StudentID    string       `json:"student_id"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	Questions    []Question   `json:"questions"`
	SavedAnswers SavedAnswers `json:"saved_answers"`
	// TimeLimit is in seconds, zero means unlimited
	TimeLimit int        `json:"time_limit"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// EndsAt returns when the attempt runs out of time, nil if untimed
func (a *Attempt) EndsAt() *time.Time {
	if a.TimeLimit <= 0 || a.StartedAt == nil {
		return nil
	}
	end := a.StartedAt.Add(time.Duration(a.TimeLimit) * time.Second)
	return &end
}
