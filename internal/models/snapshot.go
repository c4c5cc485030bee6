package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgressSnapshot records every successful auto-save of a session
type ProgressSnapshot struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	AttemptID     string         `json:"attempt_id" gorm:"not null;index;size:140"`
	UserID        string         `json:"user_id" gorm:"not null;index;size:255"`
	Answers       datatypes.JSON `json:"answers" gorm:"type:jsonb"`
	AnsweredCount int            `json:"answered_count"`
	TotalSeconds  int            `json:"total_seconds"`
	CreatedAt     time.Time      `json:"created_at" gorm:"index"`
}

func (ProgressSnapshot) TableName() string {
	return "progress_snapshots"
}

// SubmissionRecord is the audit copy of a payload sent to the grading endpoint
type SubmissionRecord struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	AttemptID     string         `json:"attempt_id" gorm:"not null;uniqueIndex;size:140"`
	UserID        string         `json:"user_id" gorm:"not null;index;size:255"`
	Reason        string         `json:"reason" gorm:"size:32"`
	Payload       datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	QuestionCount int            `json:"question_count"`
	AnsweredCount int            `json:"answered_count"`
	TotalSeconds  int            `json:"total_seconds"`
	RemoteStatus  string         `json:"remote_status" gorm:"size:64"`
	SubmittedAt   time.Time      `json:"submitted_at"`
}

func (SubmissionRecord) TableName() string {
	return "submission_records"
}
