package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
)

type SnapshotFilters struct {
	AttemptID string     `json:"attempt_id"`
	UserID    string     `json:"user_id"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

// SnapshotRepository persists auto-save snapshots and submission audit records
type SnapshotRepository interface {
	CreateSnapshot(ctx context.Context, snapshot *models.ProgressSnapshot) error
	LatestSnapshot(ctx context.Context, attemptID string) (*models.ProgressSnapshot, error)
	ListSnapshots(ctx context.Context, filters SnapshotFilters) ([]*models.ProgressSnapshot, int64, error)

	CreateSubmission(ctx context.Context, record *models.SubmissionRecord) error
	GetSubmission(ctx context.Context, attemptID string) (*models.SubmissionRecord, error)
	HasSubmission(ctx context.Context, attemptID string) (bool, error)
}
