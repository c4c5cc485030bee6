package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotPostgreSQL struct {
	db *gorm.DB
}

func NewSnapshotPostgreSQL(db *gorm.DB) repositories.SnapshotRepository {
	return &SnapshotPostgreSQL{db: db}
}

// AutoMigrate creates or updates the tables owned by this repository
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ProgressSnapshot{}, &models.SubmissionRecord{})
}

func (s *SnapshotPostgreSQL) CreateSnapshot(ctx context.Context, snapshot *models.ProgressSnapshot) error {
	return s.db.WithContext(ctx).Create(snapshot).Error
}

func (s *SnapshotPostgreSQL) LatestSnapshot(ctx context.Context, attemptID string) (*models.ProgressSnapshot, error) {
	var snapshot models.ProgressSnapshot
	if err := s.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("created_at DESC").Order("id DESC").
		First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *SnapshotPostgreSQL) ListSnapshots(ctx context.Context, filters repositories.SnapshotFilters) ([]*models.ProgressSnapshot, int64, error) {
	var snapshots []*models.ProgressSnapshot
	var total int64

	query := s.db.WithContext(ctx).Model(&models.ProgressSnapshot{})
	if filters.AttemptID != "" {
		query = query.Where("attempt_id = ?", filters.AttemptID)
	}
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	desc := !strings.EqualFold(filters.SortOrder, "asc")
	query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})

	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query = query.Limit(limit)
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&snapshots).Error; err != nil {
		return nil, 0, err
	}
	return snapshots, total, nil
}

func (s *SnapshotPostgreSQL) CreateSubmission(ctx context.Context, record *models.SubmissionRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *SnapshotPostgreSQL) GetSubmission(ctx context.Context, attemptID string) (*models.SubmissionRecord, error) {
	var record models.SubmissionRecord
	if err := s.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SnapshotPostgreSQL) HasSubmission(ctx context.Context, attemptID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SubmissionRecord{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsNotFoundError reports whether err means the record does not exist
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
