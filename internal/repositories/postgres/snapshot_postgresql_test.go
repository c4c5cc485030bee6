package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestSnapshotPostgreSQL_Snapshots(t *testing.T) {
	repo := NewSnapshotPostgreSQL(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateSnapshot(ctx, &models.ProgressSnapshot{
			AttemptID:     "ATT-1",
			UserID:        "student",
			Answers:       datatypes.JSON(`{"Q1":{"user_answer":"a"}}`),
			AnsweredCount: i + 1,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.CreateSnapshot(ctx, &models.ProgressSnapshot{AttemptID: "ATT-2", UserID: "other", CreatedAt: base}))

	latest, err := repo.LatestSnapshot(ctx, "ATT-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.AnsweredCount)
	assert.JSONEq(t, `{"Q1":{"user_answer":"a"}}`, string(latest.Answers))

	_, err = repo.LatestSnapshot(ctx, "missing")
	assert.True(t, IsNotFoundError(err))

	list, total, err := repo.ListSnapshots(ctx, repositories.SnapshotFilters{AttemptID: "ATT-1", Limit: 2, SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].AnsweredCount)

	from := base.Add(90 * time.Second)
	list, total, err = repo.ListSnapshots(ctx, repositories.SnapshotFilters{UserID: "student", DateFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 3, list[0].AnsweredCount)
}

func TestSnapshotPostgreSQL_Submissions(t *testing.T) {
	repo := NewSnapshotPostgreSQL(newTestDB(t))
	ctx := context.Background()

	has, err := repo.HasSubmission(ctx, "ATT-1")
	require.NoError(t, err)
	assert.False(t, has)

	record := &models.SubmissionRecord{
		AttemptID:     "ATT-1",
		UserID:        "student",
		Reason:        models.EndReasonTimeout,
		Payload:       datatypes.JSON(`{"q1":{"userAnswer":null,"timeSpent":0}}`),
		QuestionCount: 1,
		SubmittedAt:   time.Now(),
	}
	require.NoError(t, repo.CreateSubmission(ctx, record))
	assert.NotZero(t, record.ID)

	has, err = repo.HasSubmission(ctx, "ATT-1")
	require.NoError(t, err)
	assert.True(t, has)

	got, err := repo.GetSubmission(ctx, "ATT-1")
	require.NoError(t, err)
	assert.Equal(t, models.EndReasonTimeout, got.Reason)

	// one submission per attempt
	assert.Error(t, repo.CreateSubmission(ctx, &models.SubmissionRecord{AttemptID: "ATT-1", UserID: "student"}))
}
