package validator

import (
	"errors"
	"testing"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitRequest struct {
	Reason string `json:"reason" validate:"required,end_reason"`
}

func TestValidator_CustomTags(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&submitRequest{Reason: models.EndReasonTimeout}))

	err := v.Validate(&submitRequest{Reason: "abandoned"})
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "reason", errs[0].Field)
	assert.Equal(t, "end_reason", errs[0].Rule)
}

func TestQuestionValidator_ValidateBatch(t *testing.T) {
	v := New().Question()

	valid := []models.Question{
		{BackendKey: "D1", LocalKey: "q1", Type: models.MultipleChoice},
		{BackendKey: "D2", LocalKey: "q2", Type: models.Drawing},
	}
	assert.NoError(t, v.ValidateBatch(valid))

	err := v.ValidateBatch([]models.Question{{BackendKey: "D1", LocalKey: "q1", Type: "matching"}})
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, "question_type", errs[0].Field)

	err = v.ValidateBatch([]models.Question{
		{BackendKey: "D1", LocalKey: "q1", Type: models.ShortAnswer},
		{BackendKey: "D2", LocalKey: "q1", Type: models.ShortAnswer},
	})
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, "local_key", errs[0].Field)
	assert.Equal(t, "unique", errs[0].Rule)

	err = v.ValidateBatch([]models.Question{{BackendKey: "D1", LocalKey: "q1", Type: models.Drawing, Points: -2}})
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, "gte", errs[0].Rule)
}
