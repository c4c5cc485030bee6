package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SAP-F-2025/attempt-session-service/internal/middleware"
	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/services"
	"github.com/SAP-F-2025/attempt-session-service/internal/session"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAttemptSessionService is a mock implementation of services.AttemptSessionService
type MockAttemptSessionService struct {
	mock.Mock
}

func (m *MockAttemptSessionService) Open(ctx context.Context, attemptID, userID string) (*services.SessionView, error) {
	args := m.Called(ctx, attemptID, userID)
	view, _ := args.Get(0).(*services.SessionView)
	return view, args.Error(1)
}

func (m *MockAttemptSessionService) Get(ctx context.Context, attemptID, userID string) (*services.SessionView, error) {
	args := m.Called(ctx, attemptID, userID)
	view, _ := args.Get(0).(*services.SessionView)
	return view, args.Error(1)
}

func (m *MockAttemptSessionService) RecordAnswer(ctx context.Context, attemptID, userID, questionKey string, req *services.RecordAnswerRequest) (*models.AnswerState, error) {
	args := m.Called(ctx, attemptID, userID, questionKey, req)
	state, _ := args.Get(0).(*models.AnswerState)
	return state, args.Error(1)
}

func (m *MockAttemptSessionService) Navigate(ctx context.Context, attemptID, userID, questionKey string) error {
	return m.Called(ctx, attemptID, userID, questionKey).Error(0)
}

func (m *MockAttemptSessionService) ToggleReview(ctx context.Context, attemptID, userID, questionKey string) (bool, error) {
	args := m.Called(ctx, attemptID, userID, questionKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptSessionService) SetCompletion(ctx context.Context, attemptID, userID, questionKey string, completed bool) error {
	return m.Called(ctx, attemptID, userID, questionKey, completed).Error(0)
}

func (m *MockAttemptSessionService) AddFiles(ctx context.Context, attemptID, userID, questionKey string, uploads []models.Upload) (*session.AddFilesResult, error) {
	args := m.Called(ctx, attemptID, userID, questionKey, uploads)
	result, _ := args.Get(0).(*session.AddFilesResult)
	return result, args.Error(1)
}

func (m *MockAttemptSessionService) RemoveFile(ctx context.Context, attemptID, userID, questionKey, filename string) (bool, error) {
	args := m.Called(ctx, attemptID, userID, questionKey, filename)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptSessionService) Preview(ctx context.Context, attemptID, userID string) (models.SubmissionPayload, error) {
	args := m.Called(ctx, attemptID, userID)
	payload, _ := args.Get(0).(models.SubmissionPayload)
	return payload, args.Error(1)
}

func (m *MockAttemptSessionService) Save(ctx context.Context, attemptID, userID string) error {
	return m.Called(ctx, attemptID, userID).Error(0)
}

func (m *MockAttemptSessionService) Submit(ctx context.Context, attemptID, userID, reason string) (*services.SubmitResponse, error) {
	args := m.Called(ctx, attemptID, userID, reason)
	resp, _ := args.Get(0).(*services.SubmitResponse)
	return resp, args.Error(1)
}

func (m *MockAttemptSessionService) HandleTimeout(ctx context.Context, attemptID string) (*services.SubmitResponse, error) {
	args := m.Called(ctx, attemptID)
	resp, _ := args.Get(0).(*services.SubmitResponse)
	return resp, args.Error(1)
}

func (m *MockAttemptSessionService) AutoSaveDirty(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *MockAttemptSessionService) SubmitExpired(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *MockAttemptSessionService) TimeReport(ctx context.Context, attemptID, userID string) ([]byte, error) {
	args := m.Called(ctx, attemptID, userID)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockAttemptSessionService) Shutdown(ctx context.Context) {
	m.Called(ctx)
}

func newTestRouter(svc services.AttemptSessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := utils.NewSlogLogger(slog.New(slog.DiscardHandler))

	router := gin.New()
	router.Use(utils.ContextLogger(logger))
	NewHandlerManager(svc, logger).SetupRoutes(router, middleware.Auth(nil, logger))
	return router
}

func doRequest(router *gin.Engine, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-User-ID", "stu-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAttemptSessionHandler_OpenSession(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)

	svc.On("Open", mock.Anything, "ATT-1", "stu-1").Return(&services.SessionView{
		AttemptID:   "ATT-1",
		SavedStatus: models.StatusSaved,
	}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/ATT-1/session", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data services.SessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ATT-1", resp.Data.AttemptID)
	assert.Equal(t, models.StatusSaved, resp.Data.SavedStatus)
}

func TestAttemptSessionHandler_RequiresUser(t *testing.T) {
	router := newTestRouter(&MockAttemptSessionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/ATT-1/session", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAttemptSessionHandler_RecordAnswer(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)

	answer := "opt-a"
	svc.On("RecordAnswer", mock.Anything, "ATT-1", "stu-1", "q1", mock.MatchedBy(func(req *services.RecordAnswerRequest) bool {
		return req.QuestionType == models.MultipleChoice && req.Option != nil && req.Option.ID == "opt-a"
	})).Return(&models.AnswerState{LocalKey: "q1", UserAnswer: &answer, Completed: true}, nil)

	body := []byte(`{"question_type":"multiple_choice","option":{"id":"opt-a","text":"A"}}`)
	w := doRequest(router, http.MethodPut, "/api/v1/attempts/ATT-1/answers/q1", body, "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed":true`)

	w = doRequest(router, http.MethodPut, "/api/v1/attempts/ATT-1/answers/q1", []byte(`{`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttemptSessionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not open", services.ErrSessionNotOpen, http.StatusNotFound},
		{"unknown question", session.ErrUnknownQuestion, http.StatusNotFound},
		{"type mismatch", session.ErrQuestionTypeMismatch, http.StatusBadRequest},
		{"malformed option", session.ErrMalformedOption, http.StatusBadRequest},
		{"submitted", services.ErrAttemptAlreadySubmitted, http.StatusConflict},
		{"expired", services.ErrAttemptTimeExpired, http.StatusGone},
		{"forbidden", services.NewPermissionError("stu-1", "ATT-1", "attempt", "view", "not yours"), http.StatusForbidden},
		{"business rule", services.NewBusinessRuleError("attempt_has_questions", "empty", nil), http.StatusUnprocessableEntity},
		{"backend", services.ErrBackendFailure, http.StatusBadGateway},
		{"other", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockAttemptSessionService{}
			svc.On("Get", mock.Anything, "ATT-1", "stu-1").Return(nil, tt.err)

			w := doRequest(newTestRouter(svc), http.MethodGet, "/api/v1/attempts/ATT-1/session", nil, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAttemptSessionHandler_Navigate(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)
	svc.On("Navigate", mock.Anything, "ATT-1", "stu-1", "").Return(nil)

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/ATT-1/navigate", []byte(`{"question_key":""}`), "application/json")
	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestAttemptSessionHandler_SetCompletion(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)
	svc.On("SetCompletion", mock.Anything, "ATT-1", "stu-1", "q2", false).Return(nil)

	w := doRequest(router, http.MethodPut, "/api/v1/attempts/ATT-1/completion/q2", []byte(`{"completed":false}`), "application/json")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/attempts/ATT-1/completion/q2", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "SetCompletion", 1)
}

func TestAttemptSessionHandler_AddFilesMultipart(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)

	svc.On("AddFiles", mock.Anything, "ATT-1", "stu-1", "q2", mock.MatchedBy(func(uploads []models.Upload) bool {
		if len(uploads) != 2 || uploads[0].Filename != "a.png" || uploads[1].Token != "1700000000" {
			return false
		}
		rc, err := uploads[0].Open()
		if err != nil {
			return false
		}
		defer rc.Close()
		return uploads[0].Token == "3"
	})).Return(&session.AddFilesResult{Added: []models.FileInfo{{Filename: "a.png"}, {Filename: "b.png"}}}, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range []string{"a.png", "b.png"} {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte("png"))
	}
	require.NoError(t, writer.WriteField("tokens", ""))
	require.NoError(t, writer.WriteField("tokens", "1700000000"))
	require.NoError(t, writer.Close())

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/ATT-1/files/q2", body.Bytes(), writer.FormDataContentType())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2 of 2 files attached")
}

func TestAttemptSessionHandler_AddCapturedImage(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)

	svc.On("AddFiles", mock.Anything, "ATT-1", "stu-1", "q2", mock.MatchedBy(func(uploads []models.Upload) bool {
		return len(uploads) == 1 && uploads[0].MIMEType == "image/png" && string(uploads[0].Data) == "png-bytes"
	})).Return(&session.AddFilesResult{Failed: []models.ProcessingState{{Status: models.ProcessingFailure}}}, nil)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	w := doRequest(router, http.MethodPost, "/api/v1/attempts/ATT-1/files/q2",
		[]byte(`{"data_url":"`+dataURL+`","filename":"canvas.png"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/attempts/ATT-1/files/q2",
		[]byte(`{"data_url":"not-a-data-url"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "AddFiles", 1)
}

func TestAttemptSessionHandler_RemoveFile(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)
	svc.On("RemoveFile", mock.Anything, "ATT-1", "stu-1", "q2", "a.png").Return(true, nil)
	svc.On("RemoveFile", mock.Anything, "ATT-1", "stu-1", "q2", "zz.png").Return(false, nil)

	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/api/v1/attempts/ATT-1/files/q2/a.png", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/api/v1/attempts/ATT-1/files/q2/zz.png", nil, "").Code)
}

func TestAttemptSessionHandler_Submit(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)
	svc.On("Submit", mock.Anything, "ATT-1", "stu-1", "").Return(&services.SubmitResponse{AttemptID: "ATT-1", Reason: models.EndReasonSubmitted}, nil)
	svc.On("Submit", mock.Anything, "ATT-1", "stu-1", "time_out").Return(&services.SubmitResponse{AttemptID: "ATT-1", Reason: models.EndReasonTimeout}, nil)

	w := doRequest(router, http.MethodPost, "/api/v1/attempts/ATT-1/submit", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"submitted"`)

	w = doRequest(router, http.MethodPost, "/api/v1/attempts/ATT-1/submit", []byte(`{"reason":"time_out"}`), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"time_out"`)
}

func TestAttemptSessionHandler_TimeReport(t *testing.T) {
	svc := &MockAttemptSessionService{}
	router := newTestRouter(svc)
	svc.On("TimeReport", mock.Anything, "ATT-1", "stu-1").Return([]byte("xlsx"), nil)

	w := doRequest(router, http.MethodGet, "/api/v1/attempts/ATT-1/report", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(w.Header().Get("Content-Disposition"), "attempt-ATT-1-time.xlsx"))
	assert.Equal(t, "xlsx", w.Body.String())
}

func TestHealthCheck(t *testing.T) {
	w := doRequest(newTestRouter(&MockAttemptSessionService{}), http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attempt-session-service")
}
