package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/services"
	"github.com/SAP-F-2025/attempt-session-service/internal/session"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttemptSessionHandler struct {
	BaseHandler
	sessionService services.AttemptSessionService
}

func NewAttemptSessionHandler(sessionService services.AttemptSessionService, logger utils.Logger) *AttemptSessionHandler {
	return &AttemptSessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
	}
}

type NavigateRequest struct {
	QuestionKey string `json:"question_key"`
}

type CompletionRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

type CapturedImageRequest struct {
	DataURL  string `json:"data_url" binding:"required"`
	Filename string `json:"filename"`
}

// request resolves the attempt id and caller shared by every route
func (h *AttemptSessionHandler) request(c *gin.Context) (attemptID, userID string, ok bool) {
	attemptID = ParseStringIDParam(c, "id")
	if attemptID == "" {
		return "", "", false
	}
	userID, ok = h.userID(c)
	return attemptID, userID, ok
}

// OpenSession opens or resumes the caller's attempt
// @Router /attempts/{id}/session [post]
func (h *AttemptSessionHandler) OpenSession(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Opening attempt session", "attempt_id", attemptID)

	view, err := h.sessionService.Open(requestContext(c), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session opened", view)
}

// GetSession returns the state of every question
// @Router /attempts/{id}/session [get]
func (h *AttemptSessionHandler) GetSession(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	view, err := h.sessionService.Get(requestContext(c), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session retrieved", view)
}

// RecordAnswer stores the answer to one question; the body is tagged with the question type
// @Router /attempts/{id}/answers/{question} [put]
func (h *AttemptSessionHandler) RecordAnswer(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	var req services.RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	state, err := h.sessionService.RecordAnswer(requestContext(c), attemptID, userID, c.Param("question"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer recorded", state)
}

// Navigate moves the time tracker to another question; an empty key pauses it
// @Router /attempts/{id}/navigate [post]
func (h *AttemptSessionHandler) Navigate(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.Navigate(requestContext(c), attemptID, userID, req.QuestionKey); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Router /attempts/{id}/review/{question} [post]
func (h *AttemptSessionHandler) ToggleReview(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	flagged, err := h.sessionService.ToggleReview(requestContext(c), attemptID, userID, c.Param("question"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Review flag updated", gin.H{"review": flagged})
}

// @Router /attempts/{id}/completion/{question} [put]
func (h *AttemptSessionHandler) SetCompletion(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	var req CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.SetCompletion(requestContext(c), attemptID, userID, c.Param("question"), *req.Completed); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddFiles attaches multipart "files" or a canvas capture sent as {data_url}
// @Router /attempts/{id}/files/{question} [post]
func (h *AttemptSessionHandler) AddFiles(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}
	questionKey := c.Param("question")

	var uploads []models.Upload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid multipart form",
				Details: err.Error(),
			})
			return
		}
		uploads = uploadsFromForm(form)
	} else {
		var req CapturedImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
		upload, err := session.NewCapturedImage(req.DataURL, req.Filename)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
		uploads = []models.Upload{upload}
	}

	if len(uploads) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "No files provided"})
		return
	}
	h.LogRequest(c, "Adding attachments", "attempt_id", attemptID, "question", questionKey, "files", len(uploads))

	result, err := h.sessionService.AddFiles(requestContext(c), attemptID, userID, questionKey, uploads)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusOK
	if len(result.Added) == 0 {
		status = http.StatusUnprocessableEntity
	}
	h.RespondWithSuccess(c, status, fmt.Sprintf("%d of %d files attached", len(result.Added), len(uploads)), result)
}

// @Router /attempts/{id}/files/{question}/{filename} [delete]
func (h *AttemptSessionHandler) RemoveFile(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	removed, err := h.sessionService.RemoveFile(requestContext(c), attemptID, userID, c.Param("question"), c.Param("filename"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "File not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Router /attempts/{id}/save [post]
func (h *AttemptSessionHandler) Save(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	if err := h.sessionService.Save(requestContext(c), attemptID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Progress saved", gin.H{"saved_status": models.StatusSaved})
}

// Preview returns the payload that a submit would send right now
// @Router /attempts/{id}/payload [get]
func (h *AttemptSessionHandler) Preview(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	payload, err := h.sessionService.Preview(requestContext(c), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Payload assembled", payload)
}

// @Router /attempts/{id}/submit [post]
func (h *AttemptSessionHandler) Submit(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	var req services.SubmitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}
	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID, "reason", req.Reason)

	resp, err := h.sessionService.Submit(requestContext(c), attemptID, userID, req.Reason)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempt submitted", resp)
}

// TimeReport downloads the time spent per question as a spreadsheet
// @Router /attempts/{id}/report [get]
func (h *AttemptSessionHandler) TimeReport(c *gin.Context) {
	attemptID, userID, ok := h.request(c)
	if !ok {
		return
	}

	data, err := h.sessionService.TimeReport(requestContext(c), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attempt-%s-time.xlsx"`, attemptID))
	c.Data(http.StatusOK, xlsxContentType, data)
}
