package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/SAP-F-2025/attempt-session-service/internal/services"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

// uploadsFromForm turns the "files" parts of a multipart form into uploads.
// An optional "tokens" field per file, e.g. the browser's lastModified,
// tells same-named re-uploads apart.
func uploadsFromForm(form *multipart.Form) []models.Upload {
	files := form.File["files"]
	tokens := form.Value["tokens"]

	uploads := make([]models.Upload, 0, len(files))
	for i, fh := range files {
		token := fmt.Sprintf("%d", fh.Size)
		if i < len(tokens) && tokens[i] != "" {
			token = tokens[i]
		}
		uploads = append(uploads, models.Upload{
			Filename: fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Token:    token,
			Open:     openPart(fh),
		})
	}
	return uploads
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// requestContext carries the request id into service operation logs
func requestContext(c *gin.Context) context.Context {
	return services.WithRequestID(c.Request.Context(), utils.RequestID(c))
}
