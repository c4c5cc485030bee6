package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSlogLogger_LogRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	logger.LogRequest("GET", "/a", 200, "1ms")
	logger.LogRequest("GET", "/b", 404, "1ms")
	logger.LogRequest("GET", "/c", 502, "1ms")
	logger.LogError(errors.New("boom"), "failed", "attempt_id", "A1")

	out := buf.String()
	assert.Contains(t, out, "level=INFO msg=\"HTTP request\" method=GET path=/a")
	assert.Contains(t, out, "level=WARN msg=\"HTTP request\" method=GET path=/b")
	assert.Contains(t, out, "level=ERROR msg=\"HTTP request\" method=GET path=/c")
	assert.Contains(t, out, "error=boom attempt_id=A1")
}

func TestContextLogger_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ContextLogger(NewSlogLogger(slog.New(slog.DiscardHandler))))
	r.GET("/", func(c *gin.Context) {
		assert.NotNil(t, GetLoggerFromContext(c))
		c.String(http.StatusOK, RequestID(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
}
