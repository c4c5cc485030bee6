package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubParser struct {
	tokens map[string]string
}

func (p stubParser) ParseJwtToken(token string) (*casdoorsdk.Claims, error) {
	id, ok := p.tokens[token]
	if !ok {
		return nil, errors.New("bad signature")
	}
	claims := &casdoorsdk.Claims{}
	claims.User.Id = id
	return claims, nil
}

func newAuthRouter(parser TokenParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(parser, utils.NewDefaultLogger()))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})
	return r
}

func TestAuth(t *testing.T) {
	parser := stubParser{tokens: map[string]string{"good": "stu-1"}}

	tests := []struct {
		name       string
		parser     TokenParser
		header     string
		value      string
		wantStatus int
		wantBody   string
	}{
		{"valid token", parser, "Authorization", "Bearer good", http.StatusOK, "stu-1"},
		{"lowercase scheme", parser, "Authorization", "bearer good", http.StatusOK, "stu-1"},
		{"invalid token", parser, "Authorization", "Bearer forged", http.StatusUnauthorized, ""},
		{"missing token", parser, "", "", http.StatusUnauthorized, ""},
		{"basic auth", parser, "Authorization", "Basic abc", http.StatusUnauthorized, ""},
		{"dev header", nil, "X-User-ID", "stu-9", http.StatusOK, "stu-9"},
		{"dev without header", nil, "", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			newAuthRouter(tt.parser).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
