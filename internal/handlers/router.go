package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/attempt-session-service/internal/services"
	"github.com/SAP-F-2025/attempt-session-service/internal/utils"
	"github.com/SAP-F-2025/attempt-session-service/pkg/monitoring"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	sessionHandler *AttemptSessionHandler
}

func NewHandlerManager(sessionService services.AttemptSessionService, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewAttemptSessionHandler(sessionService, logger),
	}
}

// SetupRoutes sets up all API routes. Middlewares in auth apply to the API group only.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, auth ...gin.HandlerFunc) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", monitoring.PrometheusHandler())

	v1 := router.Group("/api/v1", auth...)
	{
		attempts := v1.Group("/attempts/:id")
		{
			attempts.POST("/session", hm.sessionHandler.OpenSession)
			attempts.GET("/session", hm.sessionHandler.GetSession)

			attempts.PUT("/answers/:question", hm.sessionHandler.RecordAnswer)
			attempts.POST("/navigate", hm.sessionHandler.Navigate)
			attempts.POST("/review/:question", hm.sessionHandler.ToggleReview)
			attempts.PUT("/completion/:question", hm.sessionHandler.SetCompletion)

			// Attachments
			attempts.POST("/files/:question", hm.sessionHandler.AddFiles)
			attempts.DELETE("/files/:question/:filename", hm.sessionHandler.RemoveFile)

			attempts.POST("/save", hm.sessionHandler.Save)
			attempts.GET("/payload", hm.sessionHandler.Preview)
			attempts.POST("/submit", hm.sessionHandler.Submit)
			attempts.GET("/report", hm.sessionHandler.TimeReport)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "attempt-session-service",
	})
}
