package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/prepstation/capture-service/internal/export"
	"github.com/prepstation/capture-service/internal/services"
	"github.com/prepstation/capture-service/internal/utils"
)

type HandlerManager struct {
	captureHandler *CaptureHandler
	exportHandler  *ExportHandler
}

func NewHandlerManager(
	capture services.CaptureService,
	exporter *export.Exporter,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		captureHandler: NewCaptureHandler(capture, logger),
		exportHandler:  NewExportHandler(exporter, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		capture := v1.Group("/capture")
		{
			capture.POST("/questions/:session_question_id/activate", hm.captureHandler.Activate)
			capture.POST("/input", hm.captureHandler.Input)
			capture.GET("/view", hm.captureHandler.View)
			capture.POST("/prep", hm.captureHandler.PrepUpdate)
			capture.POST("/submit", hm.captureHandler.Submit)
			capture.POST("/abandon", hm.captureHandler.Abandon)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:session_id/export", hm.exportHandler.ExportSession)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "capture-service",
		})
	})
}
