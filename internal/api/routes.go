package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Repo Autosync API
// @version 1.0
// @description API for keeping local folders synchronized with hosted Git repositories
// @contact.name API Support
// @contact.url http://github.com/Kamar-Folarin
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8080
// @BasePath /api/v1
// @schemes http

// SetupRouter configures the API routes
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger), cors())

	// API documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		projects := v1.Group("/projects")
		{
			projects.GET("", h.ListProjects)
			projects.POST("/register", h.RegisterProject)
			projects.POST("/auto-init", h.AutoInitProject)

			projects.GET("/:id", h.GetProject)
			projects.DELETE("/:id", h.DeleteProject)

			projects.GET("/:id/config", h.GetConfig)
			projects.PUT("/:id/config", h.UpdateConfig)
			projects.POST("/:id/sync-visibility", h.SyncVisibility)

			projects.POST("/:id/scan", h.ScanProject)
			projects.POST("/:id/ignore", h.IgnoreFiles)
			projects.GET("/:id/gitignore", h.GetGitignore)
			projects.PUT("/:id/gitignore", h.PutGitignore)

			projects.POST("/:id/push", h.PushProject)
			projects.POST("/:id/retry", h.RetryProject)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("", h.GetSettings)
			settings.PUT("/github-token", h.SetGitHubToken)
			settings.DELETE("/github-token", h.ClearGitHubToken)
		}

		v1.GET("/logs", h.GetLogs)
		v1.GET("/health", h.Health)

		ws := v1.Group("/ws")
		{
			ws.GET("/logs", h.StreamLogs)
			ws.GET("/projects/:id/logs", h.StreamProjectLogs)
		}
	}

	return r
}

// requestLogger logs every request once it completes
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"action":   "http_request",
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request completed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request completed")
		default:
			entry.Debug("Request completed")
		}
	}
}

// cors allows any origin to call the API
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-GitHub-Token")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
