// Package router provides DocMind service routing.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docmind/internal/docmind/handler"
)

// New builds the gin engine with all DocMind routes registered.
func New(h *handler.Handler) *gin.Engine {
	logger.Info("Registering DocMind routes...")

	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog())

	engine.GET("/healthz", h.Healthz)
	engine.GET("/metrics", h.Metrics)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/ingest", h.Ingest)
		v1.POST("/query", h.Query)
		v1.DELETE("/documents/:name", h.DeleteDocument)
		v1.GET("/stats", h.Stats)
	}

	logger.Info("HTTP routes registered")
	return engine
}

// accessLog 记录每个请求的方法、路径、状态码与耗时。
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"client", c.ClientIP(),
		)
	}
}
