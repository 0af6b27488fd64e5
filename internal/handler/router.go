package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Guiss-Guiss/ScriptumAI/internal/middleware"
)

type RouterDeps struct {
	Ingest       *IngestHandler
	Search       *SearchHandler
	System       *SystemHandler
	JWTSecret    []byte
	UploadWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.System.Health)
	api.GET("/metrics", deps.System.Metrics)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	if deps.UploadWindow > 0 {
		authGroup.POST("/ingest", middleware.RateLimit(deps.UploadWindow), deps.Ingest.Upload)
	} else {
		authGroup.POST("/ingest", deps.Ingest.Upload)
	}
	authGroup.GET("/ingest", deps.Ingest.Tasks)
	authGroup.GET("/ingest/:task_id", deps.Ingest.Status)

	authGroup.POST("/query", deps.Search.Query)
	authGroup.POST("/query/stream", deps.Search.QueryStream)
	authGroup.POST("/search", deps.Search.Search)
	authGroup.POST("/search/batch", deps.Search.SearchBatch)
	authGroup.POST("/chunks", deps.Search.Chunks)
	authGroup.DELETE("/documents/:stem", deps.Search.DeleteDocument)

	authGroup.GET("/stats", deps.System.Stats)
}
