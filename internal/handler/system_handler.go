package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Guiss-Guiss/ScriptumAI/internal/metrics"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errcode"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/response"
	"github.com/Guiss-Guiss/ScriptumAI/internal/service"
)

type SystemHandler struct {
	system *service.SystemService
}

func NewSystemHandler(system *service.SystemService) *SystemHandler {
	return &SystemHandler{system: system}
}

// Stats adds a flat total_chunks_{lang} key per language next to the structured fields.
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.system.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	out := gin.H{
		"collections":          stats.Collections,
		"chunks_by_language":   stats.ChunksByLanguage,
		"total_chunks":         stats.TotalChunks,
		"total_documents":      stats.TotalDocuments,
		"active_tasks":         stats.ActiveTasks,
		"embedding_model":      stats.EmbeddingModel,
		"llm_model":            stats.LLMModel,
		"supported_file_types": stats.SupportedFileTypes,
	}
	for lang, n := range stats.ChunksByLanguage {
		out["total_chunks_"+lang] = n
	}
	response.Success(c, out)
}

func (h *SystemHandler) Health(c *gin.Context) {
	health := h.system.Health(c.Request.Context())
	if health.Status != service.HealthStatusHealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    errcode.ErrUnavailable,
			"message": health.Error,
			"data":    health,
		})
		return
	}
	response.Success(c, health)
}

func (h *SystemHandler) Metrics(c *gin.Context) {
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
