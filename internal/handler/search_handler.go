package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errcode"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/response"
	"github.com/Guiss-Guiss/ScriptumAI/internal/service"
)

const maxBatchQueries = 32

type SearchHandler struct {
	query     *service.QueryService
	retrieval *service.RetrievalService
}

func NewSearchHandler(query *service.QueryService, retrieval *service.RetrievalService) *SearchHandler {
	return &SearchHandler{query: query, retrieval: retrieval}
}

type queryRequest struct {
	Query     string  `json:"query"`
	K         int     `json:"k"`
	Threshold float64 `json:"threshold"`
}

type batchSearchRequest struct {
	Queries []string `json:"queries"`
	K       int      `json:"k"`
}

type chunksRequest struct {
	IDs []string `json:"ids"`
}

func (r *queryRequest) options() service.QueryOptions {
	return service.QueryOptions{K: r.K, Threshold: r.Threshold}
}

func (h *SearchHandler) bindQuery(c *gin.Context) (*queryRequest, bool) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return nil, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return nil, false
	}
	if req.K < 0 || req.Threshold < 0 || req.Threshold > 1 {
		response.Error(c, errcode.ErrInvalid, "k must be positive and threshold within [0, 1]")
		return nil, false
	}
	return &req, true
}

func (h *SearchHandler) Query(c *gin.Context) {
	req, ok := h.bindQuery(c)
	if !ok {
		return
	}
	response.Success(c, h.query.Query(c.Request.Context(), req.Query, req.options()))
}

func (h *SearchHandler) Search(c *gin.Context) {
	req, ok := h.bindQuery(c)
	if !ok {
		return
	}
	chunks := h.query.Search(c.Request.Context(), req.Query, req.options())
	response.Success(c, gin.H{"query": req.Query, "chunks": chunks})
}

func (h *SearchHandler) SearchBatch(c *gin.Context) {
	var req batchSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Queries) == 0 {
		response.Error(c, errcode.ErrInvalid, "queries are required")
		return
	}
	if len(req.Queries) > maxBatchQueries || req.K < 0 {
		response.Error(c, errcode.ErrInvalid, "too many queries or negative k")
		return
	}
	results := h.retrieval.RetrieveBatch(c.Request.Context(), req.Queries, req.K)
	response.Success(c, gin.H{"results": results})
}

func (h *SearchHandler) Chunks(c *gin.Context) {
	var req chunksRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		response.Error(c, errcode.ErrInvalid, "ids are required")
		return
	}
	chunks, err := h.retrieval.RetrieveByID(c.Request.Context(), req.IDs)
	if err != nil {
		handleError(c, err)
		return
	}
	if chunks == nil {
		chunks = []model.SearchResult{}
	}
	response.Success(c, gin.H{"chunks": chunks})
}

func (h *SearchHandler) DeleteDocument(c *gin.Context) {
	removed, err := h.retrieval.DeleteDocument(c.Request.Context(), c.Param("stem"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"stem": c.Param("stem"), "deleted": removed})
}

// QueryStream emits the answer as server-sent "chunk" events and closes with a "result" event.
func (h *SearchHandler) QueryStream(c *gin.Context) {
	req, ok := h.bindQuery(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	result := h.query.QueryStream(c.Request.Context(), req.Query, req.options(), func(fragment string) error {
		if err := c.Request.Context().Err(); err != nil {
			return err
		}
		c.SSEvent("chunk", fragment)
		c.Writer.Flush()
		return nil
	})
	c.SSEvent("result", result)
	c.Writer.Flush()
}
