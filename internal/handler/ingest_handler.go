package handler

import (
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errcode"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/response"
	"github.com/Guiss-Guiss/ScriptumAI/internal/service"
)

type taskGetter interface {
	Get(id string) (model.Task, bool)
	List() []model.Task
}

type IngestHandler struct {
	ingest        *service.IngestService
	tasks         taskGetter
	maxUploadSize int64
	allowed       extensionSet
}

func NewIngestHandler(ingest *service.IngestService, tasks taskGetter, maxUploadSize int64, allowedExtensions []string) *IngestHandler {
	return &IngestHandler{
		ingest:        ingest,
		tasks:         tasks,
		maxUploadSize: maxUploadSize,
		allowed:       newExtensionSet(allowedExtensions),
	}
}

func (h *IngestHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	name := filepath.Base(strings.TrimSpace(file.Filename))
	if name == "" || name == "." || name == "/" {
		response.Error(c, errcode.ErrInvalidFile, "file name is required")
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
		return
	}
	if !h.allowed.allows(name) {
		response.Error(c, errcode.ErrUnsupportedFile, "file type not allowed")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	taskID, err := h.ingest.SubmitUpload(c.Request.Context(), name, opened)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"task_id": taskID, "filename": name})
}

func (h *IngestHandler) Status(c *gin.Context) {
	task, ok := h.tasks.Get(c.Param("task_id"))
	if !ok {
		response.Error(c, errcode.ErrNotFound, "not found")
		return
	}
	response.Success(c, task)
}

// Tasks lists the tracked ingestion tasks, oldest first.
func (h *IngestHandler) Tasks(c *gin.Context) {
	response.Success(c, gin.H{"tasks": h.tasks.List()})
}
