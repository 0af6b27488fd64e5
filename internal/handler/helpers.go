package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/middleware"
	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errcode"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("client", middleware.ClientName(c)),
		zap.Error(err),
	)
	switch {
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case appErr.IsUnsupported(err):
		response.Error(c, errcode.ErrUnsupportedFile, err.Error())
	case errors.Is(err, appErr.ErrDecode):
		response.Error(c, errcode.ErrDecodeFailed, err.Error())
	case errors.Is(err, appErr.ErrEmbeddingService):
		response.Error(c, errcode.ErrEmbeddingFailed, "embedding service failed")
	case errors.Is(err, appErr.ErrStoreWrite), errors.Is(err, appErr.ErrStoreQuery):
		response.Error(c, errcode.ErrStoreFailed, "vector store failed")
	case errors.Is(err, appErr.ErrUnavailable):
		response.ErrorStatus(c, http.StatusServiceUnavailable, errcode.ErrUnavailable, err.Error())
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
