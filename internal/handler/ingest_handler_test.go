package handler_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	"github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errcode"
)

func TestUploadCompletesTask(t *testing.T) {
	srv := setupServer(t, options{})
	taskID := srv.ingestAndWait(t, "apples.txt", strings.Repeat("apples and oranges ", 20))

	resp, env := srv.do(t, jsonRequest(t, http.MethodGet, "/api/v1/ingest/"+taskID, nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, env.Code)
	var task model.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	require.Equal(t, taskID, task.ID)
	require.Equal(t, "apples.txt", task.Filename)
	require.Equal(t, model.TaskCompleted, task.Status)
	require.Greater(t, task.Processed, 0)
}

func TestListTasks(t *testing.T) {
	srv := setupServer(t, options{})
	first := srv.ingestAndWait(t, "apples.txt", "apples and oranges")
	second := srv.ingestAndWait(t, "cars.txt", "engines wheels brakes")

	resp, env := srv.do(t, jsonRequest(t, http.MethodGet, "/api/v1/ingest", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, env.Code)
	var out struct {
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Tasks, 2)
	var ids []string
	for _, task := range out.Tasks {
		ids = append(ids, task.ID)
		require.Equal(t, model.TaskCompleted, task.Status)
	}
	require.ElementsMatch(t, []string{first, second}, ids)
}

func TestUploadStatusUnknownTask(t *testing.T) {
	srv := setupServer(t, options{})
	_, env := srv.do(t, jsonRequest(t, http.MethodGet, "/api/v1/ingest/missing", nil))
	require.Equal(t, errcode.ErrNotFound, env.Code)
}

func TestUploadRejections(t *testing.T) {
	srv := setupServer(t, options{})

	_, env := srv.do(t, uploadRequest(t, "slides.pptx", "binary"))
	require.Equal(t, errcode.ErrUnsupportedFile, env.Code)

	_, env = srv.do(t, uploadRequest(t, "huge.txt", strings.Repeat("x", 2*1024*1024)))
	require.Equal(t, errcode.ErrInvalidFile, env.Code)
	require.Contains(t, env.Message, "1MB")

	_, env = srv.do(t, jsonRequest(t, http.MethodPost, "/api/v1/ingest", map[string]string{"file": "nope"}))
	require.Equal(t, errcode.ErrInvalidFile, env.Code)
}

func TestUploadRateLimited(t *testing.T) {
	srv := setupServer(t, options{uploadWindow: time.Minute})
	srv.ingestAndWait(t, "first.txt", "apples and oranges")

	resp, env := srv.do(t, uploadRequest(t, "second.txt", "engines wheels brakes"))
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	require.Equal(t, errcode.ErrTooMany, env.Code)
	require.Equal(t, "60", resp.Header().Get("Retry-After"))
}

func TestUploadAfterShutdown(t *testing.T) {
	srv := setupServer(t, options{})
	require.NoError(t, srv.ingest.Shutdown(t.Context()))

	resp, env := srv.do(t, uploadRequest(t, "late.txt", "apples"))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Equal(t, errcode.ErrUnavailable, env.Code)
}
