package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/Guiss-Guiss/ScriptumAI/internal/chunker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/decoder"
	"github.com/Guiss-Guiss/ScriptumAI/internal/filestore"
	"github.com/Guiss-Guiss/ScriptumAI/internal/handler"
	"github.com/Guiss-Guiss/ScriptumAI/internal/langdetect"
	"github.com/Guiss-Guiss/ScriptumAI/internal/middleware"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	"github.com/Guiss-Guiss/ScriptumAI/internal/service"
	"github.com/Guiss-Guiss/ScriptumAI/internal/tasktracker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/vectorstore"
)

const testDim = 8

type wordEmbedder struct{}

func (wordEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	v := make([]float32, testDim)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%testDim]++
	}
	return v, nil
}

func (e wordEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, _ := e.Embed(ctx, t, taskType)
		out = append(out, v)
	}
	return out, nil
}

type englishDetector struct{}

func (englishDetector) Detect(text string) (string, bool) {
	return "en", strings.TrimSpace(text) != ""
}

type cannedAnswerer struct{}

func (cannedAnswerer) Answer(ctx context.Context, query string, language string, chunks []model.SearchResult) (string, error) {
	return "answer from " + chunks[0].Source(), nil
}

func (cannedAnswerer) AnswerStream(ctx context.Context, query string, language string, chunks []model.SearchResult, onChunk func(string) error) error {
	for _, part := range []string{"answer ", "from ", chunks[0].Source()} {
		if err := onChunk(part); err != nil {
			return err
		}
	}
	return nil
}

func (cannedAnswerer) HasGenerator() bool {
	return true
}

type flakyStore struct {
	vectorstore.Store
	down bool
}

func (s *flakyStore) Heartbeat(ctx context.Context) error {
	if s.down {
		return errors.New("connection refused")
	}
	return s.Store.Heartbeat(ctx)
}

type testServer struct {
	handler http.Handler
	store   *flakyStore
	tracker *tasktracker.Tracker
	ingest  *service.IngestService
}

type options struct {
	secret       []byte
	uploadWindow time.Duration
}

func setupServer(t *testing.T, opts options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	langs := []string{"en", "fr"}
	store := &flakyStore{Store: vectorstore.NewMemoryStore()}
	registry := vectorstore.NewRegistry(store, "api", langs, testDim)
	router := langdetect.NewRouterWithDetector(langs, englishDetector{})
	ch, err := chunker.New(100, 20)
	require.NoError(t, err)
	files, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	tracker := tasktracker.New()
	activity := service.NewActivity(time.Minute)

	retrieval := service.NewRetrievalService(router, wordEmbedder{}, registry, service.NewQueryCache(10, time.Minute), activity, 5)
	ingest := service.NewIngestService(service.IngestDeps{
		Decoders: decoder.Default(),
		Chunker:  ch,
		Router:   router,
		Embedder: wordEmbedder{},
		Registry: registry,
		Tracker:  tracker,
		Files:    files,
		Activity: activity,
		OnWrite:  retrieval.Invalidate,
	}, service.IngestConfig{BatchSize: 4, Dimension: testDim, Replace: true, Workers: 2})
	query := service.NewQueryService(retrieval, cannedAnswerer{}, 5, 20, 0)
	system := service.NewSystemService(registry, tracker, activity, service.SystemInfo{
		EmbeddingModel:     "word",
		LLMModel:           "canned",
		SupportedFileTypes: []string{"txt", "md"},
	})
	t.Cleanup(func() {
		_ = ingest.Shutdown(context.Background())
	})

	deps := handler.RouterDeps{
		Ingest:       handler.NewIngestHandler(ingest, tracker, 1024*1024, []string{"txt", "md"}),
		Search:       handler.NewSearchHandler(query, retrieval),
		System:       handler.NewSystemHandler(system),
		JWTSecret:    opts.secret,
		UploadWindow: opts.uploadWindow,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testServer{handler: engine, store: store, tracker: tracker, ingest: ingest}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	var env envelope
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	}
	return resp, env
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// ingestAndWait uploads a file and blocks until its task completes.
func (s *testServer) ingestAndWait(t *testing.T, filename, content string) string {
	t.Helper()
	resp, env := s.do(t, uploadRequest(t, filename, content))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, env.Code, env.Message)
	var out struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.TaskID)
	require.Eventually(t, func() bool {
		task, ok := s.tracker.Get(out.TaskID)
		return ok && task.Status != model.TaskInProgress
	}, 5*time.Second, 10*time.Millisecond)
	task, _ := s.tracker.Get(out.TaskID)
	require.Equal(t, model.TaskCompleted, task.Status, task.Error)
	return out.TaskID
}
