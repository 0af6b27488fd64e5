package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/Guiss-Guiss/ScriptumAI/internal/chunker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/decoder"
	"github.com/Guiss-Guiss/ScriptumAI/internal/filestore"
	"github.com/Guiss-Guiss/ScriptumAI/internal/langdetect"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	"github.com/Guiss-Guiss/ScriptumAI/internal/tasktracker"
	"github.com/Guiss-Guiss/ScriptumAI/internal/vectorstore"
)

const testDim = 8

// bagEmbedder hashes words into a small vector so related texts land close together.
type bagEmbedder struct {
	mu       sync.Mutex
	calls    int
	texts    int
	dim      int
	err      error
	failFrom int
	constant bool
}

func (e *bagEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	if e.constant {
		for i := range v {
			v[i] = 1
		}
		return v
	}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(e.dim)]++
	}
	return v
}

func (e *bagEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vs, err := e.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *bagEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil && e.calls >= e.failFrom {
		return nil, e.err
	}
	e.texts += len(texts)
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, e.vector(t))
	}
	return out, nil
}

func (e *bagEmbedder) ModelName() string {
	return "bag"
}

// keywordDetector tags text as French when it sees common French words.
type keywordDetector struct{}

func (keywordDetector) Detect(text string) (string, bool) {
	lower := " " + strings.ToLower(text) + " "
	for _, w := range []string{" est ", " la ", " le ", " de "} {
		if strings.Contains(lower, w) {
			return "fr", true
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return "en", true
}

type failingStore struct {
	vectorstore.Store
	failQuery map[string]bool
	failAdd   bool
}

func (s *failingStore) CreateOrGetCollection(ctx context.Context, name string, dimension int, distance vectorstore.Distance) (vectorstore.Collection, error) {
	c, err := s.Store.CreateOrGetCollection(ctx, name, dimension, distance)
	if err != nil {
		return nil, err
	}
	return &failingCollection{Collection: c, store: s}, nil
}

type failingCollection struct {
	vectorstore.Collection
	store *failingStore
}

func (c *failingCollection) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Neighbor, error) {
	if c.store.failQuery[c.Name()] {
		return nil, errors.New("collection offline")
	}
	return c.Collection.Query(ctx, vector, k)
}

func (c *failingCollection) Add(ctx context.Context, records []model.ChunkRecord) error {
	if c.store.failAdd {
		return errors.New("disk full")
	}
	return c.Collection.Add(ctx, records)
}

type testEnv struct {
	store     *failingStore
	registry  *vectorstore.Registry
	embedder  *bagEmbedder
	tracker   *tasktracker.Tracker
	files     filestore.Store
	activity  *Activity
	ingest    *IngestService
	retrieval *RetrievalService
	router    *langdetect.Router
}

func newTestEnv(t *testing.T, cfg IngestConfig) *testEnv {
	t.Helper()
	store := &failingStore{Store: vectorstore.NewMemoryStore(), failQuery: map[string]bool{}}
	langs := []string{"en", "fr", "es"}
	registry := vectorstore.NewRegistry(store, "test", langs, testDim)
	router := langdetect.NewRouterWithDetector(langs, keywordDetector{})
	ch, err := chunker.New(1000, 200)
	require.NoError(t, err)
	files, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	embedder := &bagEmbedder{dim: testDim}
	tracker := tasktracker.New()
	activity := NewActivity(0)
	if cfg.Dimension == 0 {
		cfg.Dimension = testDim
	}
	retrieval := NewRetrievalService(router, embedder, registry, NewQueryCache(100, 5*time.Minute), activity, 5)
	ingest := NewIngestService(IngestDeps{
		Decoders: decoder.Default(),
		Chunker:  ch,
		Router:   router,
		Embedder: embedder,
		Registry: registry,
		Tracker:  tracker,
		Files:    files,
		Activity: activity,
		OnWrite:  retrieval.Invalidate,
	}, cfg)
	return &testEnv{
		store:     store,
		registry:  registry,
		embedder:  embedder,
		tracker:   tracker,
		files:     files,
		activity:  activity,
		ingest:    ingest,
		retrieval: retrieval,
		router:    router,
	}
}

func textDoc(name, content string) *model.Document {
	return &model.Document{
		Name:    name,
		Path:    "/docs/" + name,
		Content: []byte(content),
		Size:    int64(len(content)),
		Hash:    hashContent([]byte(content)),
	}
}

func (e *testEnv) count(t *testing.T, lang string) int {
	t.Helper()
	c, err := e.registry.Collection(context.Background(), lang)
	require.NoError(t, err)
	n, err := c.Count(context.Background())
	require.NoError(t, err)
	return n
}

func newRegistryFor(store vectorstore.Store) *vectorstore.Registry {
	return vectorstore.NewRegistry(store, "test", []string{"en", "fr", "es"}, testDim)
}
