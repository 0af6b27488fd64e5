package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/ai"
	"github.com/Guiss-Guiss/ScriptumAI/internal/cache"
)

const cacheName = "embedding"

// WrapLruCacheToEmbedder memoizes embeddings by model, task type and exact text.
func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: cache.New[string, []float32](cacheName, size, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *cache.TTLCache[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := buildCacheKey(l.next.ModelName(), taskType, text)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("task_type", taskType))
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

// EmbedBatch only sends the texts missing from the cache downstream.
func (l *lruEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []string
	var missingIdx []int
	model := l.next.ModelName()
	for i, text := range texts {
		keys[i] = buildCacheKey(model, taskType, text)
		if cached, ok := l.cache.Get(keys[i]); ok {
			out[i] = cloneEmbedding(cached)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	logutil.GetLogger(ctx).Debug("embedding batch cache lookup",
		zap.Int("total", len(texts)),
		zap.Int("hits", len(texts)-len(missing)),
	)
	if len(missing) == 0 {
		return out, nil
	}
	vectors, err := ai.EmbedBatch(ctx, l.next, missing, taskType)
	if err != nil {
		return nil, err
	}
	for j, idx := range missingIdx {
		out[idx] = vectors[j]
		l.cache.Add(keys[idx], cloneEmbedding(vectors[j]))
	}
	return out, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func buildCacheKey(model, taskType, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
