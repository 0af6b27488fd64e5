package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/Guiss-Guiss/ScriptumAI/internal/ai"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
)

type PersistentStore interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

// WrapDBCacheToEmbedder puts a persistent tier in front of e. Lookup and save
// failures are logged and fall through to e.
func WrapDBCacheToEmbedder(e ai.IEmbedder, store PersistentStore) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store, now: time.Now}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store PersistentStore
	now   func() time.Time
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	modelName, contentHash := persistentKey(d.next.ModelName(), text)
	if values, ok := d.lookup(ctx, modelName, taskType, contentHash); ok {
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	d.save(ctx, modelName, taskType, contentHash, res)
	return res, nil
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))
	var missing []string
	var missingIdx []int
	modelName := ""
	for i, text := range texts {
		modelName, hashes[i] = persistentKey(d.next.ModelName(), text)
		if values, ok := d.lookup(ctx, modelName, taskType, hashes[i]); ok {
			out[i] = values
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vectors, err := ai.EmbedBatch(ctx, d.next, missing, taskType)
	if err != nil {
		return nil, err
	}
	for j, idx := range missingIdx {
		out[idx] = vectors[j]
		d.save(ctx, modelName, taskType, hashes[idx], vectors[j])
	}
	return out, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

func (d *dbEmbedder) lookup(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool) {
	values, ok, err := d.store.Get(ctx, modelName, taskType, contentHash)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embedding cache lookup failed (db)", zap.Error(err))
		return nil, false
	}
	if ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.String("task_type", taskType))
	}
	return values, ok
}

func (d *dbEmbedder) save(ctx context.Context, modelName, taskType, contentHash string, values []float32) {
	err := d.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   modelName,
		TaskType:    taskType,
		ContentHash: contentHash,
		Embedding:   values,
		Ctime:       d.now().Unix(),
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
}

func persistentKey(modelName, text string) (string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	return modelName, hex.EncodeToString(hash[:])
}
