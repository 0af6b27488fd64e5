package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type embeddingPruner interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

type EmbeddingCacheCleanupJob struct {
	store  embeddingPruner
	maxAge time.Duration
}

func NewEmbeddingCacheCleanupJob(store embeddingPruner, maxAge time.Duration) *EmbeddingCacheCleanupJob {
	return &EmbeddingCacheCleanupJob{store: store, maxAge: maxAge}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.store == nil || j.maxAge <= 0 {
		return nil
	}
	removed, err := j.store.DeleteBefore(ctx, time.Now().Add(-j.maxAge).Unix())
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache pruned", zap.Int64("removed", removed))
	return nil
}
