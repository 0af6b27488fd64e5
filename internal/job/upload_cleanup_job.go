package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type stagedRemover interface {
	RemoveBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// UploadCleanupJob deletes staged uploads left behind by crashed or abandoned ingestions.
type UploadCleanupJob struct {
	store  stagedRemover
	maxAge time.Duration
}

func NewUploadCleanupJob(store stagedRemover, maxAge time.Duration) *UploadCleanupJob {
	return &UploadCleanupJob{store: store, maxAge: maxAge}
}

func (j *UploadCleanupJob) Name() string {
	return "upload_cleanup"
}

func (j *UploadCleanupJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	removed, err := j.store.RemoveBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("removed stale uploads", zap.Int("removed", removed))
	}
	return nil
}
