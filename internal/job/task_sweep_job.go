package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type taskSweeper interface {
	Sweep(retention time.Duration) int
}

// TaskSweepJob forgets ingestion tasks older than the retention window.
type TaskSweepJob struct {
	tracker   taskSweeper
	retention time.Duration
}

func NewTaskSweepJob(tracker taskSweeper, retention time.Duration) *TaskSweepJob {
	return &TaskSweepJob{tracker: tracker, retention: retention}
}

func (j *TaskSweepJob) Name() string {
	return "task_sweep"
}

func (j *TaskSweepJob) Run(ctx context.Context) error {
	if j.tracker == nil {
		return nil
	}
	retention := j.retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if removed := j.tracker.Sweep(retention); removed > 0 {
		logutil.GetLogger(ctx).Info("swept finished tasks", zap.Int("removed", removed))
	}
	return nil
}
