package tasktracker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Guiss-Guiss/ScriptumAI/internal/metrics"
	"github.com/Guiss-Guiss/ScriptumAI/internal/model"
	errs "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
)

const (
	StageQueued    = "queued"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// Tracker keeps the state of asynchronous ingestion tasks in memory.
// Completed and failed tasks are frozen until swept.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
	now   func() time.Time
}

func New() *Tracker {
	return &Tracker{
		tasks: make(map[string]*model.Task),
		now:   time.Now,
	}
}

func (t *Tracker) Create(filename string) model.Task {
	task := &model.Task{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    model.TaskInProgress,
		Stage:     StageQueued,
		StartTime: t.now().Unix(),
	}
	t.mu.Lock()
	t.tasks[task.ID] = task
	t.mu.Unlock()
	metrics.ActiveTasks.Inc()
	return *task
}

func (t *Tracker) Update(id string, fn func(task *model.Task)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
	}
	if task.Status.Terminal() {
		return fmt.Errorf("task %s: %w", id, errs.ErrTaskFinished)
	}
	before := task.Status
	fn(task)
	if task.Status.Terminal() && !before.Terminal() {
		task.EndTime = t.now().Unix()
		metrics.ActiveTasks.Dec()
	}
	return nil
}

func (t *Tracker) SetProgress(id string, processed int, stage string) error {
	return t.Update(id, func(task *model.Task) {
		task.Processed = processed
		task.Stage = stage
	})
}

func (t *Tracker) Complete(id string, processed int) error {
	return t.Update(id, func(task *model.Task) {
		task.Status = model.TaskCompleted
		task.Processed = processed
		task.Stage = StageCompleted
	})
}

func (t *Tracker) Fail(id string, msg string) error {
	return t.Update(id, func(task *model.Task) {
		task.Status = model.TaskFailed
		task.Stage = StageFailed
		task.Error = msg
	})
}

func (t *Tracker) Get(id string) (model.Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return *task, true
}

// List returns copies of every task, oldest first.
func (t *Tracker) List() []model.Task {
	t.mu.RLock()
	out := make([]model.Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, *task)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, task := range t.tasks {
		if !task.Status.Terminal() {
			n++
		}
	}
	return n
}

// Sweep drops every task started more than retention ago, whatever its state.
func (t *Tracker) Sweep(retention time.Duration) int {
	cutoff := t.now().Add(-retention).Unix()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, task := range t.tasks {
		if task.StartTime >= cutoff {
			continue
		}
		if !task.Status.Terminal() {
			metrics.ActiveTasks.Dec()
		}
		delete(t.tasks, id)
		removed++
	}
	return removed
}
