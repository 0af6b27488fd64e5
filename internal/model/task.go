package model

type TaskStatus string

const (
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

type Task struct {
	ID        string     `json:"task_id"`
	Filename  string     `json:"filename"`
	Status    TaskStatus `json:"status"`
	Processed int        `json:"processed"`
	Stage     string     `json:"stage"`
	StartTime int64      `json:"start_time"`
	EndTime   int64      `json:"end_time,omitempty"`
	Error     string     `json:"error,omitempty"`
}
