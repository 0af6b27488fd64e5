package service

import (
	"sync/atomic"
	"time"
)

const defaultActivityWindow = 5 * time.Minute

// Activity remembers when the last ingestion or retrieval succeeded.
type Activity struct {
	last   atomic.Int64
	window time.Duration
	now    func() time.Time
}

func NewActivity(window time.Duration) *Activity {
	if window <= 0 {
		window = defaultActivityWindow
	}
	return &Activity{window: window, now: time.Now}
}

func (a *Activity) Record() {
	if a == nil {
		return
	}
	a.last.Store(a.now().Unix())
}

// Last returns the unix time of the latest success, or 0 when there was none.
func (a *Activity) Last() int64 {
	if a == nil {
		return 0
	}
	return a.last.Load()
}

func (a *Activity) Recent() bool {
	last := a.Last()
	if last == 0 {
		return false
	}
	return a.now().Sub(time.Unix(last, 0)) <= a.window
}
