// Package taskregistry implements the TrackableTask contract of spec.md
// §5/§6: every long-running operation exposes a cancellation token and
// reports progress; the UI may cancel by id at any time.
package taskregistry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the terminal/non-terminal lifecycle of a Task.
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateCanceled
	StateTimedOut
)

// Task is a cancellation flag plus a progress value in [0,1], owned by the
// task manager and polled at region granularity by parallel workers, per
// the "Cancellation" design note in spec.md §9.
type Task struct {
	ID        string
	Kind      string
	StartedAt time.Time

	cancelled int32 // atomic bool
	progress  atomic.Value // float64

	mu    sync.Mutex
	state State
	err   error

	onProgress []func(float64)
}

func NewTask(kind string) *Task {
	t := &Task{ID: uuid.NewString(), Kind: kind, StartedAt: time.Now(), state: StateRunning}
	t.progress.Store(0.0)
	return t
}

// Cancel sets the cooperative cancellation flag; it does not block.
func (t *Task) Cancel() {
	atomic.StoreInt32(&t.cancelled, 1)
	t.finish(StateCanceled, nil)
}

func (t *Task) Cancelled() bool {
	return atomic.LoadInt32(&t.cancelled) != 0
}

// SetProgress publishes a progress value in [0,1] and notifies subscribers.
// This is a non-blocking atomic store plus a fan-out to observers, per the
// "non-blocking atomic fetch-add plus a progress setter" note in spec.md §5.
func (t *Task) SetProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	t.progress.Store(p)
	t.mu.Lock()
	subs := append([]func(float64){}, t.onProgress...)
	t.mu.Unlock()
	for _, fn := range subs {
		fn(p)
	}
}

func (t *Task) Progress() float64 {
	return t.progress.Load().(float64)
}

func (t *Task) OnProgress(fn func(float64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onProgress = append(t.onProgress, fn)
}

func (t *Task) Complete() {
	t.finish(StateCompleted, nil)
}

func (t *Task) Timeout() {
	atomic.StoreInt32(&t.cancelled, 1)
	t.finish(StateTimedOut, nil)
}

func (t *Task) Fail(err error) {
	t.finish(StateCompleted, err)
}

func (t *Task) finish(s State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return
	}
	t.state = s
	t.err = err
	if s == StateCanceled {
		t.progress.Store(0.0)
	}
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
