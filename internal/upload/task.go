package upload

import (
	"context"
	"sync"
	"time"

	"bhasha/internal/services/blobstore"
)

// TaskStatus is the lifecycle phase of a transfer task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusUploading TaskStatus = "uploading"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// Task tracks one transfer attempt. Tasks are immutable once they reach a
// terminal state; a retry is always a fresh task.
type Task struct {
	id       string
	pathname string
	total    int64

	mu        sync.Mutex
	status    TaskStatus
	sent      int64
	progress  int
	result    blobstore.ObjectInfo
	err       error
	startedAt time.Time
	endedAt   time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// Pathname returns the destination storage path.
func (t *Task) Pathname() string { return t.pathname }

// Status returns the current lifecycle phase.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress reports percent complete, 0 to 100. The value never decreases
// and reaches 100 only after the backend confirmed the stored artifact.
func (t *Task) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// BytesSent returns how many bytes have been handed to the backend so far.
func (t *Task) BytesSent() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

// Result returns the stored object info; valid only for completed tasks.
func (t *Task) Result() (blobstore.ObjectInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.status == StatusCompleted
}

// Err returns the terminal error for failed tasks.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel requests cooperative cancellation. If the backend already stored
// the artifact durably, completion wins and Cancel has no effect.
func (t *Task) Cancel() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the task is terminal or ctx expires, then returns the
// task's terminal error, if any.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.Err()
	}
}

func (t *Task) addSent(n int64) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent += n
	if t.total <= 0 {
		return
	}
	pct := int(t.sent * 100 / t.total)
	// Hold at 99 until the backend confirms; never move backwards.
	if pct > 99 {
		pct = 99
	}
	if pct > t.progress {
		t.progress = pct
	}
}

func (t *Task) finish(status TaskStatus, result blobstore.ObjectInfo, err error) {
	t.mu.Lock()
	t.status = status
	t.result = result
	t.err = err
	t.endedAt = time.Now().UTC()
	if status == StatusCompleted {
		t.progress = 100
	}
	t.cancel = nil
	t.mu.Unlock()
	close(t.done)
}
