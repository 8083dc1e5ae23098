package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bhasha/internal/config"
	"bhasha/internal/logging"
	"bhasha/internal/services"
	"bhasha/internal/services/blobstore"
)

// Artifact is the payload of one transfer: a sized byte stream plus its
// declared content type.
type Artifact struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Coordinator validates artifacts and moves them into the blob store with
// per-task progress, timeout, and cooperative cancellation.
type Coordinator struct {
	store        blobstore.Store
	maxBytes     int64
	allowedTypes map[string]struct{}
	timeout      time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewCoordinator builds a coordinator over store using the configured
// upload policy.
func NewCoordinator(store blobstore.Store, cfg *config.Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.Upload.AllowedTypes))
	for _, contentType := range cfg.Upload.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(contentType))] = struct{}{}
	}
	return &Coordinator{
		store:        store,
		maxBytes:     cfg.MaxUploadBytes(),
		allowedTypes: allowed,
		timeout:      cfg.UploadTimeout(),
		logger:       logging.WithComponent(logger, "upload"),
		tasks:        make(map[string]*Task),
	}
}

// Validate checks the artifact against the content-type allow list and the
// size ceiling. A violation is ErrInvalidInput and creates no task.
func (c *Coordinator) Validate(artifact Artifact) error {
	contentType := strings.ToLower(strings.TrimSpace(artifact.ContentType))
	if contentType == "" {
		return services.Wrap(services.ErrInvalidInput, "upload", "validate", "content type is required", nil)
	}
	if _, ok := c.allowedTypes[contentType]; !ok {
		return services.Wrap(services.ErrInvalidInput, "upload", "validate",
			fmt.Sprintf("content type %s is not allowed", contentType), nil)
	}
	if artifact.Size <= 0 {
		return services.Wrap(services.ErrInvalidInput, "upload", "validate", "artifact is empty", nil)
	}
	if artifact.Size > c.maxBytes {
		return services.Wrap(services.ErrInvalidInput, "upload", "validate",
			fmt.Sprintf("artifact size %d exceeds limit %d", artifact.Size, c.maxBytes), nil)
	}
	return nil
}

// Start validates the artifact and launches the transfer, returning the
// tracking task immediately.
func (c *Coordinator) Start(ctx context.Context, artifact Artifact, pathname string) (*Task, error) {
	if err := c.Validate(artifact); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pathname) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "upload", "start", "pathname is required", nil)
	}

	taskCtx, cancel := context.WithTimeout(ctx, c.timeout)
	task := &Task{
		id:        uuid.NewString(),
		pathname:  pathname,
		total:     artifact.Size,
		status:    StatusPending,
		startedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	c.mu.Lock()
	c.tasks[task.id] = task
	c.mu.Unlock()

	go c.run(taskCtx, cancel, task, artifact)
	return task, nil
}

// Upload is the synchronous form of Start: it blocks until the transfer is
// terminal and returns the stored object info.
func (c *Coordinator) Upload(ctx context.Context, artifact Artifact, pathname string) (blobstore.ObjectInfo, *Task, error) {
	task, err := c.Start(ctx, artifact, pathname)
	if err != nil {
		return blobstore.ObjectInfo{}, nil, err
	}
	if err := task.Wait(ctx); err != nil {
		return blobstore.ObjectInfo{}, task, err
	}
	info, ok := task.Result()
	if !ok {
		return blobstore.ObjectInfo{}, task, task.Err()
	}
	return info, task, nil
}

// Task returns the task with the given id, or nil.
func (c *Coordinator) Task(id string) *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tasks[id]
}

// Cancel requests cancellation of the task with the given id.
func (c *Coordinator) Cancel(id string) error {
	task := c.Task(id)
	if task == nil {
		return services.Wrap(services.ErrNotFound, "upload", "cancel", "task "+id, nil)
	}
	task.Cancel()
	return nil
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, task *Task, artifact Artifact) {
	defer cancel()

	task.mu.Lock()
	task.status = StatusUploading
	task.mu.Unlock()

	reader := &progressReader{ctx: ctx, task: task, inner: io.LimitReader(artifact.Reader, artifact.Size)}
	info, err := c.store.Put(ctx, task.pathname, reader, blobstore.PutOptions{ContentType: artifact.ContentType})
	if err == nil {
		// The backend confirmed a durable object; completion wins over
		// any cancellation that raced in after the final read.
		task.finish(StatusCompleted, info, nil)
		c.logger.Info("upload completed",
			logging.String(logging.FieldTaskID, task.id),
			logging.String(logging.FieldPathname, task.pathname),
			logging.Int64("bytes", artifact.Size))
		return
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		wrapped := services.Wrap(services.ErrTimeout, "upload", "transfer", task.pathname, err)
		task.finish(StatusFailed, blobstore.ObjectInfo{}, wrapped)
		c.logger.Warn("upload timed out",
			logging.String(logging.FieldTaskID, task.id),
			logging.String(logging.FieldPathname, task.pathname))
	case errors.Is(ctx.Err(), context.Canceled):
		task.finish(StatusCancelled, blobstore.ObjectInfo{},
			services.Wrap(services.ErrTransferFailure, "upload", "transfer", "cancelled", context.Canceled))
		c.logger.Info("upload cancelled",
			logging.String(logging.FieldTaskID, task.id),
			logging.String(logging.FieldPathname, task.pathname))
	default:
		wrapped := err
		if !errors.Is(err, services.ErrInvalidInput) && !errors.Is(err, services.ErrTransferFailure) {
			wrapped = services.Wrap(services.ErrTransferFailure, "upload", "transfer", task.pathname, err)
		}
		task.finish(StatusFailed, blobstore.ObjectInfo{}, wrapped)
		c.logger.Error("upload failed",
			logging.String(logging.FieldTaskID, task.id),
			logging.String(logging.FieldPathname, task.pathname),
			logging.Error(err))
	}
}

// progressReader feeds transfer bytes to the task counter and observes
// cancellation between reads, so a cancel can never corrupt the stream
// mid-chunk.
type progressReader struct {
	ctx   context.Context
	task  *Task
	inner io.Reader
}

func (r *progressReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := r.inner.Read(p)
	r.task.addSent(int64(n))
	if err == io.EOF {
		// A cancel that raced in while the last read was blocked still
		// wins; the artifact is not durable until the backend commits.
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
	}
	return n, err
}
