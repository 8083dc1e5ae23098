package blobstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	URL         string    `json:"url"`
	Pathname    string    `json:"pathname"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// PutOptions carries per-object metadata for Put.
type PutOptions struct {
	ContentType string
}

// Store is the storage backend contract consumed by the upload coordinator
// and the media endpoints. Put must be durable on return: a nil error means
// the object survives a crash.
//
// Delete is idempotent: removing an object that does not exist succeeds.
type Store interface {
	Put(ctx context.Context, pathname string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	Delete(ctx context.Context, url string) error
}
