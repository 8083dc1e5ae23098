package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"bhasha/internal/fileutil"
	"bhasha/internal/services"
)

const metaSuffix = ".meta"

// FSStore is a filesystem-backed Store. Objects live under a root directory
// at their pathname; a JSON sidecar records the content type. Writes go
// through a temp file and rename, so a crash never leaves a readable
// partial object.
type FSStore struct {
	root string
}

type objectMeta struct {
	ContentType string `json:"contentType"`
}

// NewFSStore creates a store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	absolute, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(absolute, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &FSStore{root: absolute}, nil
}

// Root returns the directory backing the store.
func (s *FSStore) Root() string { return s.root }

// Put stores the object and its content-type sidecar.
func (s *FSStore) Put(ctx context.Context, pathname string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	target, err := s.resolve(pathname)
	if err != nil {
		return ObjectInfo{}, err
	}

	size, _, err := fileutil.WriteAtomic(target, r)
	if err != nil {
		return ObjectInfo{}, services.Wrap(services.ErrTransferFailure, "blobstore", "put", pathname, err)
	}

	meta, err := json.Marshal(objectMeta{ContentType: opts.ContentType})
	if err == nil {
		err = fileutil.WriteFileAtomic(target+metaSuffix, meta)
	}
	if err != nil {
		_ = os.Remove(target)
		return ObjectInfo{}, services.Wrap(services.ErrTransferFailure, "blobstore", "put metadata", pathname, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return ObjectInfo{}, services.Wrap(services.ErrTransferFailure, "blobstore", "stat object", pathname, err)
	}
	return ObjectInfo{
		URL:         s.urlFor(pathname),
		Pathname:    pathname,
		ContentType: opts.ContentType,
		Size:        size,
		UploadedAt:  info.ModTime().UTC(),
	}, nil
}

// List returns stored objects under prefix, newest first.
func (s *FSStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		pathname := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(pathname, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			URL:         s.urlFor(pathname),
			Pathname:    pathname,
			ContentType: s.readContentType(p),
			Size:        info.Size(),
			UploadedAt:  info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, "blobstore", "list", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].UploadedAt.Equal(objects[j].UploadedAt) {
			return objects[i].UploadedAt.After(objects[j].UploadedAt)
		}
		return objects[i].Pathname < objects[j].Pathname
	})
	if limit > 0 && len(objects) > limit {
		objects = objects[:limit]
	}
	return objects, nil
}

// Delete removes the object addressed by url. Deleting an absent object is
// a no-op success; only malformed or out-of-root URLs fail.
func (s *FSStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pathname, ok := s.pathnameFromURL(url)
	if !ok {
		return services.Wrap(services.ErrInvalidInput, "blobstore", "delete", "url does not address this store: "+url, nil)
	}
	target, err := s.resolve(pathname)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransferFailure, "blobstore", "delete", pathname, err)
	}
	if err := os.Remove(target + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrTransferFailure, "blobstore", "delete metadata", pathname, err)
	}
	return nil
}

func (s *FSStore) urlFor(pathname string) string {
	return "file://" + path.Join(filepath.ToSlash(s.root), pathname)
}

func (s *FSStore) pathnameFromURL(url string) (string, bool) {
	rootURL := "file://" + filepath.ToSlash(s.root) + "/"
	if !strings.HasPrefix(url, rootURL) {
		return "", false
	}
	return strings.TrimPrefix(url, rootURL), true
}

// resolve maps a pathname to an absolute target and rejects traversal
// outside the root.
func (s *FSStore) resolve(pathname string) (string, error) {
	slashed := filepath.ToSlash(pathname)
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", services.Wrap(services.ErrInvalidInput, "blobstore", "resolve", "pathname escapes store root: "+pathname, nil)
		}
	}
	cleaned := path.Clean("/" + slashed)
	if cleaned == "/" {
		return "", services.Wrap(services.ErrInvalidInput, "blobstore", "resolve", "empty pathname", nil)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

func (s *FSStore) readContentType(objectPath string) string {
	data, err := os.ReadFile(objectPath + metaSuffix)
	if err != nil {
		return "application/octet-stream"
	}
	var meta objectMeta
	if err := json.Unmarshal(data, &meta); err != nil || meta.ContentType == "" {
		return "application/octet-stream"
	}
	return meta.ContentType
}
