// Package blobstore provides durable storage for uploaded source files. The
// import pipeline consumes the Gateway interface; the filesystem
// implementation serves single-node deployments and tests.
package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Gateway is the storage interface the pipeline depends on. Delete is
// best-effort: failures are logged, never propagated, so artifact purging can
// never block the run state machine.
type Gateway interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys []string)
}

// FS stores blobs as files under a root directory.
type FS struct {
	root string
}

// NewFS creates a filesystem gateway rooted at dir, creating it if needed.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, eris.New("blobstore: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blobstore: create root %s", dir)
	}
	return &FS{root: dir}, nil
}

func (f *FS) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "blobstore: put")
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "blobstore: create dir for %s", key)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "blobstore: write %s", key)
	}
	return nil
}

func (f *FS) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "blobstore: get")
	}
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore: read %s", key)
	}
	return data, nil
}

func (f *FS) Delete(ctx context.Context, keys []string) {
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		path, err := f.path(key)
		if err != nil {
			zap.L().Warn("blobstore: skip delete of invalid key", zap.String("key", key), zap.Error(err))
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("blobstore: delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// path resolves a key inside the root, rejecting traversal outside it.
func (f *FS) path(key string) (string, error) {
	if key == "" {
		return "", eris.New("blobstore: empty key")
	}
	clean := filepath.Clean(filepath.Join(f.root, filepath.FromSlash(key)))
	if clean != f.root && !strings.HasPrefix(clean, f.root+string(filepath.Separator)) {
		return "", eris.Errorf("blobstore: key %q escapes root", key)
	}
	return clean, nil
}
