// Package storage persists ingested file bytes to a stable path. Only a
// local-filesystem driver is implemented; S3 and other drivers are external
// collaborators per spec.md §1's Non-goals.
package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Driver persists content for owner and returns the stable path the Store
// should record against the document row.
type Driver interface {
	Put(ctx context.Context, owner, filename string, content []byte) (path string, err error)
}

// LocalDriver lays files out as <root>/<owner>/<uuid>-<filename>, avoiding
// collisions between same-named uploads from the same owner.
type LocalDriver struct {
	root string
}

func NewLocalDriver(root string) *LocalDriver {
	return &LocalDriver{root: root}
}

func (d *LocalDriver) Put(ctx context.Context, owner, filename string, content []byte) (string, error) {
	dir := filepath.Join(d.root, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.New().String()+"-"+filepath.Base(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
