// Package artifact provides destinations for extracted pipeline artifacts:
// a local directory and an S3-compatible object store.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store receives extracted artifact files. Name is a relative path such as
// "final_report.json" or "status/fetch_complete.json". Put returns the
// caller-addressable location the file was stored at.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Dir is a Store writing into a local directory, creating it as needed.
type Dir struct {
	Root string
}

// NewDir creates a directory-backed store rooted at root.
func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Put writes the file under the root directory.
func (d *Dir) Put(_ context.Context, name string, data []byte) (string, error) {
	dest := filepath.Join(d.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("artifact: failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("artifact: failed to write %s: %w", name, err)
	}
	return dest, nil
}
