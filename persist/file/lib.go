// Package file implements flattree.Persist on a local directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Persist stores each chunk as a file, sharded into subdirectories by the
// first two characters of its name.
type Persist struct {
	basepath string
}

func (p Persist) path(name string) string {
	if len(name) <= 2 {
		return filepath.Join(p.basepath, name)
	}
	return filepath.Join(p.basepath, name[:2], name)
}

// Load loads the bytes persisted under the given name. A missing name
// yields an error wrapping fs.ErrNotExist.
func (p Persist) Load(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(p.path(name))
}

// Store persists the given bytes under the given name, if it doesn't exist
// already. The file appears atomically.
func (p Persist) Store(ctx context.Context, name string, b []byte) error {
	path := p.path(name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), path)
}

// NewPersistForPath returns a Persist that loads and stores chunks as
// files under the directory at the given path.
//
//	p := NewPersistForPath("/var/db/categories")
//	b, err := p.Load(ctx, "mQ3x0yJ8d0m8Jc2Hc7bq8M3c5W3lQ0hH2a5Zb8m1Q3k")
func NewPersistForPath(path string) Persist {
	return Persist{path}
}
