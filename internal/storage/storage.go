// Package storage keeps uploaded and generated files on the local
// filesystem under a single root directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPath = errors.New("storage: invalid path")

// Store is the file store used by handlers and services.
type Store interface {
	Save(ctx context.Context, folder, ext string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// Local stores files below Root. Keys are slash-separated paths relative to
// Root, e.g. "applications/3f2a...pdf".
type Local struct {
	Root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{Root: root}, nil
}

// Save writes r to a new uuid-named file in folder and returns its key and
// size. ext should include the dot.
func (l *Local) Save(ctx context.Context, folder, ext string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	key := path.Join(folder, uuid.NewString()+strings.ToLower(ext))
	full, err := l.resolve(key)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", 0, err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", 0, err
	}
	return key, n, nil
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Remove deletes key. Missing files are not an error.
func (l *Local) Remove(_ context.Context, key string) error {
	full, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve maps a key to a path inside Root, rejecting traversal.
func (l *Local) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, `\`) || path.IsAbs(key) {
		return "", ErrInvalidPath
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.Root, filepath.FromSlash(clean)), nil
}
