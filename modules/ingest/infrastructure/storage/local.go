// Package storage keeps uploaded files between wizard steps. The wizard
// re-derives its view from the stored bytes on every stage entry, so
// the store is the single source of file content after upload.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

type FileStore interface {
	Save(ctx context.Context, filename string, content []byte) (path string, err error)
	Read(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, path string) error
}

// LocalFileStore writes uploads to a single directory on the local
// filesystem. Stored names carry a random prefix so repeated uploads of
// the same filename never collide.
type LocalFileStore struct {
	dir string
}

func NewLocalFileStore(dir string) *LocalFileStore {
	return &LocalFileStore{dir: dir}
}

func (s *LocalFileStore) Save(_ context.Context, filename string, content []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create upload directory %s", s.dir)
	}
	path := filepath.Join(s.dir, uuid.New().String()+"-"+sanitizeFilename(filename))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to store upload %s", path)
	}
	return path, nil
}

func (s *LocalFileStore) Read(_ context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read stored upload %s", path)
	}
	return content, nil
}

// Remove deletes a stored upload. A path that is already gone is not an
// error.
func (s *LocalFileStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove stored upload %s", path)
	}
	return nil
}

// sanitizeFilename strips directory components and anything outside a
// conservative character set.
func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload.csv"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
