package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
	"github.com/samber/oops"
)

// FileStorage implements post.Repository as a single JSON document
type FileStorage struct {
	path string
	mu   sync.RWMutex
}

// NewFileStorage creates a file-based post repository writing to path
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// SavePosts writes posts as an indented JSON array to a temp file in the
// destination directory and renames it over the previous document. On any
// failure the previous document is left untouched.
func (s *FileStorage) SavePosts(ctx context.Context, posts []domain.Post) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Mark(apperrors.ErrStorage, err)
	}
	if posts == nil {
		posts = []domain.Post{}
	}

	// Content is already entity-escaped; keep it readable on disk
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(posts); err != nil {
		return apperrors.Mark(apperrors.ErrStorage, oops.With("path", s.path, "context", "failed to marshal posts").Wrap(err))
	}
	data := buf.Bytes()

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Mark(apperrors.ErrStorage, oops.With("dir", dir, "context", "failed to create output directory").Wrap(err))
	}

	if err := writeAtomic(s.path, data); err != nil {
		return apperrors.Mark(apperrors.ErrStorage, oops.With("path", s.path, "posts", len(posts)).Wrap(err))
	}
	return nil
}

// GetPosts reads the persisted collection. A missing document is an empty
// collection.
func (s *FileStorage) GetPosts(_ context.Context) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Post{}, nil
		}
		return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("path", s.path, "context", "failed to read posts").Wrap(err))
	}

	posts := []domain.Post{}
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, apperrors.Mark(apperrors.ErrStorage, oops.With("path", s.path, "context", "failed to unmarshal posts").Wrap(err))
	}
	return posts, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return oops.With("context", "failed to create temp file").Wrap(err)
	}
	tmpPath := tmp.Name()

	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(oops.With("context", "failed to write temp file").Wrap(err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(oops.With("context", "failed to sync temp file").Wrap(err))
	}
	if err := tmp.Close(); err != nil {
		return cleanup(oops.With("context", "failed to close temp file").Wrap(err))
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return cleanup(oops.With("context", "failed to chmod temp file").Wrap(err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return cleanup(oops.With("context", "failed to replace posts file").Wrap(err))
	}
	return nil
}
