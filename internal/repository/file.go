package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"giveaway-bot/internal/model"
)

// FileStore keeps the snapshot in a single human-readable JSON file.
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so a crash leaves either the old or the new snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a new FileStore instance.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing or empty file yields no giveaways.
func (s *FileStore) Load(ctx context.Context) ([]*model.Giveaway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*model.Giveaway{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	giveaways, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return giveaways, nil
}

// Save atomically replaces the snapshot file.
func (s *FileStore) Save(ctx context.Context, giveaways []*model.Giveaway) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	data, err := encodeSnapshot(giveaways)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Close is a no-op; the file is not held open between saves.
func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
