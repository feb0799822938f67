package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"blink/internal/livestatus"
)

// FileSnapshotStore keeps the snapshot in a JSON file. A sibling lock file
// serializes access between processes sharing the path.
type FileSnapshotStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

func NewFileSnapshotStore(path string, logger *slog.Logger) (*FileSnapshotStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	return &FileSnapshotStore{
		path:   path,
		lock:   flock.New(lockPath(path)),
		logger: logger.With("component", "file_snapshot"),
	}, nil
}

func (s *FileSnapshotStore) Path() string {
	return s.path
}

func (s *FileSnapshotStore) Get(ctx context.Context) (*livestatus.Snapshot, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock snapshot: %w", err)
	}
	defer s.unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return livestatus.DecodeSnapshot(data)
}

// Set replaces the file atomically via a temp file and rename.
func (s *FileSnapshotStore) Set(ctx context.Context, snap *livestatus.Snapshot) error {
	data, err := livestatus.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock snapshot: %w", err)
	}
	defer s.unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	s.logger.Debug("snapshot written", "path", s.path, "size_bytes", len(data))
	return nil
}

func (s *FileSnapshotStore) Remove(ctx context.Context) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock snapshot: %w", err)
	}
	defer s.unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release snapshot lock", "error", err)
	}
}
