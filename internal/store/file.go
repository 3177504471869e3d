package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/pkg/models"
)

const fileFormatVersion = 1

// fileDoc is the on-disk layout of tasks.json.
type fileDoc struct {
	Version int            `json:"version"`
	Order   []string       `json:"order"`
	Tasks   []*models.Task `json:"tasks"`
}

// FileStore keeps the board in a single JSON file.
// Writes go to a temp file that is renamed over the target.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

var _ TaskStore = (*FileStore)(nil)

// NewFileStore returns a store backed by path. The file is created on first Save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the board. A missing file yields an empty snapshot. A file that
// cannot be parsed is moved aside to <path>.corrupt and an empty snapshot is
// returned.
func (s *FileStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "load", Err: err}
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		corrupt := s.path + ".corrupt"
		if rerr := os.Rename(s.path, corrupt); rerr != nil {
			return nil, &apperr.PersistenceError{Op: "load", Err: fmt.Errorf("move corrupt file aside: %w", rerr)}
		}
		s.logger.Warn("task store corrupt, starting empty", "path", s.path, "saved_as", corrupt, "error", err)
		return NewSnapshot(), nil
	}

	snap := NewSnapshot()
	for _, t := range doc.Tasks {
		if t == nil || t.ID == "" {
			continue
		}
		if !t.Status.Valid() {
			s.logger.Warn("task with unknown status reset to todo", "task_id", t.ID, "status", t.Status)
			t.Status = models.TaskStatusTodo
		}
		snap.Tasks[t.ID] = t
	}
	snap.Order = doc.Order
	snap.normalize()
	return snap, nil
}

// Save writes the board atomically.
func (s *FileStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := fileDoc{Version: fileFormatVersion, Order: snap.Order, Tasks: snap.Ordered()}
	if doc.Order == nil {
		doc.Order = []string{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &apperr.PersistenceError{Op: "save", Err: err}
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return &apperr.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
