// Package store persists the task board between sessions.
//
// Two backends are provided: a JSON file (the default) and an SQLite
// database that additionally keeps agent run history. Both satisfy TaskStore.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/pkg/models"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// File names inside the hive directory.
const (
	TasksFile  = "tasks.json"
	SQLiteFile = "hive.db"
)

// Snapshot is the full persisted board: every task plus display order.
type Snapshot struct {
	Tasks map[string]*models.Task
	Order []string
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Tasks: make(map[string]*models.Task)}
}

// Put inserts or replaces a task, appending new ids to the order.
func (s *Snapshot) Put(t *models.Task) {
	if _, ok := s.Tasks[t.ID]; !ok {
		s.Order = append(s.Order, t.ID)
	}
	s.Tasks[t.ID] = t
}

// Delete removes a task and its order entry.
func (s *Snapshot) Delete(id string) {
	delete(s.Tasks, id)
	s.Order = slices.DeleteFunc(s.Order, func(o string) bool { return o == id })
}

// Ordered returns the tasks in display order.
func (s *Snapshot) Ordered() []*models.Task {
	out := make([]*models.Task, 0, len(s.Order))
	for _, id := range s.Order {
		if t, ok := s.Tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Tasks: make(map[string]*models.Task, len(s.Tasks)),
		Order: slices.Clone(s.Order),
	}
	for id, t := range s.Tasks {
		c.Tasks[id] = t.Clone()
	}
	return c
}

// normalize drops order entries without a task, removes duplicates and
// appends tasks missing from the order sorted by creation time.
func (s *Snapshot) normalize() {
	if s.Tasks == nil {
		s.Tasks = make(map[string]*models.Task)
	}
	seen := make(map[string]bool, len(s.Order))
	order := s.Order[:0]
	for _, id := range s.Order {
		if _, ok := s.Tasks[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	var missing []*models.Task
	for id, t := range s.Tasks {
		if !seen[id] {
			missing = append(missing, t)
		}
	}
	slices.SortFunc(missing, func(a, b *models.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	for _, t := range missing {
		order = append(order, t.ID)
	}
	s.Order = order
}

// TaskStore loads and saves the whole board.
type TaskStore interface {
	io.Closer
	// Load returns the persisted board. A missing store yields an empty snapshot.
	Load() (*Snapshot, error)
	// Save replaces the persisted board with snap.
	Save(snap *Snapshot) error
}

// RunRecorder is implemented by stores that keep agent run history.
type RunRecorder interface {
	// RecordRun inserts or updates a run.
	RecordRun(run *models.AgentRun) error
	// ListRuns returns the runs of a task, oldest first.
	ListRuns(taskID string) ([]*models.AgentRun, error)
}

// Open opens the store for backend inside hiveDir.
func Open(backend, hiveDir string, logger *slog.Logger) (TaskStore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(filepath.Join(hiveDir, TasksFile), logger), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(hiveDir, SQLiteFile))
	default:
		return nil, &apperr.ConfigError{
			Key: "store.backend",
			Msg: fmt.Sprintf("unknown backend %q (want %s or %s)", backend, BackendFile, BackendSQLite),
		}
	}
}
