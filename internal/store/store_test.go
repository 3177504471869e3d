package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/pkg/models"
)

func sampleTask(id string, status models.TaskStatus, created time.Time) *models.Task {
	return &models.Task{
		ID:          id,
		Title:       "title " + id,
		Description: "desc " + id,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// backends returns a fresh store of every kind.
func backends(t *testing.T) map[string]func(t *testing.T) TaskStore {
	t.Helper()
	dir := t.TempDir()
	return map[string]func(t *testing.T) TaskStore{
		BackendFile: func(t *testing.T) TaskStore {
			return NewFileStore(filepath.Join(dir, "file", TasksFile), nil)
		},
		BackendSQLite: func(t *testing.T) TaskStore {
			t.Helper()
			s, err := OpenSQLite(filepath.Join(dir, "sqlite", SQLiteFile))
			if err != nil {
				t.Fatalf("OpenSQLite failed: %v", err)
			}
			return s
		},
	}
}

func TestStore_EmptyLoad(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			snap, err := s.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(snap.Tasks) != 0 || len(snap.Order) != 0 {
				t.Errorf("expected empty snapshot, got %d tasks", len(snap.Tasks))
			}
		})
	}
}

func TestStore_RoundTripPreservesOrderAndFields(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	started := base.Add(time.Minute)

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)

			snap := NewSnapshot()
			a := sampleTask("task-aaaaaaaa", models.TaskStatusReview, base)
			a.Planner = "gemini"
			a.Executor = "claude"
			a.BranchName = "hive/task-aaaaaaaa"
			a.WorktreePath = "/tmp/wt/task-aaaaaaaa"
			a.PlanPath = "/tmp/plans/task-aaaaaaaa.md"
			a.PRURL = "https://example.com/pr/1"
			a.LastFailure = "planner exited with code 2"
			a.StartedAt = &started
			b := sampleTask("task-bbbbbbbb", models.TaskStatusTodo, base.Add(-time.Hour))
			snap.Put(a)
			snap.Put(b)

			if err := s.Save(snap); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			s.Close()

			s = open(t)
			defer s.Close()
			got, err := s.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if len(got.Order) != 2 || got.Order[0] != a.ID || got.Order[1] != b.ID {
				t.Fatalf("Order = %v, want [%s %s]", got.Order, a.ID, b.ID)
			}
			ga := got.Tasks[a.ID]
			if ga == nil {
				t.Fatal("task a missing after reload")
			}
			if ga.Status != a.Status || ga.Planner != a.Planner || ga.Executor != a.Executor ||
				ga.BranchName != a.BranchName || ga.WorktreePath != a.WorktreePath ||
				ga.PlanPath != a.PlanPath || ga.PRURL != a.PRURL || ga.LastFailure != a.LastFailure {
				t.Errorf("reloaded task differs: %+v", ga)
			}
			if !ga.CreatedAt.Equal(a.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", ga.CreatedAt, a.CreatedAt)
			}
			if ga.StartedAt == nil || !ga.StartedAt.Equal(started) {
				t.Errorf("StartedAt = %v, want %v", ga.StartedAt, started)
			}
			if ga.CompletedAt != nil {
				t.Errorf("CompletedAt = %v, want nil", ga.CompletedAt)
			}
		})
	}
}

func TestStore_SaveReplacesDeletedTasks(t *testing.T) {
	now := time.Now().UTC()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			snap := NewSnapshot()
			snap.Put(sampleTask("task-11111111", models.TaskStatusTodo, now))
			snap.Put(sampleTask("task-22222222", models.TaskStatusTodo, now))
			if err := s.Save(snap); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			snap.Delete("task-11111111")
			if err := s.Save(snap); err != nil {
				t.Fatalf("second Save failed: %v", err)
			}

			got, err := s.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if _, ok := got.Tasks["task-11111111"]; ok {
				t.Error("deleted task still present")
			}
			if len(got.Order) != 1 || got.Order[0] != "task-22222222" {
				t.Errorf("Order = %v", got.Order)
			}
		})
	}
}

func TestFileStore_CorruptFileIsPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), TasksFile)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path, nil)
	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snap.Tasks) != 0 {
		t.Errorf("expected empty snapshot, got %d tasks", len(snap.Tasks))
	}

	data, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("corrupt copy missing: %v", err)
	}
	if string(data) != "{not json" {
		t.Errorf("corrupt copy = %q", data)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("original file should be moved aside, stat err = %v", err)
	}
}

func TestFileStore_NormalizesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), TasksFile)
	doc := `{
  "version": 1,
  "order": ["task-gone", "task-b", "task-b"],
  "tasks": [
    {"id": "task-a", "title": "a", "status": "todo", "created_at": "2026-01-01T00:00:00Z"},
    {"id": "task-b", "title": "b", "status": "bogus", "created_at": "2026-01-02T00:00:00Z"},
    {"id": "task-c", "title": "c", "status": "done", "created_at": "2025-12-31T00:00:00Z"}
  ]
}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	snap, err := NewFileStore(path, nil).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"task-b", "task-c", "task-a"}
	if len(snap.Order) != len(want) {
		t.Fatalf("Order = %v, want %v", snap.Order, want)
	}
	for i := range want {
		if snap.Order[i] != want[i] {
			t.Errorf("Order[%d] = %s, want %s", i, snap.Order[i], want[i])
		}
	}
	if snap.Tasks["task-b"].Status != models.TaskStatusTodo {
		t.Errorf("unknown status should reset to todo, got %s", snap.Tasks["task-b"].Status)
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "nested", TasksFile), nil)

	snap := NewSnapshot()
	snap.Put(sampleTask("task-12345678", models.TaskStatusTodo, time.Now()))
	if err := s.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != TasksFile {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want only %s", names, TasksFile)
	}
}

func TestFileStore_SaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	// The parent "directory" is a regular file, so MkdirAll fails.
	s := NewFileStore(filepath.Join(blocker, TasksFile), nil)

	err := s.Save(NewSnapshot())
	if !apperr.IsPersistence(err) {
		t.Fatalf("Save error = %v, want PersistenceError", err)
	}
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), SQLiteFile)
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	var count int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("schema_version rows = %d, want 2", count)
	}
}

func TestSQLiteStore_RecordRun(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), SQLiteFile))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	run := &models.AgentRun{
		ID:        "run-1",
		TaskID:    "task-abcdef01",
		Role:      models.RolePlanner,
		Agent:     "gemini",
		Command:   []string{"gemini", "-y", "plan it"},
		Dir:       "/tmp/wt",
		Status:    models.RunStatusRunning,
		PID:       4242,
		LogPath:   "/tmp/logs/run-1.log",
		ExitCode:  -1,
		StartedAt: start,
	}
	if err := s.RecordRun(run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	ended := start.Add(2 * time.Minute)
	run.Status = models.RunStatusFailed
	run.ExitCode = 3
	run.ExitSummary = "boom"
	run.EndedAt = &ended
	if err := s.RecordRun(run); err != nil {
		t.Fatalf("RecordRun update failed: %v", err)
	}

	runs, err := s.ListRuns("task-abcdef01")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != models.RunStatusFailed || got.ExitCode != 3 || got.ExitSummary != "boom" {
		t.Errorf("run not updated: %+v", got)
	}
	if len(got.Command) != 3 || got.Command[2] != "plan it" {
		t.Errorf("Command = %v", got.Command)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, ended)
	}

	other, err := s.ListRuns("task-none")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no runs for unknown task, got %d", len(other))
	}
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend  string
		wantFile string
		wantErr  bool
	}{
		{backend: "", wantFile: TasksFile},
		{backend: BackendFile, wantFile: TasksFile},
		{backend: BackendSQLite, wantFile: SQLiteFile},
		{backend: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := Open(tt.backend, dir, nil)
			if tt.wantErr {
				if !apperr.IsConfig(err) {
					t.Fatalf("Open(%q) error = %v, want ConfigError", tt.backend, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open(%q) failed: %v", tt.backend, err)
			}
			defer s.Close()
			if err := s.Save(NewSnapshot()); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, tt.wantFile)); err != nil {
				t.Errorf("expected %s to exist: %v", tt.wantFile, err)
			}
		})
	}
}
