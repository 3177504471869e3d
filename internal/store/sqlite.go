package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the board and agent run history in an SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

var (
	_ TaskStore   = (*SQLiteStore)(nil)
	_ RunRecorder = (*SQLiteStore)(nil)
)

// OpenSQLite opens the database at path, creating parent directories,
// enabling WAL mode and applying pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &apperr.PersistenceError{Op: "open", Err: fmt.Errorf("create db directory: %w", err)}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "open", Err: err}
	}
	// One writer keeps sqlite from reporting SQLITE_BUSY inside our own process.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, &apperr.PersistenceError{Op: "open", Err: fmt.Errorf("%s: %w", pragma, err)}
		}
	}

	s := &SQLiteStore{conn: conn, path: path}
	if err := s.Migrate(); err != nil {
		conn.Close()
		return nil, &apperr.PersistenceError{Op: "migrate", Err: err}
	}
	return s, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2AgentRuns},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1Tasks = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo',
	planner TEXT NOT NULL DEFAULT '',
	executor TEXT NOT NULL DEFAULT '',
	branch_name TEXT NOT NULL DEFAULT '',
	worktree_path TEXT NOT NULL DEFAULT '',
	plan_path TEXT NOT NULL DEFAULT '',
	active_run_id TEXT NOT NULL DEFAULT '',
	pr_url TEXT NOT NULL DEFAULT '',
	last_failure TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	started_at DATETIME,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

const migrationV2AgentRuns = `
CREATE TABLE IF NOT EXISTS agent_runs (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	role TEXT NOT NULL,
	agent TEXT NOT NULL,
	command TEXT NOT NULL DEFAULT '[]',
	dir TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	pid INTEGER NOT NULL DEFAULT 0,
	log_path TEXT NOT NULL DEFAULT '',
	exit_code INTEGER NOT NULL DEFAULT -1,
	exit_summary TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	ended_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_agent_runs_task_id ON agent_runs(task_id);
`

// Load returns every task ordered by position.
func (s *SQLiteStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`
		SELECT id, title, description, status, planner, executor, branch_name,
			worktree_path, plan_path, active_run_id, pr_url, last_failure,
			created_at, updated_at, started_at, completed_at
		FROM tasks ORDER BY position, created_at
	`)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "load", Err: err}
	}
	defer rows.Close()

	snap := NewSnapshot()
	for rows.Next() {
		var t models.Task
		var status, createdAt, updatedAt string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &status, &t.Planner, &t.Executor,
			&t.BranchName, &t.WorktreePath, &t.PlanPath, &t.ActiveRunID, &t.PRURL, &t.LastFailure,
			&createdAt, &updatedAt, &startedAt, &completedAt); err != nil {
			return nil, &apperr.PersistenceError{Op: "load", Err: fmt.Errorf("scan task: %w", err)}
		}
		t.Status = models.TaskStatus(status)
		if !t.Status.Valid() {
			t.Status = models.TaskStatusTodo
		}
		t.CreatedAt, _ = parseTime(createdAt)
		t.UpdatedAt, _ = parseTime(updatedAt)
		t.StartedAt = parseNullableTime(startedAt)
		t.CompletedAt = parseNullableTime(completedAt)
		snap.Put(&t)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "load", Err: err}
	}
	return snap, nil
}

// Save replaces the tasks table with snap in one transaction.
func (s *SQLiteStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return &apperr.PersistenceError{Op: "save", Err: err}
	}
	if _, err := tx.Exec("DELETE FROM tasks"); err != nil {
		tx.Rollback()
		return &apperr.PersistenceError{Op: "save", Err: err}
	}
	stmt, err := tx.Prepare(`
		INSERT INTO tasks (id, position, title, description, status, planner, executor,
			branch_name, worktree_path, plan_path, active_run_id, pr_url, last_failure,
			created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return &apperr.PersistenceError{Op: "save", Err: err}
	}
	defer stmt.Close()

	for i, t := range snap.Ordered() {
		_, err := stmt.Exec(t.ID, i, t.Title, t.Description, string(t.Status), t.Planner, t.Executor,
			t.BranchName, t.WorktreePath, t.PlanPath, t.ActiveRunID, t.PRURL, t.LastFailure,
			formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
			formatNullableTime(t.StartedAt), formatNullableTime(t.CompletedAt))
		if err != nil {
			tx.Rollback()
			return &apperr.PersistenceError{Op: "save", Err: fmt.Errorf("insert task %s: %w", t.ID, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &apperr.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// RecordRun inserts or updates an agent run.
func (s *SQLiteStore) RecordRun(run *models.AgentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	command, err := json.Marshal(run.Command)
	if err != nil {
		return &apperr.PersistenceError{Op: "record run", Err: err}
	}
	_, err = s.conn.Exec(`
		INSERT INTO agent_runs (id, task_id, role, agent, command, dir, status, pid, log_path,
			exit_code, exit_summary, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			pid = excluded.pid,
			exit_code = excluded.exit_code,
			exit_summary = excluded.exit_summary,
			ended_at = excluded.ended_at
	`, run.ID, run.TaskID, string(run.Role), run.Agent, string(command), run.Dir, string(run.Status),
		run.PID, run.LogPath, run.ExitCode, run.ExitSummary, formatTime(run.StartedAt),
		formatNullableTime(run.EndedAt))
	if err != nil {
		return &apperr.PersistenceError{Op: "record run", Err: err}
	}
	return nil
}

// ListRuns returns the runs recorded for a task, oldest first.
func (s *SQLiteStore) ListRuns(taskID string) ([]*models.AgentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`
		SELECT id, task_id, role, agent, command, dir, status, pid, log_path,
			exit_code, exit_summary, started_at, ended_at
		FROM agent_runs WHERE task_id = ? ORDER BY started_at, id
	`, taskID)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list runs", Err: err}
	}
	defer rows.Close()

	var runs []*models.AgentRun
	for rows.Next() {
		var r models.AgentRun
		var role, command, status, startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.TaskID, &role, &r.Agent, &command, &r.Dir, &status, &r.PID,
			&r.LogPath, &r.ExitCode, &r.ExitSummary, &startedAt, &endedAt); err != nil {
			return nil, &apperr.PersistenceError{Op: "list runs", Err: fmt.Errorf("scan run: %w", err)}
		}
		r.Role = models.Role(role)
		r.Status = models.RunStatus(status)
		_ = json.Unmarshal([]byte(command), &r.Command)
		r.StartedAt, _ = parseTime(startedAt)
		r.EndedAt = parseNullableTime(endedAt)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "list runs", Err: err}
	}
	return runs, nil
}

// formatTime formats a time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
