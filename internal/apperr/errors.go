// Package apperr defines the error kinds surfaced by the orchestration engine.
//
// Each kind is a struct type so callers can match with errors.As and inspect
// the details (conflicting files, exit codes, config keys).
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is returned when a command is not allowed in the current
// task state. State is never changed when one is returned.
type ValidationError struct {
	Op  string
	Msg string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation builds a ValidationError.
func Validation(op, format string, args ...any) error {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ProcessError reports that an agent or helper process failed to start or
// exited unsuccessfully.
type ProcessError struct {
	RunID    string
	ExitCode int
	Msg      string
	Err      error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	b.WriteString("process")
	if e.RunID != "" {
		b.WriteString(" " + e.RunID)
	}
	b.WriteString(": " + e.Msg)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProcessError) Unwrap() error { return e.Err }

// GitKind classifies version-control failures.
type GitKind int

const (
	// GitCommand is any git failure that is not one of the kinds below.
	GitCommand GitKind = iota
	// GitNotFound means the repository, branch, or worktree does not exist.
	GitNotFound
	// GitConflict means a merge would produce conflicts.
	GitConflict
	// GitDirtyWorktree means uncommitted changes prevent the operation.
	GitDirtyWorktree
)

func (k GitKind) String() string {
	switch k {
	case GitNotFound:
		return "not found"
	case GitConflict:
		return "conflict"
	case GitDirtyWorktree:
		return "dirty worktree"
	default:
		return "git command failed"
	}
}

// GitError reports a version-control failure. Files lists the conflicting
// paths for GitConflict.
type GitError struct {
	Kind  GitKind
	Op    string
	Files []string
	Err   error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if len(e.Files) > 0 {
		msg += " in " + strings.Join(e.Files, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GitError) Unwrap() error { return e.Err }

// PersistenceError reports that the task store could not be written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigError reports a missing or invalid configuration value.
type ConfigError struct {
	Key string
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Key != "" {
		msg = e.Key + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "config: " + msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}

// IsProcess reports whether err is a ProcessError.
func IsProcess(err error) bool {
	var p *ProcessError
	return errors.As(err, &p)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

// GitKindOf returns the kind of the first GitError in err's chain.
func GitKindOf(err error) (GitKind, bool) {
	var g *GitError
	if errors.As(err, &g) {
		return g.Kind, true
	}
	return 0, false
}

// IsGitKind reports whether err carries a GitError of the given kind.
func IsGitKind(err error, kind GitKind) bool {
	k, ok := GitKindOf(err)
	return ok && k == kind
}

// ConflictFiles returns the conflicting paths carried by err, if any.
func ConflictFiles(err error) []string {
	var g *GitError
	if errors.As(err, &g) && g.Kind == GitConflict {
		return g.Files
	}
	return nil
}
