// Package git provides an interface for git operations.
package git

import (
	"context"
	"io"
)

// WorktreeEntry is one record from git worktree list --porcelain.
type WorktreeEntry struct {
	Path     string
	Branch   string
	Head     string
	Bare     bool
	Detached bool
	Prunable bool
}

// BranchOperations defines the interface for git branch and ref queries.
type BranchOperations interface {
	// CurrentBranch returns the name of the checked out branch.
	CurrentBranch(ctx context.Context) (string, error)
	// BranchExists returns true if refs/heads/<name> exists.
	BranchExists(ctx context.Context, name string) (bool, error)
	// DeleteBranch deletes a branch; force uses -D instead of -d.
	DeleteBranch(ctx context.Context, name string, force bool) error
	// RevParse resolves a ref to a commit id.
	RevParse(ctx context.Context, ref string) (string, error)
}

// StatusOperations defines the interface for working tree inspection.
type StatusOperations interface {
	// IsRepo reports whether the runner's directory is inside a work tree.
	IsRepo(ctx context.Context) bool
	// Status returns the output of git status --porcelain.
	Status(ctx context.Context) (string, error)
	// HasChanges returns true if there are uncommitted or untracked changes.
	HasChanges(ctx context.Context) (bool, error)
}

// CommitOperations defines the interface for recording changes.
type CommitOperations interface {
	// AddAll stages every change including untracked files.
	AddAll(ctx context.Context) error
	// Commit creates a commit with the given message.
	Commit(ctx context.Context, message string) error
}

// MergeOperations defines the interface for merging branches.
type MergeOperations interface {
	// MergeTree computes a merge without touching the work tree and returns
	// the conflicting paths, or nil when the merge is clean.
	MergeTree(ctx context.Context, base, branch string) ([]string, error)
	// MergeNoFFMessage merges branch with --no-ff and a custom message.
	MergeNoFFMessage(ctx context.Context, branch, message string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort(ctx context.Context) error
	// ConflictedFiles returns files with unmerged changes.
	ConflictedFiles(ctx context.Context) ([]string, error)
	// ResetHard resets the work tree and index to ref.
	ResetHard(ctx context.Context, ref string) error
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAdd creates a worktree at path. With newBranch it creates
	// branch from base, otherwise it checks out the existing branch.
	WorktreeAdd(ctx context.Context, path, branch, base string, newBranch bool) error
	// WorktreeRemove removes the worktree at path, optionally with force.
	WorktreeRemove(ctx context.Context, path string, force bool) error
	// WorktreeList returns the parsed porcelain worktree list.
	WorktreeList(ctx context.Context) ([]WorktreeEntry, error)
	// WorktreePrune removes stale worktree administrative entries.
	WorktreePrune(ctx context.Context) error
}

// DiffOperations defines the interface for streaming diffs.
type DiffOperations interface {
	// DiffStream starts git diff for base...branch and returns its stdout.
	// Closing the reader stops the subprocess.
	DiffStream(ctx context.Context, base, branch string) (io.ReadCloser, error)
}

// RemoteOperations defines the interface for git remote operations.
type RemoteOperations interface {
	// Push pushes branch to remote and sets upstream.
	Push(ctx context.Context, remote, branch string) error
}

// Runner defines the complete interface for git operations.
// Consumers should prefer the focused interfaces when possible.
type Runner interface {
	BranchOperations
	StatusOperations
	CommitOperations
	MergeOperations
	WorktreeOperations
	DiffOperations
	RemoteOperations
	// At returns a runner for another directory of the same repository,
	// typically a linked worktree.
	At(dir string) Runner
	// Dir returns the directory commands run in.
	Dir() string
	// Run executes an arbitrary git command with the given arguments.
	Run(ctx context.Context, args ...string) (string, error)
}
