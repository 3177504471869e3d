package worktree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/git"
)

// Backend is the version-control capability the Manager needs.
type Backend interface {
	// IsRepo reports whether the repository root is a git work tree.
	IsRepo(ctx context.Context) bool
	// CurrentBranch returns the branch checked out at the repository root.
	CurrentBranch(ctx context.Context) (string, error)
	// RevParse resolves ref to a commit id.
	RevParse(ctx context.Context, ref string) (string, error)
	// BranchExists reports whether a local branch exists.
	BranchExists(ctx context.Context, name string) (bool, error)
	// AddWorktree checks out branch at path, creating it from base when newBranch.
	AddWorktree(ctx context.Context, path, branch, base string, newBranch bool) error
	// RemoveWorktree deletes the worktree at path.
	RemoveWorktree(ctx context.Context, path string, force bool) error
	// ListWorktrees returns the worktrees git knows about.
	ListWorktrees(ctx context.Context) ([]git.WorktreeEntry, error)
	// PruneWorktrees drops administrative entries for missing worktrees.
	PruneWorktrees(ctx context.Context) error
	// DeleteBranch deletes a local branch.
	DeleteBranch(ctx context.Context, name string, force bool) error
	// HasChanges reports uncommitted changes in dir.
	HasChanges(ctx context.Context, dir string) (bool, error)
	// CommitAll stages and commits everything in dir. It returns false when
	// there was nothing to commit.
	CommitAll(ctx context.Context, dir, message string) (bool, error)
	// DiffStream streams the unified diff of branch against its merge base
	// with base.
	DiffStream(ctx context.Context, base, branch string) (io.ReadCloser, error)
	// Merge merges branch into the checked out base with a merge commit.
	// It either succeeds or leaves the base untouched and returns a
	// GitError of kind GitConflict.
	Merge(ctx context.Context, branch, message string) error
	// Push publishes branch from dir to remote.
	Push(ctx context.Context, dir, remote, branch string) error
	// Exclude adds pattern to the repository's local exclude file.
	Exclude(ctx context.Context, pattern string) error
}

// GitBackend implements Backend on top of a git.Runner.
type GitBackend struct {
	git git.Runner
}

// NewGitBackend creates a backend for the repository at repoRoot.
func NewGitBackend(repoRoot string) *GitBackend {
	return &GitBackend{git: git.NewRunner(repoRoot)}
}

// NewGitBackendWithRunner creates a backend with a custom git runner (for testing).
func NewGitBackendWithRunner(r git.Runner) *GitBackend {
	return &GitBackend{git: r}
}

func (b *GitBackend) IsRepo(ctx context.Context) bool { return b.git.IsRepo(ctx) }

func (b *GitBackend) CurrentBranch(ctx context.Context) (string, error) {
	return b.git.CurrentBranch(ctx)
}

func (b *GitBackend) RevParse(ctx context.Context, ref string) (string, error) {
	return b.git.RevParse(ctx, ref)
}

func (b *GitBackend) BranchExists(ctx context.Context, name string) (bool, error) {
	return b.git.BranchExists(ctx, name)
}

func (b *GitBackend) AddWorktree(ctx context.Context, path, branch, base string, newBranch bool) error {
	return b.git.WorktreeAdd(ctx, path, branch, base, newBranch)
}

func (b *GitBackend) RemoveWorktree(ctx context.Context, path string, force bool) error {
	return b.git.WorktreeRemove(ctx, path, force)
}

func (b *GitBackend) ListWorktrees(ctx context.Context) ([]git.WorktreeEntry, error) {
	return b.git.WorktreeList(ctx)
}

func (b *GitBackend) PruneWorktrees(ctx context.Context) error {
	return b.git.WorktreePrune(ctx)
}

func (b *GitBackend) DeleteBranch(ctx context.Context, name string, force bool) error {
	return b.git.DeleteBranch(ctx, name, force)
}

func (b *GitBackend) HasChanges(ctx context.Context, dir string) (bool, error) {
	return b.git.At(dir).HasChanges(ctx)
}

func (b *GitBackend) CommitAll(ctx context.Context, dir, message string) (bool, error) {
	r := b.git.At(dir)
	dirty, err := r.HasChanges(ctx)
	if err != nil || !dirty {
		return false, err
	}
	if err := r.AddAll(ctx); err != nil {
		return false, err
	}
	if err := r.Commit(ctx, message); err != nil {
		return false, err
	}
	return true, nil
}

func (b *GitBackend) DiffStream(ctx context.Context, base, branch string) (io.ReadCloser, error) {
	return b.git.DiffStream(ctx, base, branch)
}

// Merge pre-checks with merge-tree so a conflicting merge never touches the
// work tree. Git without merge-tree --write-tree falls through to a real
// merge that is aborted on failure.
func (b *GitBackend) Merge(ctx context.Context, branch, message string) error {
	files, err := b.git.MergeTree(ctx, "HEAD", branch)
	if err == nil && files != nil {
		return &apperr.GitError{Kind: apperr.GitConflict, Op: "merge " + branch, Files: files}
	}

	head, err := b.git.RevParse(ctx, "HEAD")
	if err != nil {
		return err
	}
	mergeErr := b.git.MergeNoFFMessage(ctx, branch, message)
	if mergeErr == nil {
		return nil
	}

	conflicted, _ := b.git.ConflictedFiles(ctx)
	_ = b.git.MergeAbort(ctx)
	if cur, err := b.git.RevParse(ctx, "HEAD"); err != nil || cur != head {
		if err := b.git.ResetHard(ctx, head); err != nil {
			return fmt.Errorf("restore %s after failed merge: %w", head, err)
		}
	}
	if len(conflicted) > 0 {
		return &apperr.GitError{Kind: apperr.GitConflict, Op: "merge " + branch, Files: conflicted}
	}
	return mergeErr
}

func (b *GitBackend) Push(ctx context.Context, dir, remote, branch string) error {
	return b.git.At(dir).Push(ctx, remote, branch)
}

// Exclude appends pattern to .git/info/exclude unless already present.
func (b *GitBackend) Exclude(ctx context.Context, pattern string) error {
	common, err := b.git.Run(ctx, "rev-parse", "--git-common-dir")
	if err != nil {
		return err
	}
	if !filepath.IsAbs(common) {
		common = filepath.Join(b.git.Dir(), common)
	}
	path := filepath.Join(common, "info", "exclude")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read exclude file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == pattern {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create info dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open exclude file: %w", err)
	}
	defer f.Close()
	prefix := ""
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		prefix = "\n"
	}
	_, err = f.WriteString(prefix + pattern + "\n")
	return err
}

// Verify GitBackend implements Backend at compile time.
var _ Backend = (*GitBackend)(nil)
