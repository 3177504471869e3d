package worktree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/git"
)

// MemoryBackend is an in-process Backend for tests and dry runs. Worktree
// directories are created on disk so agents have somewhere to run; branches,
// commits and merges are simulated.
type MemoryBackend struct {
	mu        sync.Mutex
	current   string
	branches  map[string]bool
	worktrees map[string]string
	dirty     map[string]bool
	conflicts map[string][]string
	diffs     map[string]string
	pushErr   error
	merged    []string
	pushed    []string
	commits   int
}

// NewMemoryBackend returns a backend whose repository is on branch base.
func NewMemoryBackend(base string) *MemoryBackend {
	return &MemoryBackend{
		current:   base,
		branches:  map[string]bool{base: true},
		worktrees: make(map[string]string),
		dirty:     make(map[string]bool),
		conflicts: make(map[string][]string),
		diffs:     make(map[string]string),
	}
}

// SetDirty marks dir as having uncommitted changes.
func (b *MemoryBackend) SetDirty(dir string, dirty bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty[dir] = dirty
}

// SetConflicts makes merging branch fail with the given files.
func (b *MemoryBackend) SetConflicts(branch string, files []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conflicts[branch] = files
}

// SetDiff sets the unified diff returned for branch.
func (b *MemoryBackend) SetDiff(branch, diff string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.diffs[branch] = diff
}

// SetPushError makes Push fail with err.
func (b *MemoryBackend) SetPushError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushErr = err
}

// Merged returns the branches merged so far.
func (b *MemoryBackend) Merged() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.merged...)
}

// Pushed returns the branches pushed so far.
func (b *MemoryBackend) Pushed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.pushed...)
}

// HasBranch reports whether branch exists.
func (b *MemoryBackend) HasBranch(branch string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.branches[branch]
}

// Commits returns how many commits CommitAll made.
func (b *MemoryBackend) Commits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commits
}

// WorktreeCount returns the number of linked worktrees.
func (b *MemoryBackend) WorktreeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.worktrees)
}

func (b *MemoryBackend) IsRepo(context.Context) bool { return true }

func (b *MemoryBackend) CurrentBranch(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, nil
}

func (b *MemoryBackend) RevParse(_ context.Context, ref string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.branches[ref] && ref != "HEAD" {
		return "", fmt.Errorf("unknown revision %s", ref)
	}
	return fmt.Sprintf("%040x", len(ref)+len(b.merged)), nil
}

func (b *MemoryBackend) BranchExists(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.branches[name], nil
}

func (b *MemoryBackend) AddWorktree(_ context.Context, path, branch, base string, newBranch bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.worktrees[path]; ok {
		return fmt.Errorf("'%s' already exists", path)
	}
	if newBranch {
		if b.branches[branch] {
			return fmt.Errorf("a branch named '%s' already exists", branch)
		}
		if !b.branches[base] {
			return fmt.Errorf("invalid reference: %s", base)
		}
		b.branches[branch] = true
	} else if !b.branches[branch] {
		return fmt.Errorf("invalid reference: %s", branch)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	b.worktrees[path] = branch
	return nil
}

func (b *MemoryBackend) RemoveWorktree(_ context.Context, path string, force bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.worktrees[path]; !ok {
		return fmt.Errorf("'%s' is not a working tree", path)
	}
	if b.dirty[path] && !force {
		return errors.New("contains modified or untracked files, use --force to delete it")
	}
	delete(b.worktrees, path)
	delete(b.dirty, path)
	return os.RemoveAll(path)
}

func (b *MemoryBackend) ListWorktrees(context.Context) ([]git.WorktreeEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]git.WorktreeEntry, 0, len(b.worktrees))
	for path, branch := range b.worktrees {
		out = append(out, git.WorktreeEntry{Path: path, Branch: branch})
	}
	return out, nil
}

func (b *MemoryBackend) PruneWorktrees(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for path := range b.worktrees {
		if !dirExists(path) {
			delete(b.worktrees, path)
		}
	}
	return nil
}

func (b *MemoryBackend) DeleteBranch(_ context.Context, name string, force bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.branches[name] {
		return fmt.Errorf("branch '%s' not found", name)
	}
	for _, wtBranch := range b.worktrees {
		if wtBranch == name {
			return fmt.Errorf("cannot delete branch '%s' checked out in a worktree", name)
		}
	}
	if !force && !contains(b.merged, name) {
		return fmt.Errorf("the branch '%s' is not fully merged", name)
	}
	delete(b.branches, name)
	return nil
}

func (b *MemoryBackend) HasChanges(_ context.Context, dir string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty[dir], nil
}

func (b *MemoryBackend) CommitAll(_ context.Context, dir, _ string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dirty[dir] {
		return false, nil
	}
	b.dirty[dir] = false
	b.commits++
	return true, nil
}

func (b *MemoryBackend) DiffStream(_ context.Context, _, branch string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.branches[branch] {
		return nil, fmt.Errorf("unknown revision %s", branch)
	}
	return io.NopCloser(strings.NewReader(b.diffs[branch])), nil
}

func (b *MemoryBackend) Merge(_ context.Context, branch, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if files := b.conflicts[branch]; len(files) > 0 {
		return &apperr.GitError{Kind: apperr.GitConflict, Op: "merge " + branch, Files: append([]string(nil), files...)}
	}
	b.merged = append(b.merged, branch)
	return nil
}

func (b *MemoryBackend) Push(_ context.Context, _, _, branch string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pushErr != nil {
		return b.pushErr
	}
	b.pushed = append(b.pushed, branch)
	return nil
}

func (b *MemoryBackend) Exclude(context.Context, string) error { return nil }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Verify MemoryBackend implements Backend at compile time.
var _ Backend = (*MemoryBackend)(nil)
