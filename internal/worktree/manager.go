// Package worktree manages the isolated git worktree bound to each task.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/exec"
	"github.com/ShayCichocki/hive/pkg/models"
)

// Options configures a Manager.
type Options struct {
	// RepoRoot is the main checkout.
	RepoRoot string
	// Dir is where task worktrees are created.
	Dir string
	// BaseBranch is merged into; empty means the branch checked out at RepoRoot.
	BaseBranch string
	// BranchPrefix namespaces task branches.
	BranchPrefix string
	// AutoCommit commits pending worktree changes before merge and PR.
	AutoCommit bool
	// Excludes are added to the repository's local exclude file so hive
	// state never makes a checkout look dirty.
	Excludes []string
	// PR configures pull-request creation.
	PR PROptions
	// Commands runs the PR command; defaults to exec.NewRunner().
	Commands exec.CommandRunner
	Logger   *slog.Logger
}

// Manager creates, diffs, merges and removes task worktrees. Create, Remove,
// Merge and Commit are serialized.
type Manager struct {
	opts    Options
	backend Backend
	cmds    exec.CommandRunner
	log     *slog.Logger

	mu sync.Mutex

	regMu    sync.RWMutex
	registry map[string]*models.Worktree
}

// NewManager validates the repository and resolves the base branch.
func NewManager(ctx context.Context, backend Backend, opts Options) (*Manager, error) {
	if !backend.IsRepo(ctx) {
		return nil, &apperr.GitError{Kind: apperr.GitNotFound, Op: "open repository",
			Err: fmt.Errorf("%s is not a git repository", opts.RepoRoot)}
	}
	if opts.BranchPrefix == "" {
		opts.BranchPrefix = "hive"
	}
	if opts.BaseBranch == "" {
		cur, err := backend.CurrentBranch(ctx)
		if err != nil {
			return nil, &apperr.GitError{Kind: apperr.GitCommand, Op: "detect base branch", Err: err}
		}
		if cur == "HEAD" {
			return nil, &apperr.ConfigError{Key: "base_branch", Msg: "repository is in detached HEAD state; set base_branch"}
		}
		opts.BaseBranch = cur
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create worktree directory: %w", err)
	}
	for _, pattern := range opts.Excludes {
		if err := backend.Exclude(ctx, pattern); err != nil {
			return nil, fmt.Errorf("exclude %s: %w", pattern, err)
		}
	}
	if opts.Commands == nil {
		opts.Commands = exec.NewRunner()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		opts:     opts,
		backend:  backend,
		cmds:     opts.Commands,
		log:      opts.Logger.With("component", "worktree"),
		registry: make(map[string]*models.Worktree),
	}, nil
}

// BaseBranch returns the branch task work is merged into.
func (m *Manager) BaseBranch() string { return m.opts.BaseBranch }

// BranchFor returns the branch name used for taskID.
func (m *Manager) BranchFor(taskID string) string {
	return BranchName(m.opts.BranchPrefix, taskID)
}

// PathFor returns the worktree directory used for taskID.
func (m *Manager) PathFor(taskID string) string {
	return filepath.Join(m.opts.Dir, Slug(taskID))
}

// Get returns the registered worktree for taskID.
func (m *Manager) Get(taskID string) (*models.Worktree, bool) {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	wt, ok := m.registry[taskID]
	if !ok {
		return nil, false
	}
	c := *wt
	return &c, true
}

// List returns every registered worktree.
func (m *Manager) List() []*models.Worktree {
	m.regMu.RLock()
	defer m.regMu.RUnlock()
	out := make([]*models.Worktree, 0, len(m.registry))
	for _, wt := range m.registry {
		c := *wt
		out = append(out, &c)
	}
	return out
}

func (m *Manager) register(wt *models.Worktree) {
	m.regMu.Lock()
	m.registry[wt.TaskID] = wt
	m.regMu.Unlock()
}

func (m *Manager) unregister(taskID string) {
	m.regMu.Lock()
	delete(m.registry, taskID)
	m.regMu.Unlock()
}

func (m *Manager) setState(taskID string, state models.WorktreeState) {
	m.regMu.Lock()
	if wt, ok := m.registry[taskID]; ok {
		wt.State = state
	}
	m.regMu.Unlock()
}

// Create returns the worktree for taskID, creating it and its branch from the
// base branch if needed. Calling it again for the same task is a no-op.
func (m *Manager) Create(ctx context.Context, taskID string) (*models.Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(ctx, taskID)
}

func (m *Manager) createLocked(ctx context.Context, taskID string) (*models.Worktree, error) {
	if wt, ok := m.Get(taskID); ok && wt.State == models.WorktreeCreated && dirExists(wt.Path) {
		return wt, nil
	}

	branch := m.BranchFor(taskID)
	path := m.PathFor(taskID)
	log := m.log.With("task_id", taskID, "branch", branch)

	known, err := m.backend.ListWorktrees(ctx)
	if err != nil {
		return nil, &apperr.GitError{Kind: apperr.GitCommand, Op: "list worktrees", Err: err}
	}
	adopt := false
	for _, e := range known {
		if samePath(e.Path, path) && e.Branch == branch && !e.Prunable {
			adopt = true
			break
		}
	}

	if !adopt {
		if dirExists(path) {
			// Leftover directory git no longer tracks.
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("clear stale worktree directory: %w", err)
			}
		}
		_ = m.backend.PruneWorktrees(ctx)
		exists, err := m.backend.BranchExists(ctx, branch)
		if err != nil {
			return nil, &apperr.GitError{Kind: apperr.GitCommand, Op: "check branch", Err: err}
		}
		if err := m.backend.AddWorktree(ctx, path, branch, m.opts.BaseBranch, !exists); err != nil {
			return nil, &apperr.GitError{Kind: apperr.GitCommand, Op: "create worktree", Err: err}
		}
		log.Info("worktree created", "path", path, "reused_branch", exists)
	} else {
		log.Info("worktree adopted", "path", path)
	}

	baseCommit, err := m.backend.RevParse(ctx, m.opts.BaseBranch)
	if err != nil {
		return nil, &apperr.GitError{Kind: apperr.GitNotFound, Op: "resolve base branch", Err: err}
	}
	wt := &models.Worktree{
		Path:       path,
		Branch:     branch,
		BaseBranch: m.opts.BaseBranch,
		BaseCommit: baseCommit,
		TaskID:     taskID,
		State:      models.WorktreeCreated,
		CreatedAt:  time.Now(),
	}
	m.register(wt)
	c := *wt
	return &c, nil
}

// Remove deletes the worktree directory and its branch. Without force a dirty
// worktree is refused with GitDirtyWorktree. The branch is force-deleted only
// when forced or already merged; otherwise an unmerged branch is kept.
// Removing a worktree that does not exist succeeds.
func (m *Manager) Remove(ctx context.Context, taskID string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, branch := m.PathFor(taskID), m.BranchFor(taskID)
	merged := false
	if wt, ok := m.Get(taskID); ok {
		path, branch = wt.Path, wt.Branch
		merged = wt.State == models.WorktreeMerged
	}
	log := m.log.With("task_id", taskID, "branch", branch)

	if dirExists(path) {
		if !force {
			dirty, err := m.backend.HasChanges(ctx, path)
			if err == nil && dirty {
				return &apperr.GitError{Kind: apperr.GitDirtyWorktree, Op: "remove worktree " + taskID,
					Err: errors.New("worktree has uncommitted changes")}
			}
		}
		if err := m.backend.RemoveWorktree(ctx, path, force); err != nil {
			if !force {
				return &apperr.GitError{Kind: apperr.GitCommand, Op: "remove worktree " + taskID, Err: err}
			}
			// git refused; the directory is ours to delete.
			log.Warn("git worktree remove failed, deleting directory", "error", err)
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return fmt.Errorf("remove worktree directory: %w", rmErr)
			}
		}
	}
	_ = m.backend.PruneWorktrees(ctx)

	exists, err := m.backend.BranchExists(ctx, branch)
	if err == nil && exists {
		if err := m.backend.DeleteBranch(ctx, branch, force || merged); err != nil {
			log.Warn("branch retained", "error", err)
		}
	}
	m.unregister(taskID)
	log.Info("worktree removed", "force", force)
	return nil
}

// Commit stages and commits pending changes in the task worktree. It reports
// whether a commit was created.
func (m *Manager) Commit(ctx context.Context, taskID, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLocked(ctx, taskID, message)
}

func (m *Manager) commitLocked(ctx context.Context, taskID, message string) (bool, error) {
	wt, err := m.lookup(taskID)
	if err != nil {
		return false, err
	}
	made, err := m.backend.CommitAll(ctx, wt.Path, message)
	if err != nil {
		return false, &apperr.GitError{Kind: apperr.GitCommand, Op: "commit " + taskID, Err: err}
	}
	if made {
		m.log.Info("committed pending changes", "task_id", taskID)
	}
	return made, nil
}

// Merge merges the task branch into the base branch with a merge commit.
// On conflict the base is unchanged and a GitConflict error lists the files.
// With AutoCommit, pending worktree changes are committed once the base
// checkout passed its checks; that commit stays on the task branch even when
// the merge then conflicts.
func (m *Manager) Merge(ctx context.Context, taskID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wt, err := m.lookup(taskID)
	if err != nil {
		return err
	}

	cur, err := m.backend.CurrentBranch(ctx)
	if err != nil {
		return &apperr.GitError{Kind: apperr.GitCommand, Op: "merge " + taskID, Err: err}
	}
	if cur != wt.BaseBranch {
		return &apperr.GitError{Kind: apperr.GitCommand, Op: "merge " + taskID,
			Err: fmt.Errorf("base branch %s is not checked out (on %s)", wt.BaseBranch, cur)}
	}
	dirty, err := m.backend.HasChanges(ctx, m.opts.RepoRoot)
	if err != nil {
		return &apperr.GitError{Kind: apperr.GitCommand, Op: "merge " + taskID, Err: err}
	}
	if dirty {
		return &apperr.GitError{Kind: apperr.GitDirtyWorktree, Op: "merge " + taskID,
			Err: errors.New("base checkout has uncommitted changes")}
	}
	if m.opts.AutoCommit {
		if _, err := m.commitLocked(ctx, taskID, message); err != nil {
			return err
		}
	}

	if err := m.backend.Merge(ctx, wt.Branch, message); err != nil {
		var gitErr *apperr.GitError
		if errors.As(err, &gitErr) {
			return err
		}
		return &apperr.GitError{Kind: apperr.GitCommand, Op: "merge " + taskID, Err: err}
	}
	m.setState(taskID, models.WorktreeMerged)
	m.log.Info("branch merged", "task_id", taskID, "branch", wt.Branch, "base", wt.BaseBranch)
	return nil
}

// Diff returns the task's changes against the base branch as a lazy hunk
// sequence. Each iteration re-runs git, so the sequence can be restarted.
func (m *Manager) Diff(ctx context.Context, taskID string) iter.Seq2[Hunk, error] {
	return func(yield func(Hunk, error) bool) {
		wt, err := m.lookup(taskID)
		if err != nil {
			yield(Hunk{}, err)
			return
		}
		rc, err := m.backend.DiffStream(ctx, wt.BaseBranch, wt.Branch)
		if err != nil {
			yield(Hunk{}, &apperr.GitError{Kind: apperr.GitCommand, Op: "diff " + taskID, Err: err})
			return
		}
		stopped := false
		for h, err := range ParseHunks(rc) {
			if !yield(h, err) || err != nil {
				stopped = true
				break
			}
		}
		closeErr := rc.Close()
		if !stopped && closeErr != nil {
			yield(Hunk{}, &apperr.GitError{Kind: apperr.GitCommand, Op: "diff " + taskID, Err: closeErr})
		}
	}
}

// Reconcile re-registers worktrees of tasks that should own one, creating
// missing ones, and removes hive worktrees no task owns. It returns the
// removed paths.
func (m *Manager) Reconcile(ctx context.Context, tasks []*models.Task) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.backend.PruneWorktrees(ctx)
	owned := make(map[string]bool)
	for _, t := range tasks {
		if !t.Status.HasWorktree() {
			continue
		}
		owned[m.BranchFor(t.ID)] = true
		if _, err := m.createLocked(ctx, t.ID); err != nil {
			return nil, fmt.Errorf("restore worktree for %s: %w", t.ID, err)
		}
	}

	entries, err := m.backend.ListWorktrees(ctx)
	if err != nil {
		return nil, &apperr.GitError{Kind: apperr.GitCommand, Op: "list worktrees", Err: err}
	}
	var removed []string
	prefix := strings.TrimSuffix(m.opts.BranchPrefix, "/") + "/"
	for _, e := range entries {
		if !strings.HasPrefix(e.Branch, prefix) || owned[e.Branch] || !within(m.opts.Dir, e.Path) {
			continue
		}
		if err := m.backend.RemoveWorktree(ctx, e.Path, true); err != nil {
			m.log.Warn("orphan worktree not removed", "path", e.Path, "error", err)
			continue
		}
		// Keep unmerged work; -d refuses to delete it.
		_ = m.backend.DeleteBranch(ctx, e.Branch, false)
		removed = append(removed, e.Path)
		m.log.Info("orphan worktree removed", "path", e.Path, "branch", e.Branch)
	}
	return removed, nil
}

func (m *Manager) lookup(taskID string) (*models.Worktree, error) {
	wt, ok := m.Get(taskID)
	if !ok || wt.State == models.WorktreeRemoved {
		return nil, &apperr.GitError{Kind: apperr.GitNotFound, Op: "worktree " + taskID,
			Err: errors.New("no worktree for task")}
	}
	return wt, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func samePath(a, b string) bool {
	return canonical(a) == canonical(b)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(canonical(dir), canonical(path))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}
