package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ExecRunner implements Runner using exec.CommandContext.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a new git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

func (r *ExecRunner) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.repoPath
	return cmd
}

// run executes a git command and returns its trimmed output.
func (r *ExecRunner) run(ctx context.Context, args ...string) (string, error) {
	out, err := r.command(ctx, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *ExecRunner) runSilent(ctx context.Context, args ...string) error {
	_, err := r.run(ctx, args...)
	return err
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, args...)
}

// At returns a runner rooted at dir.
func (r *ExecRunner) At(dir string) Runner {
	return &ExecRunner{repoPath: dir}
}

// Dir returns the directory commands run in.
func (r *ExecRunner) Dir() string {
	return r.repoPath
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(ctx context.Context, name string) (bool, error) {
	err := r.command(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+name).Run()
	if err != nil {
		// Exit code 1 means the branch doesn't exist.
		if exitCode(err) == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch deletes the branch.
func (r *ExecRunner) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return r.runSilent(ctx, "branch", flag, name)
}

// RevParse resolves ref to a full commit id.
func (r *ExecRunner) RevParse(ctx context.Context, ref string) (string, error) {
	return r.run(ctx, "rev-parse", "--verify", ref+"^{commit}")
}

// IsRepo reports whether the directory is inside a git work tree.
func (r *ExecRunner) IsRepo(ctx context.Context) bool {
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Status returns the output of git status --porcelain.
func (r *ExecRunner) Status(ctx context.Context) (string, error) {
	return r.run(ctx, "status", "--porcelain")
}

// HasChanges returns true if there are uncommitted changes.
func (r *ExecRunner) HasChanges(ctx context.Context) (bool, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// AddAll stages all changes.
func (r *ExecRunner) AddAll(ctx context.Context) error {
	return r.runSilent(ctx, "add", "-A")
}

// Commit creates a new commit with the given message.
func (r *ExecRunner) Commit(ctx context.Context, message string) error {
	return r.runSilent(ctx, "commit", "-m", message)
}

// MergeTree runs git merge-tree --write-tree. Exit status 1 means the merge
// has conflicts and the output lists them after the tree id.
func (r *ExecRunner) MergeTree(ctx context.Context, base, branch string) ([]string, error) {
	args := []string{"merge-tree", "--write-tree", "--name-only", "--no-messages", base, branch}
	out, err := r.command(ctx, args...).Output()
	if err == nil {
		return nil, nil
	}
	if exitCode(err) != 1 {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	lines := splitLines(string(out))
	if len(lines) <= 1 {
		return []string{}, nil
	}
	return dedupe(lines[1:]), nil
}

// MergeNoFFMessage merges the specified branch with --no-ff and a custom message.
func (r *ExecRunner) MergeNoFFMessage(ctx context.Context, branch, message string) error {
	return r.runSilent(ctx, "merge", "--no-ff", "-m", message, branch)
}

// MergeAbort aborts an in-progress merge.
func (r *ExecRunner) MergeAbort(ctx context.Context) error {
	return r.runSilent(ctx, "merge", "--abort")
}

// ConflictedFiles returns a list of files with unmerged changes.
func (r *ExecRunner) ConflictedFiles(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ResetHard resets the work tree and index to ref.
func (r *ExecRunner) ResetHard(ctx context.Context, ref string) error {
	return r.runSilent(ctx, "reset", "--hard", ref)
}

// WorktreeAdd creates a worktree, optionally with a new branch.
func (r *ExecRunner) WorktreeAdd(ctx context.Context, path, branch, base string, newBranch bool) error {
	if newBranch {
		return r.runSilent(ctx, "worktree", "add", "-b", branch, path, base)
	}
	return r.runSilent(ctx, "worktree", "add", path, branch)
}

// WorktreeRemove removes the worktree, optionally with force.
func (r *ExecRunner) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	return r.runSilent(ctx, args...)
}

// WorktreeList returns the parsed output of git worktree list --porcelain.
func (r *ExecRunner) WorktreeList(ctx context.Context) ([]WorktreeEntry, error) {
	out, err := r.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParseWorktreeList(out), nil
}

// WorktreePrune removes stale worktree entries.
func (r *ExecRunner) WorktreePrune(ctx context.Context) error {
	return r.runSilent(ctx, "worktree", "prune")
}

// DiffStream starts git diff base...branch and streams its output.
func (r *ExecRunner) DiffStream(ctx context.Context, base, branch string) (io.ReadCloser, error) {
	args := []string{"diff", "--no-color", "--no-ext-diff", base + "..." + branch}
	cmd := r.command(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("git diff pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return &streamReader{rc: stdout, cmd: cmd, stderr: &stderr, args: args}, nil
}

// Push pushes branch to remote with upstream tracking.
func (r *ExecRunner) Push(ctx context.Context, remote, branch string) error {
	return r.runSilent(ctx, "push", "-u", remote, branch)
}

// streamReader ties a subprocess lifetime to its stdout reader.
type streamReader struct {
	rc     io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	args   []string
	eof    bool
}

func (s *streamReader) Read(p []byte) (int, error) {
	n, err := s.rc.Read(p)
	if err == io.EOF {
		s.eof = true
	}
	return n, err
}

// Close stops the process. Exit errors are reported only when the stream was
// read to the end, since an early close kills the process on purpose.
func (s *streamReader) Close() error {
	if !s.eof && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.rc.Close()
	err := s.cmd.Wait()
	if s.eof && err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(s.args, " "), err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

// ParseWorktreeList parses git worktree list --porcelain output.
func ParseWorktreeList(output string) []WorktreeEntry {
	var entries []WorktreeEntry
	var cur *WorktreeEntry
	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &WorktreeEntry{Path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "bare":
			cur.Bare = true
		case line == "detached":
			cur.Detached = true
		case strings.HasPrefix(line, "prunable"):
			cur.Prunable = true
		}
	}
	flush()
	return entries
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
