package worktree

import (
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"regexp"
	"strings"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/placeholder"
)

// PROptions configures the external pull-request command.
type PROptions struct {
	Remote  string
	Command string
	Args    []string
}

var (
	urlPattern  = regexp.MustCompile(`https?://\S+`)
	authMarkers = []string{
		"gh auth login",
		"not logged",
		"authentication failed",
		"could not read username",
		"permission denied",
		"http 401",
	}
)

// CreatePR pushes the task branch and runs the configured PR command,
// returning the URL it prints. Missing tooling or credentials surface as
// ConfigError; the task worktree is left as it was.
func (m *Manager) CreatePR(ctx context.Context, taskID, title, body string) (string, error) {
	pr := m.opts.PR
	if pr.Command == "" {
		return "", &apperr.ConfigError{Key: "pr.command", Msg: "no pull request command configured"}
	}
	if _, err := m.cmds.LookPath(pr.Command); err != nil {
		return "", &apperr.ConfigError{Key: "pr.command", Msg: fmt.Sprintf("%s not found on PATH", pr.Command), Err: err}
	}

	wt, err := m.lookup(taskID)
	if err != nil {
		return "", err
	}
	if m.opts.AutoCommit {
		if _, err := m.Commit(ctx, taskID, title); err != nil {
			return "", err
		}
	}

	remote := pr.Remote
	if remote == "" {
		remote = "origin"
	}
	if err := m.backend.Push(ctx, wt.Path, remote, wt.Branch); err != nil {
		if isAuthFailure(err.Error()) {
			return "", &apperr.ConfigError{Key: "pr.remote", Msg: "push rejected: credentials missing", Err: err}
		}
		return "", &apperr.GitError{Kind: apperr.GitCommand, Op: "push " + wt.Branch, Err: err}
	}

	if body == "" {
		body = title
	}
	vars := placeholder.Vars{
		placeholder.TaskID:       taskID,
		placeholder.Title:        title,
		placeholder.Description:  body,
		placeholder.Branch:       wt.Branch,
		placeholder.BaseBranch:   wt.BaseBranch,
		placeholder.WorktreePath: wt.Path,
		placeholder.RepoRoot:     m.opts.RepoRoot,
	}
	args, err := vars.ExpandAll("pr.args", pr.Args)
	if err != nil {
		return "", err
	}

	stdout, stderr, err := m.cmds.Output(ctx, wt.Path, nil, pr.Command, args...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if isAuthFailure(msg) {
			return "", &apperr.ConfigError{Key: "pr.command", Msg: "not authenticated: " + msg, Err: err}
		}
		var exitErr *osexec.ExitError
		code := -1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", &apperr.ProcessError{ExitCode: code, Msg: pr.Command + " failed: " + msg, Err: err}
	}

	url := urlPattern.FindString(string(stdout))
	if url == "" {
		return "", &apperr.ProcessError{Msg: pr.Command + " printed no URL: " + strings.TrimSpace(string(stdout))}
	}
	m.log.Info("pull request created", "task_id", taskID, "url", url)
	return url, nil
}

func isAuthFailure(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
