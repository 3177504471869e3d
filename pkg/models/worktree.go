package models

import "time"

// WorktreeState is the lifecycle state of a task worktree.
type WorktreeState string

const (
	// WorktreeCreated indicates the worktree exists on disk.
	WorktreeCreated WorktreeState = "created"
	// WorktreeMerged indicates the branch was merged into the base branch.
	WorktreeMerged WorktreeState = "merged"
	// WorktreeRemoved indicates the directory has been deleted.
	WorktreeRemoved WorktreeState = "removed"
)

// Valid returns true if the state is a known value.
func (s WorktreeState) Valid() bool {
	switch s {
	case WorktreeCreated, WorktreeMerged, WorktreeRemoved:
		return true
	default:
		return false
	}
}

// Worktree is an isolated working copy bound to a single task.
type Worktree struct {
	Path       string        `json:"path"`
	Branch     string        `json:"branch"`
	BaseBranch string        `json:"base_branch"`
	BaseCommit string        `json:"base_commit"`
	TaskID     string        `json:"task_id"`
	State      WorktreeState `json:"state"`
	CreatedAt  time.Time     `json:"created_at"`
}
