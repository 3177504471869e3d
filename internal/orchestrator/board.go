package orchestrator

import (
	"github.com/ShayCichocki/hive/pkg/models"
)

// Board is an immutable snapshot of every task in display order.
type Board struct {
	Tasks []*models.Task `json:"tasks"`
	// Warning is set while the task store keeps failing to save.
	Warning string `json:"warning,omitempty"`
	// Version increases with every published snapshot.
	Version uint64 `json:"version"`
}

// Task returns a copy of the task with id.
func (b *Board) Task(id string) (*models.Task, bool) {
	for _, t := range b.Tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return nil, false
}

// Column returns the tasks with status, in display order.
func (b *Board) Column(status models.TaskStatus) []*models.Task {
	var out []*models.Task
	for _, t := range b.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// Columns groups tasks by status, keyed in board column order.
func (b *Board) Columns() map[models.TaskStatus][]*models.Task {
	out := make(map[models.TaskStatus][]*models.Task, len(models.TaskStatuses))
	for _, s := range models.TaskStatuses {
		out[s] = nil
	}
	for _, t := range b.Tasks {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}

// Running returns the tasks with an active agent run.
func (b *Board) Running() []*models.Task {
	var out []*models.Task
	for _, t := range b.Tasks {
		if t.HasActiveRun() {
			out = append(out, t)
		}
	}
	return out
}
