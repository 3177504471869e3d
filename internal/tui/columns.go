package tui

import (
	"github.com/ShayCichocki/hive/internal/orchestrator"
	"github.com/ShayCichocki/hive/pkg/models"
)

// column is one board column and the statuses it shows.
type column struct {
	title    string
	statuses []models.TaskStatus
}

var columns = []column{
	{title: "Todo", statuses: []models.TaskStatus{models.TaskStatusTodo}},
	{title: "In Progress", statuses: []models.TaskStatus{
		models.TaskStatusPlanning, models.TaskStatusPlanReview, models.TaskStatusExecuting,
	}},
	{title: "Review", statuses: []models.TaskStatus{models.TaskStatusReview}},
	{title: "Done", statuses: []models.TaskStatus{models.TaskStatusDone}},
}

// columnOf returns the column index a status is shown in.
func columnOf(s models.TaskStatus) int {
	for i, c := range columns {
		for _, st := range c.statuses {
			if st == s {
				return i
			}
		}
	}
	return 0
}

// groupBoard splits the board into columns, keeping display order within
// each column.
func groupBoard(b *orchestrator.Board) [][]*models.Task {
	out := make([][]*models.Task, len(columns))
	if b == nil {
		return out
	}
	for _, t := range b.Tasks {
		i := columnOf(t.Status)
		out[i] = append(out[i], t)
	}
	return out
}
