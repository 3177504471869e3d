package main

import (
	"context"

	"github.com/ShayCichocki/hive/internal/orchestrator"
)

// doTask resolves id on the live board and sends the command built for it.
func doTask(ctx context.Context, h *hive, id string, build func(taskID string) orchestrator.Command) (orchestrator.Result, error) {
	t, err := findTask(h.coord.Board().Tasks, id)
	if err != nil {
		return orchestrator.Result{}, err
	}
	return h.coord.Do(ctx, build(t.ID))
}
