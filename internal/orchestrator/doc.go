// Package orchestrator coordinates tasks, worktrees and agent runs.
//
// A Coordinator is the only writer of task state. Commands from the UI and
// completion events from the agent supervisor are applied one at a time by a
// single goroutine; each applied change is saved to the task store before the
// next input is read. Readers use Board, which returns the snapshot published
// after the last input and never waits on the loop.
//
// Example usage:
//
//	coord, err := orchestrator.New(ctx, orchestrator.Options{...})
//	go coord.Run(ctx)
//	res, err := coord.Do(ctx, orchestrator.CreateTask("Add login", ""))
//	_, err = coord.Do(ctx, orchestrator.AssignAgent(res.Task.ID, ""))
package orchestrator
