// Package tui is the interactive kanban board.
//
// The board shows four columns: Todo, In Progress (planning, plan review
// and executing), Review and Done. Every coordinator command is bound to a
// key; commands run as bubbletea commands so the UI never blocks on git or
// agent work, and the board redraws whenever the coordinator publishes a
// change.
//
// Usage:
//
//	err := tui.Run(ctx, coord, tui.Options{
//	    Planners:  cfg.PlannerNames(),
//	    Executors: cfg.ExecutorNames(),
//	})
package tui
