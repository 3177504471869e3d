package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/tui"
	"github.com/ShayCichocki/hive/internal/version"
)

// runBoard opens the interactive board. Agents still running when the
// board closes are stopped.
func runBoard(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := openHive(ctx, openOptions{})
	if err != nil {
		return err
	}
	runErr := tui.Run(ctx, h.coord, tui.Options{
		Planners:        h.cfg.PlannerNames(),
		Executors:       h.cfg.ExecutorNames(),
		DefaultPlanner:  h.cfg.Agents.DefaultPlanner,
		DefaultExecutor: h.cfg.Agents.DefaultExecutor,
		Version:         version.String(),
	})
	if err := h.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
