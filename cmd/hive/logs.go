package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/runlog"
	"github.com/ShayCichocki/hive/pkg/models"
)

var (
	logsFollow bool
	logsRun    string
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs <task-id>",
	Short: "Print the output of a task's agent run",
	Long: `Print the output of a task's agent run. Without --run, the active run
is shown, or the latest recorded one.

Examples:
  hive logs task-1a2b3c4d -f         # follow the running agent
  hive logs task-1a2b3c4d -n 100     # last 100 lines
  hive logs task-1a2b3c4d --run <id> # a specific run`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Keep printing output as it is written")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "Run id (default: active or latest run)")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 0, "Only print the last N lines")
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, snap, err := loadSnapshot(ctx)
	if err != nil {
		return err
	}
	t, err := findTask(snap.Ordered(), args[0])
	if err != nil {
		return err
	}
	path, err := runLogPath(cfg, t, logsRun)
	if err != nil {
		return err
	}

	if logsLines > 0 && !logsFollow {
		tail, err := runlog.ReadTail(path, logsLines)
		if err != nil {
			return err
		}
		fmt.Print(tail)
		return nil
	}
	if logsFollow {
		err := runlog.Follow(ctx, path, os.Stdout)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading run log: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

// runLogPath picks the log of runID, the active run, or the latest run the
// store recorded.
func runLogPath(cfg *config.Config, t *models.Task, runID string) (string, error) {
	if runID == "" {
		runID = t.ActiveRunID
	}
	if runID == "" {
		runs, err := runHistory(cfg.Store.Backend, cfg.HiveDir, t.ID)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", apperr.Validation("logs", "task %s has no recorded runs; pass --run", t.ID)
		}
		last := runs[len(runs)-1]
		if last.LogPath != "" {
			return last.LogPath, nil
		}
		runID = last.ID
	}
	if filepath.Base(runID) != runID {
		return "", apperr.Validation("logs", "invalid run id %q", runID)
	}
	return filepath.Join(cfg.LogDir(), runID+".log"), nil
}
