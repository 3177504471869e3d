package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/logging"
	"github.com/ShayCichocki/hive/internal/store"
	"github.com/ShayCichocki/hive/pkg/models"
)

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its agent runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, snap, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		t, err := findTask(snap.Ordered(), args[0])
		if err != nil {
			return err
		}
		writeTask(os.Stdout, t)

		runs, err := runHistory(cfg.Store.Backend, cfg.HiveDir, t.ID)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			fmt.Println("\nRuns:")
			for _, r := range runs {
				writeRun(os.Stdout, r)
			}
		}
		return nil
	},
}

// runHistory returns the recorded runs of a task. Only stores that keep
// run history return any.
func runHistory(backend, hiveDir, taskID string) ([]*models.AgentRun, error) {
	st, err := store.Open(backend, hiveDir, logging.Discard())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	rec, ok := st.(store.RunRecorder)
	if !ok {
		return nil, nil
	}
	return rec.ListRuns(taskID)
}
