package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/apperr"
	"github.com/ShayCichocki/hive/internal/config"
	"github.com/ShayCichocki/hive/internal/logging"
	"github.com/ShayCichocki/hive/internal/store"
	"github.com/ShayCichocki/hive/pkg/models"
)

var (
	listAll  bool
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks grouped by status",
	Long: `List tasks grouped by status. Done tasks are hidden unless --all is given.

Reads the saved board, so it works while the interactive board is open.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include done tasks")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print tasks as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	_, snap, err := loadSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	tasks := snap.Ordered()
	if !listAll {
		tasks = visibleTasks(tasks)
	}
	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks. Create one with 'hive add <title>'.")
		return nil
	}
	for i, group := range groupByStatus(tasks) {
		if i > 0 {
			fmt.Println()
		}
		heading := statusColor(group.status).Add(color.Bold)
		fmt.Printf("%s (%d)\n", heading.Sprint(group.status.Label()), len(group.tasks))
		for _, t := range group.tasks {
			fmt.Printf("  %s\n", taskLine(t))
		}
	}
	return nil
}

type statusGroup struct {
	status models.TaskStatus
	tasks  []*models.Task
}

// groupByStatus groups tasks in board column order, skipping empty columns
// and keeping display order within each.
func groupByStatus(tasks []*models.Task) []statusGroup {
	var out []statusGroup
	for _, s := range models.TaskStatuses {
		var g []*models.Task
		for _, t := range tasks {
			if t.Status == s {
				g = append(g, t)
			}
		}
		if len(g) > 0 {
			out = append(out, statusGroup{status: s, tasks: g})
		}
	}
	return out
}

func visibleTasks(tasks []*models.Task) []*models.Task {
	var out []*models.Task
	for _, t := range tasks {
		if t.Status != models.TaskStatusDone {
			out = append(out, t)
		}
	}
	return out
}

// loadSnapshot reads the saved board without taking the hive lock.
func loadSnapshot(ctx context.Context) (*config.Config, *store.Snapshot, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(cfg.Store.Backend, cfg.HiveDir, logging.Discard())
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()
	snap, err := st.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, snap, nil
}

// findTask looks up id among tasks. A unique prefix of at least four
// characters is accepted, with or without the task- prefix.
func findTask(tasks []*models.Task, id string) (*models.Task, error) {
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	var match *models.Task
	if len(id) >= 4 {
		for _, t := range tasks {
			if strings.HasPrefix(t.ID, id) || strings.HasPrefix(t.ID, "task-"+id) {
				if match != nil {
					return nil, apperr.Validation("find task", "task id %q is ambiguous", id)
				}
				match = t
			}
		}
	}
	if match == nil {
		return nil, apperr.Validation("find task", "task %q not found", id)
	}
	return match, nil
}
