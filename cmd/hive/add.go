package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/orchestrator"
)

var addDescription string

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task in the todo column",
	Long: `Create a task in the todo column.

Examples:
  hive add "Add rate limiting to the API"
  hive add "Fix login redirect" -d "Users land on / instead of the page they asked for"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")
		return withHive(cmd.Context(), func(h *hive) error {
			res, err := h.coord.Do(cmd.Context(), orchestrator.CreateTask(title, addDescription))
			if err != nil {
				return err
			}
			fmt.Println(res.Task.ID)
			return nil
		})
	},
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Task description given to the planner")
}
