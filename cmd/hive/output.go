package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/hive/internal/worktree"
	"github.com/ShayCichocki/hive/pkg/models"
)

// printStatus prints a colored status symbol with a message.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func statusColor(s models.TaskStatus) *color.Color {
	switch s {
	case models.TaskStatusPlanning, models.TaskStatusExecuting:
		return color.New(color.FgYellow)
	case models.TaskStatusPlanReview, models.TaskStatusReview:
		return color.New(color.FgCyan)
	case models.TaskStatusDone:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgWhite)
	}
}

func runStatusColor(s models.RunStatus) *color.Color {
	switch s {
	case models.RunStatusSucceeded:
		return color.New(color.FgGreen)
	case models.RunStatusFailed:
		return color.New(color.FgRed)
	case models.RunStatusCancelled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// taskLine is the one-line form used by list and command confirmations.
func taskLine(t *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s", color.New(color.Faint).Sprint(t.ID), t.Title)
	if t.HasActiveRun() {
		b.WriteString(color.New(color.FgYellow).Sprint("  (running)"))
	}
	if t.LastFailure != "" {
		b.WriteString(color.New(color.FgRed).Sprint("  (failed)"))
	}
	return b.String()
}

// writeTask prints every field of t that is set.
func writeTask(w io.Writer, t *models.Task) {
	bold := color.New(color.Bold)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint(t.ID), t.Title)
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-10s %s\n", name+":", value)
		}
	}
	field("Status", statusColor(t.Status).Sprint(t.Status.Label()))
	field("Planner", t.Planner)
	field("Executor", t.Executor)
	field("Branch", t.BranchName)
	field("Worktree", t.WorktreePath)
	field("Plan", t.PlanPath)
	field("Run", t.ActiveRunID)
	field("PR", t.PRURL)
	field("Created", formatTime(t.CreatedAt))
	if t.StartedAt != nil {
		field("Started", formatTime(*t.StartedAt))
	}
	if t.CompletedAt != nil {
		field("Completed", formatTime(*t.CompletedAt))
	}
	if t.Description != "" {
		fmt.Fprintf(w, "\n%s\n", indent(t.Description, "  "))
	}
	if t.LastFailure != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.FgRed).Sprint("Last failure:"), indent(t.LastFailure, "  "))
	}
}

// writeRun prints one run as a single line.
func writeRun(w io.Writer, r *models.AgentRun) {
	took := ""
	if r.EndedAt != nil {
		took = " in " + r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
	}
	exit := ""
	if r.EndedAt != nil && r.ExitCode >= 0 {
		exit = fmt.Sprintf(" exit %d", r.ExitCode)
	}
	fmt.Fprintf(w, "  %s  %-8s %-10s %s%s%s\n",
		r.ID, r.Role, r.Agent, runStatusColor(r.Status).Sprint(r.Status), exit, took)
}

// writeHunk prints a hunk in unified diff form with colored lines.
func writeHunk(w io.Writer, h worktree.Hunk) {
	if h.Binary {
		fmt.Fprintf(w, "%s\n", color.New(color.Bold).Sprintf("Binary file %s differs", h.File))
		return
	}
	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
	if h.Section != "" {
		header += " " + h.Section
	}
	fmt.Fprintln(w, color.New(color.FgCyan).Sprint(header))
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	for _, line := range h.Lines {
		switch {
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(w, add.Sprint(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(w, del.Sprint(line))
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
