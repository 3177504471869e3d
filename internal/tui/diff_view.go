package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/hive/internal/worktree"
)

// diffLoadedMsg carries the hunks of one task's branch.
type diffLoadedMsg struct {
	taskID string
	hunks  []worktree.Hunk
	err    error
}

// DiffView is a scrollable view of a task's changes.
type DiffView struct {
	viewport viewport.Model
	taskID   string
	active   bool
}

// NewDiffView creates a new DiffView.
func NewDiffView() *DiffView {
	return &DiffView{viewport: viewport.New(80, 20)}
}

// Show fills the view with hunks.
func (d *DiffView) Show(taskID string, hunks []worktree.Hunk) {
	d.taskID = taskID
	d.active = true
	d.viewport.SetContent(renderHunks(hunks))
	d.viewport.GotoTop()
}

// Close hides the view.
func (d *DiffView) Close() { d.active = false }

// Active reports whether the view is shown.
func (d *DiffView) Active() bool { return d.active }

// SetSize sets the viewport dimensions.
func (d *DiffView) SetSize(width, height int) {
	d.viewport.Width = width
	d.viewport.Height = max(height, 3)
}

// Update scrolls the view.
func (d *DiffView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	d.viewport, cmd = d.viewport.Update(msg)
	return cmd
}

// View renders the view with a title line.
func (d *DiffView) View() string {
	title := titleStyle.Render("diff " + d.taskID)
	hint := dimStyle.Render(fmt.Sprintf("  %3.f%%  ↑/↓ scroll  esc close", d.viewport.ScrollPercent()*100))
	return title + hint + "\n" + d.viewport.View()
}

func renderHunks(hunks []worktree.Hunk) string {
	if len(hunks) == 0 {
		return dimStyle.Render("no changes against the base branch")
	}
	var b strings.Builder
	file := ""
	for _, h := range hunks {
		if h.File != file {
			file = h.File
			name := h.File
			if h.OldFile != "" && h.OldFile != h.File {
				name = h.OldFile + " → " + h.File
			}
			b.WriteString(titleStyle.Render(name))
			b.WriteString("\n")
		}
		if h.Binary {
			b.WriteString(dimStyle.Render("  binary file changed"))
			b.WriteString("\n")
			continue
		}
		header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		if h.Section != "" {
			header += " " + h.Section
		}
		b.WriteString(hunkStyle.Render(header))
		b.WriteString("\n")
		for _, line := range h.Lines {
			switch {
			case strings.HasPrefix(line, "+"):
				b.WriteString(addedStyle.Render(line))
			case strings.HasPrefix(line, "-"):
				b.WriteString(removedStyle.Render(line))
			default:
				b.WriteString(line)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
