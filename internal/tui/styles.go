package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hive/pkg/models"
)

const (
	iconTodo      = "[○]"
	iconPlanning  = "[◐]"
	iconPlanReady = "[?]"
	iconExecuting = "[●]"
	iconReview    = "[◌]"
	iconDone      = "[✓]"
	iconFailed    = "[✗]"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("39"))

	columnTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24")).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// statusIcon returns the card icon for a task.
func statusIcon(t *models.Task) string {
	if t.LastFailure != "" && !t.HasActiveRun() {
		return iconFailed
	}
	switch t.Status {
	case models.TaskStatusPlanning:
		return iconPlanning
	case models.TaskStatusPlanReview:
		return iconPlanReady
	case models.TaskStatusExecuting:
		return iconExecuting
	case models.TaskStatusReview:
		return iconReview
	case models.TaskStatusDone:
		return iconDone
	default:
		return iconTodo
	}
}
