package tui

import (
	"strings"
)

// Footer renders the status message and keyboard hints.
type Footer struct {
	message string
	success bool
	width   int
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{}
}

// SetMessage sets the status message.
func (f *Footer) SetMessage(message string, success bool) {
	f.message = message
	f.success = success
}

// SetWidth sets the footer width.
func (f *Footer) SetWidth(width int) {
	f.width = width
}

// View renders the footer for the given input mode.
func (f *Footer) View(m mode) string {
	var lines []string
	if f.message != "" {
		msg := firstLine(f.message)
		if f.success {
			lines = append(lines, successStyle.Render("✓ "+msg))
		} else {
			lines = append(lines, failureStyle.Render("✗ "+msg))
		}
	}
	lines = append(lines, dimStyle.Render(keyboardHints(m)))
	return strings.Join(lines, "\n")
}

// keyboardHints returns the hints for the current mode.
func keyboardHints(m mode) string {
	switch m {
	case modeTitle, modeDescription:
		return "enter confirm │ esc cancel"
	case modeSelectAgent:
		return "↑/↓ choose │ enter assign │ esc cancel"
	case modeConfirmDelete:
		return "y delete │ any other key cancels"
	case modeDiff:
		return "↑/↓ scroll │ esc close"
	default:
		return "←/→/↑/↓ move │ n new │ a assign │ s stop │ tab/S-tab forward/back │ g merge │ p pr │ d diff │ x delete │ q quit"
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
