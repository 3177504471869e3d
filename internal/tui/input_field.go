package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// inputSubmittedMsg is sent when the user presses enter in the input field.
type inputSubmittedMsg struct {
	value string
}

// inputCancelledMsg is sent on escape.
type inputCancelledMsg struct{}

// InputField is a single-line prompt used for new task titles and
// descriptions.
type InputField struct {
	input  textinput.Model
	label  string
	width  int
	active bool
}

// NewInputField creates a new InputField.
func NewInputField() *InputField {
	ti := textinput.New()
	ti.CharLimit = 500
	ti.Width = 60

	return &InputField{
		input: ti,
		width: 80,
	}
}

// Open shows the field with label and focuses it.
func (f *InputField) Open(label, placeholder string) tea.Cmd {
	f.label = label
	f.input.Placeholder = placeholder
	f.input.Reset()
	f.active = true
	return f.input.Focus()
}

// Close hides the field.
func (f *InputField) Close() {
	f.active = false
	f.input.Blur()
	f.input.Reset()
}

// Active reports whether the field is shown.
func (f *InputField) Active() bool { return f.active }

// SetWidth sets the width of the input field.
func (f *InputField) SetWidth(width int) {
	f.width = width
	f.input.Width = max(width-len(f.label)-8, 10)
}

// Update handles messages for the input field.
func (f *InputField) Update(msg tea.Msg) (*InputField, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			value := f.input.Value()
			return f, func() tea.Msg { return inputSubmittedMsg{value: value} }
		case "esc":
			return f, func() tea.Msg { return inputCancelledMsg{} }
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the input field.
func (f *InputField) View() string {
	if !f.active {
		return ""
	}
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(max(f.width-2, 10))

	prompt := titleStyle.Render(f.label + " > ")
	return boxStyle.Render(prompt + f.input.View())
}
