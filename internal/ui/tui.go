// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the viewer UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Transport intent actions
const (
	ActionToggle = "toggle"
	ActionSeek   = "seek"
)

// TransportMsg is a transport intent from the keyboard
type TransportMsg struct {
	Action string
	Offset float64 // seconds, for seek
}

// QuitMsg signals the user quit the TUI
type QuitMsg struct{}

// Control holds channels carrying user intents out of the TUI
type Control struct {
	Transport chan TransportMsg
	Quit      chan QuitMsg
}

// NewControl creates a control handler
func NewControl() *Control {
	return &Control{
		Transport: make(chan TransportMsg, 10),
		Quit:      make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(control *Control) Model {
	return Model{
		control: control,
	}
}

// Run starts the TUI
func Run(control *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(control), tea.WithAltScreen())
	return p, nil
}
