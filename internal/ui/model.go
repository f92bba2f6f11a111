// ABOUTME: Bubbletea model for the viewer TUI
// ABOUTME: Shows room, peers, playback, and drift; forwards transport keys
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected bool
	relayName string

	// Room
	roomCode  string
	role      string
	peerCount int

	// Media
	fileName string

	// Playback
	playing  bool
	position float64

	// Drift (guests only)
	driftState string
	drift      float64

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	control *Control
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderRoom()
	s += m.renderPlayback()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.relayName)
	}

	return fmt.Sprintf(`┌─ CineSync ───────────────────────────────────────────┐
│ Status: %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 45))
}

// renderRoom renders room membership
func (m Model) renderRoom() string {
	if m.roomCode == "" {
		return "│ Not in a room                                        │\n"
	}

	s := fmt.Sprintf("│ Room:   %-6s (%s)%-31s │\n", m.roomCode, m.role, "")
	s += fmt.Sprintf("│ Peers:  %-45d │\n", m.peerCount)
	if m.fileName != "" {
		s += fmt.Sprintf("│ File:   %-45s │\n", truncate(m.fileName, 45))
	}
	return s
}

// renderPlayback renders transport state and drift
func (m Model) renderPlayback() string {
	stateIcon := "⏸"
	if m.playing {
		stateIcon = "▶"
	}

	s := "│                                                      │\n"
	s += fmt.Sprintf("│ %s  %s%-42s │\n", stateIcon, formatPosition(m.position), "")

	if m.role == "guest" && m.driftState != "" {
		s += fmt.Sprintf("│ Sync:   %s (%+.2fs)%-31s │\n", m.driftState, m.drift, "")
	}

	return s
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ space:Play/Pause  ←/→:Seek 10s  d:Debug  q:Quit    │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders drift internals
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Drift: %+.3fs  State: %-26s │
`, m.drift, m.driftState)
}

// handleKey handles keyboard input. Transport keys are forwarded as
// intents; the session decides whether they carry authority.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.control != nil {
			select {
			case m.control.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case " ":
		m.forward(TransportMsg{Action: ActionToggle})
	case "left":
		m.forward(TransportMsg{Action: ActionSeek, Offset: -10})
	case "right":
		m.forward(TransportMsg{Action: ActionSeek, Offset: 10})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) forward(msg TransportMsg) {
	if m.control == nil {
		return
	}
	select {
	case m.control.Transport <- msg:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.RelayName != "" {
		m.relayName = msg.RelayName
	}
	if msg.RoomCode != "" {
		m.roomCode = msg.RoomCode
	}
	if msg.Role != "" {
		m.role = msg.Role
	}
	if msg.PeerCount != nil {
		m.peerCount = *msg.PeerCount
	}
	if msg.FileName != "" {
		m.fileName = msg.FileName
	}
	if msg.Playing != nil {
		m.playing = *msg.Playing
	}
	if msg.Position != nil {
		m.position = *msg.Position
	}
	if msg.DriftState != "" {
		m.driftState = msg.DriftState
		m.drift = msg.Drift
	}
}

// StatusMsg updates TUI state. Pointer fields distinguish "unchanged"
// from a real zero value.
type StatusMsg struct {
	Connected  *bool
	RelayName  string
	RoomCode   string
	Role       string
	PeerCount  *int
	FileName   string
	Playing    *bool
	Position   *float64
	DriftState string
	Drift      float64
}

// Utility functions
func formatPosition(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
