// ABOUTME: Relay TUI showing live rooms and member counts
// ABOUTME: Real-time status display using bubbletea
package relay

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RelayTUI manages the relay status display
type RelayTUI struct {
	program  *tea.Program
	quitChan chan struct{}
}

// RelayStatus holds relay state for the TUI
type RelayStatus struct {
	Name    string
	Port    int
	Uptime  time.Duration
	Clients int
	Rooms   []RoomInfo
}

type tuiModel struct {
	status    RelayStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg RelayStatus

// NewRelayTUI creates the relay TUI
func NewRelayTUI(name string, port int) *RelayTUI {
	quitChan := make(chan struct{}, 1)
	model := tuiModel{
		status:    RelayStatus{Name: name, Port: port},
		startTime: time.Now(),
		quitChan:  quitChan,
	}

	return &RelayTUI{
		program:  tea.NewProgram(model, tea.WithAltScreen()),
		quitChan: quitChan,
	}
}

// Start runs the TUI (blocking)
func (t *RelayTUI) Start() {
	t.program.Run()
}

// Stop quits the TUI
func (t *RelayTUI) Stop() {
	t.program.Quit()
}

// Update pushes a fresh status snapshot
func (t *RelayTUI) Update(status RelayStatus) {
	t.program.Send(statusMsg(status))
}

// QuitChan signals when the operator asked the relay to stop
func (t *RelayTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = RelayStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down relay...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	roomHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("CineSync Relay"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Name:   "))
	b.WriteString(valueStyle.Render(m.status.Name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Port:   "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Clients: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Clients)))
	b.WriteString("\n\n")

	b.WriteString(roomHeaderStyle.Render(fmt.Sprintf("Rooms (%d)", len(m.status.Rooms))))
	b.WriteString("\n")

	if len(m.status.Rooms) == 0 {
		b.WriteString(valueStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	for _, room := range m.status.Rooms {
		host := room.HostName
		if host == "" {
			host = "(vacant)"
		}
		b.WriteString(valueStyle.Render(fmt.Sprintf("  %s  members=%d  host=%s", room.Code, room.Members, host)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(valueStyle.Render("q: quit"))
	b.WriteString("\n")

	return b.String()
}
