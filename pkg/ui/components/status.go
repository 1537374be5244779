package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a connection's status.
type ConnectionStatus struct {
	Name       string
	Connected  bool
	Latency    time.Duration
	LastUpdate time.Time
}

// StatusComponent renders connection status.
type StatusComponent struct {
	connections map[string]ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make(map[string]ConnectionStatus),
	}
}

// Update updates a connection's status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	s.connections[status.Name] = status
}

// Get returns the status for name.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	st, ok := s.connections[name]
	return st, ok
}

// View renders the status component as one line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Render("○ connecting")
	}

	names := make([]string, 0, len(s.connections))
	for name := range s.connections {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		conn := s.connections[name]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
		line := "● " + name
		if !conn.Connected {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
			line = "○ " + name + " (disconnected)"
		} else if conn.Latency > 0 {
			line += fmt.Sprintf(" (%s)", conn.Latency.Round(time.Millisecond))
		}
		parts = append(parts, style.Render(line))
	}

	return strings.Join(parts, "  ")
}
