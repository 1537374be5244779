package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ActionStatus is the latest known state of an action for the selected token.
type ActionStatus struct {
	State string
	Step  string
	Hash  string
	Error string
}

// ActionPanel holds the action tabs and the amount input.
type ActionPanel struct {
	kinds   []string
	current int
	input   textinput.Model
	rewards []string
	reward  int
	status  map[string]ActionStatus
}

// NewActionPanel creates a panel over the given action kinds.
func NewActionPanel(kinds []string) *ActionPanel {
	in := textinput.New()
	in.Placeholder = "0.0"
	in.CharLimit = 40
	in.Width = 24
	in.Prompt = "amount › "

	return &ActionPanel{
		kinds:  kinds,
		input:  in,
		status: make(map[string]ActionStatus),
	}
}

// Kind returns the selected action kind.
func (p *ActionPanel) Kind() string {
	if len(p.kinds) == 0 {
		return ""
	}
	return p.kinds[p.current]
}

// Next selects the following tab and clears the amount.
func (p *ActionPanel) Next() {
	p.current = (p.current + 1) % len(p.kinds)
	p.input.SetValue("")
}

// Prev selects the previous tab and clears the amount.
func (p *ActionPanel) Prev() {
	p.current = (p.current - 1 + len(p.kinds)) % len(p.kinds)
	p.input.SetValue("")
}

// Focus starts amount editing.
func (p *ActionPanel) Focus() tea.Cmd {
	return p.input.Focus()
}

// Blur stops amount editing.
func (p *ActionPanel) Blur() {
	p.input.Blur()
}

// Editing reports whether the amount input has focus.
func (p *ActionPanel) Editing() bool {
	return p.input.Focused()
}

// Amount returns the typed amount.
func (p *ActionPanel) Amount() string {
	return p.input.Value()
}

// SetAmount overwrites the amount field.
func (p *ActionPanel) SetAmount(s string) {
	p.input.SetValue(s)
	p.input.CursorEnd()
}

// SetRewardChoices sets the selectable reward tokens, keeping the current
// choice when still present.
func (p *ActionPanel) SetRewardChoices(names []string) {
	cur := p.RewardChoice()
	p.rewards = names
	p.reward = 0
	for i, n := range names {
		if n == cur {
			p.reward = i
			break
		}
	}
}

// NextReward cycles the reward token choice.
func (p *ActionPanel) NextReward() {
	if len(p.rewards) > 0 {
		p.reward = (p.reward + 1) % len(p.rewards)
	}
}

// RewardChoice returns the chosen reward token.
func (p *ActionPanel) RewardChoice() string {
	if len(p.rewards) == 0 {
		return ""
	}
	return p.rewards[p.reward]
}

// SetStatus records the status of an action keyed by token and kind.
func (p *ActionPanel) SetStatus(token, kind string, st ActionStatus) {
	p.status[statusKey(token, kind)] = st
}

// Update forwards input messages to the amount field.
func (p *ActionPanel) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

// View renders the tabs, the input and the status for token. Reward token
// choices are hidden until ready, so stale defaults are never offered.
func (p *ActionPanel) View(token string, ready, canSign bool) string {
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	activeTab := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#7C3AED")).Padding(0, 1)
	inactiveTab := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Padding(0, 1)

	var sb strings.Builder

	tabs := make([]string, 0, len(p.kinds))
	for i, k := range p.kinds {
		if i == p.current {
			tabs = append(tabs, activeTab.Render(k))
		} else {
			tabs = append(tabs, inactiveTab.Render(k))
		}
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	sb.WriteString("\n\n")

	if !canSign {
		sb.WriteString(mutedStyle.Render("Read-only wallet: actions are disabled"))
		sb.WriteString("\n")
	}

	if p.Kind() == "change reward token" {
		switch {
		case !ready:
			sb.WriteString(mutedStyle.Render("reward token › loading..."))
		case p.RewardChoice() == "":
			sb.WriteString(mutedStyle.Render("reward token › none available"))
		default:
			sb.WriteString("reward token › " + p.RewardChoice() + mutedStyle.Render("  (t: change)"))
		}
	} else {
		sb.WriteString(p.input.View())
	}
	sb.WriteString("\n")

	if st, ok := p.status[statusKey(token, p.Kind())]; ok {
		sb.WriteString(renderStatus(st))
	} else {
		sb.WriteString(mutedStyle.Render("Idle"))
	}

	return sb.String()
}

func renderStatus(st ActionStatus) string {
	color := "#F59E0B"
	switch st.State {
	case "Success":
		color = "#10B981"
	case "Failed":
		color = "#EF4444"
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)

	line := style.Render(st.State)
	if st.Step != "" {
		line += fmt.Sprintf(" · %s", st.Step)
	}
	if st.Hash != "" {
		line += fmt.Sprintf(" · %s", shortAddress(st.Hash))
	}
	if st.Error != "" {
		line += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Render(st.Error)
	}
	return line
}

func statusKey(token, kind string) string {
	return strings.ToLower(token) + "|" + kind
}
