// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TokenRow is one line of the token table. Values are preformatted except
// Loaded, which hides derived columns until metadata arrived.
type TokenRow struct {
	Address    string
	Name       string
	Type       string
	Price      float64
	Apr        float64
	StakeFee   float64
	UnstakeFee float64
	Staked     string
	Value      float64
	Projected  float64
	Loaded     bool
}

// TokensComponent renders the token table with a selection cursor.
type TokensComponent struct {
	rows     []TokenRow
	cursor   int
	selected string
}

// NewTokensComponent creates an empty table.
func NewTokensComponent() *TokensComponent {
	return &TokensComponent{}
}

// Update replaces the rows, keeping the selection on the same address when
// it is still listed.
func (t *TokensComponent) Update(rows []TokenRow) {
	t.rows = rows
	t.cursor = 0
	for i, r := range rows {
		if strings.EqualFold(r.Address, t.selected) {
			t.cursor = i
			break
		}
	}
	t.sync()
}

// Up moves the cursor up.
func (t *TokensComponent) Up() {
	if t.cursor > 0 {
		t.cursor--
	}
	t.sync()
}

// Down moves the cursor down.
func (t *TokensComponent) Down() {
	if t.cursor < len(t.rows)-1 {
		t.cursor++
	}
	t.sync()
}

func (t *TokensComponent) sync() {
	if len(t.rows) == 0 {
		t.selected = ""
		return
	}
	t.selected = t.rows[t.cursor].Address
}

// Selected returns the highlighted row.
func (t *TokensComponent) Selected() (TokenRow, bool) {
	if len(t.rows) == 0 {
		return TokenRow{}, false
	}
	return t.rows[t.cursor], true
}

// Rows returns the current rows.
func (t *TokensComponent) Rows() []TokenRow {
	return t.rows
}

// View renders the table. Before ready, only names are shown.
func (t *TokensComponent) View(ready bool) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#374151"))
	rewardStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("TOKENS (%d)", len(t.rows))))
	sb.WriteString("\n\n")

	if len(t.rows) == 0 {
		sb.WriteString(mutedStyle.Render("  Waiting for the farm token list..."))
		return sb.String()
	}

	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %-10s %-13s %12s %8s %11s %14s %12s %12s",
		"Token", "Type", "Price", "APR", "Fees s/u", "Staked", "Value", "Reward")))
	sb.WriteString("\n")

	for i, r := range t.rows {
		name := r.Name
		if name == "" {
			name = shortAddress(r.Address)
		}

		var line string
		if !ready || !r.Loaded {
			line = fmt.Sprintf("  %-10s %s", truncate(name, 10), mutedStyle.Render("loading..."))
		} else {
			line = fmt.Sprintf("  %-10s %-13s %12s %7.2f%% %11s %14s %12s %s",
				truncate(name, 10),
				r.Type,
				formatUSD(r.Price),
				r.Apr,
				fmt.Sprintf("%.2f/%.2f", r.StakeFee, r.UnstakeFee),
				truncate(r.Staked, 14),
				formatUSD(r.Value),
				rewardStyle.Render(fmt.Sprintf("%12s", formatUSD(r.Projected))),
			)
		}

		if i == t.cursor {
			line = selectedStyle.Render(">" + line[1:])
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatUSD(v float64) string {
	switch {
	case v == 0:
		return "-"
	case v < 0.01:
		return fmt.Sprintf("$%.6f", v)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

func shortAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + ".." + addr[len(addr)-4:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
