package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Position holds the connected wallet's stake in one token for display.
type Position struct {
	Token           string
	WalletBalance   string
	StakingBalance  string
	RewardBalance   string
	RewardToken     string
	ProjectedReward float64
	ProjectedAmount float64
	LastRewarded    int64
	Connected       bool
	HasMultiRewards bool
	StakingValueUSD float64
	StakeFeeTotal   float64
	UnstakeFeeTotal float64
}

// PositionComponent renders the selected token's staker data.
type PositionComponent struct {
	pos Position
}

// NewPositionComponent creates a new position component.
func NewPositionComponent() *PositionComponent {
	return &PositionComponent{}
}

// Update updates the position.
func (p *PositionComponent) Update(pos Position) {
	p.pos = pos
}

// View renders the position component.
func (p *PositionComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	rewardStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)

	var sb strings.Builder
	sb.WriteString(style.Render("POSITION"))
	if p.pos.Token != "" {
		sb.WriteString(style.Render(" · " + p.pos.Token))
	}
	sb.WriteString("\n")

	if !p.pos.Connected {
		sb.WriteString(style.Render("No wallet connected"))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Wallet: %s  │  Staked: %s (%s)  │  Rewards: %s\n",
		valueStyle.Render(p.pos.WalletBalance),
		valueStyle.Render(p.pos.StakingBalance),
		formatUSD(p.pos.StakingValueUSD),
		valueStyle.Render(p.pos.RewardBalance),
	))

	reward := fmt.Sprintf("%s ≈ %.6f %s", formatUSD(p.pos.ProjectedReward), p.pos.ProjectedAmount, p.pos.RewardToken)
	if p.pos.ProjectedAmount == 0 {
		reward = formatUSD(p.pos.ProjectedReward)
	}
	sb.WriteString(fmt.Sprintf("Projected: %s  │  Paid in: %s",
		rewardStyle.Render(reward),
		valueStyle.Render(p.pos.RewardToken),
	))

	if p.pos.LastRewarded > 0 {
		ago := time.Since(time.Unix(p.pos.LastRewarded, 0)).Round(time.Minute)
		sb.WriteString(style.Render(fmt.Sprintf("  │  since %s ago", ago)))
	}
	sb.WriteString("\n")
	sb.WriteString(style.Render(fmt.Sprintf("Fees: stake %.2f%%  unstake %.2f%%", p.pos.StakeFeeTotal, p.pos.UnstakeFeeTotal)))
	if p.pos.HasMultiRewards {
		sb.WriteString(style.Render("  │  multi-token rewards"))
	}

	return sb.String()
}
