// Package ui provides the Bubble Tea TUI for the farm dashboard.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	dashboardApp "github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	"github.com/fd1az/savvy-farm/pkg/ui/components"
)

// ActionHandler executes user actions entered in the TUI.
type ActionHandler interface {
	Dispatch(ctx context.Context, req domain.ActionRequest) (domain.Action, error)
	MaxAmount(kind domain.ActionKind, token string) (string, error)
	Refresh()
}

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

var startupOrder = []string{"config", "chain", "farm", "prices"}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	tokens   *components.TokensComponent
	position *components.PositionComponent
	panel    *components.ActionPanel
	status   *components.StatusComponent
	help     help.Model
	keys     KeyMap

	handler ActionHandler

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	quitting   bool
	width      int
	height     int
	view       dashboardApp.View
	lastUpdate time.Time
	errors     []ErrorEntry // Persistent error panel (last 3)
	logs       []string     // Recent log messages

	// Startup state
	startupSteps map[string]*StartupStep
	startupTime  time.Time
}

// New creates a new TUI model dispatching actions to handler.
func New(handler ActionHandler) Model {
	kinds := make([]string, 0, len(domain.ActionKinds))
	for _, k := range domain.ActionKinds {
		kinds = append(kinds, string(k))
	}

	now := time.Now()
	return Model{
		tokens:       components.NewTokensComponent(),
		position:     components.NewPositionComponent(),
		panel:        components.NewActionPanel(kinds),
		status:       components.NewStatusComponent(),
		help:         help.New(),
		keys:         DefaultKeyMap(),
		handler:      handler,
		phase:        PhaseWelcome,
		welcomeStart: now,
		logs:         make([]string, 0, 5),
		errors:       make([]ErrorEntry, 0, 3),
		startupSteps: map[string]*StartupStep{
			"config": {Name: "Loading configuration", Status: "pending"},
			"chain":  {Name: "Connecting to chain", Status: "pending"},
			"farm":   {Name: "Reading farm tokens", Status: "pending"},
			"prices": {Name: "Fetching prices", Status: "pending"},
		},
		startupTime: now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.enterStartup()
		}
		return m, tickCmd()

	case ViewMsg:
		m.applyView(msg.View)

	case ActionMsg:
		m.applyAction(msg.Action)

	case ActionResultMsg:
		if msg.Err != nil {
			m.addError(msg.Err.Error())
			return m, nil
		}
		m.applyAction(msg.Action)
		m.logs = addLog(m.logs, "info", fmt.Sprintf("%s submitted", msg.Action.Kind))

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:       msg.Name,
			Connected:  msg.Connected,
			Latency:    msg.Latency,
			LastUpdate: time.Now(),
		})
		m.lastUpdate = time.Now()
		if step := m.startupSteps["chain"]; step != nil {
			if msg.Connected {
				step.Status = "connected"
			} else {
				step.Status = "connecting"
			}
		}

	case ErrorMsg:
		m.addError(msg.Error.Error())

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
	}

	return m, nil
}

func (m *Model) enterStartup() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// During welcome phase, any key skips to startup
	if m.phase == PhaseWelcome {
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		m.enterStartup()
		return m, tickCmd()
	}

	if m.panel.Editing() {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.panel.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			m.panel.Blur()
			return m, m.submit()
		}
		return m, m.panel.Update(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.tokens.Up()
		m.refreshPosition()
	case key.Matches(msg, m.keys.Down):
		m.tokens.Down()
		m.refreshPosition()
	case key.Matches(msg, m.keys.NextAction):
		m.panel.Next()
	case key.Matches(msg, m.keys.PrevAction):
		m.panel.Prev()
	case key.Matches(msg, m.keys.Edit):
		if domain.ActionKind(m.panel.Kind()).TakesAmount() {
			return m, m.panel.Focus()
		}
	case key.Matches(msg, m.keys.Max):
		m.fillMax()
	case key.Matches(msg, m.keys.NextReward):
		m.panel.NextReward()
	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()
	case key.Matches(msg, m.keys.Refresh):
		if m.handler != nil {
			m.handler.Refresh()
		}
	case key.Matches(msg, m.keys.ClearErrors):
		m.errors = make([]ErrorEntry, 0, 3)
	}
	return m, nil
}

// fillMax sets the amount from the balance current at the moment of the key
// press.
func (m *Model) fillMax() {
	row, ok := m.tokens.Selected()
	if !ok || m.handler == nil {
		return
	}
	kind := domain.ActionKind(m.panel.Kind())
	if !kind.TakesAmount() {
		return
	}
	amount, err := m.handler.MaxAmount(kind, row.Address)
	if err != nil {
		m.addError(err.Error())
		return
	}
	m.panel.SetAmount(amount)
}

func (m *Model) submit() tea.Cmd {
	row, ok := m.tokens.Selected()
	if !ok || m.handler == nil {
		return nil
	}

	req := domain.ActionRequest{
		Token:  row.Address,
		Kind:   domain.ActionKind(m.panel.Kind()),
		Amount: m.panel.Amount(),
	}
	if req.Kind == domain.ActionChangeRewardToken {
		if !m.view.Ready {
			return nil
		}
		req.Amount = ""
		req.RewardToken = m.rewardAddress(m.panel.RewardChoice())
	}

	handler := m.handler
	return func() tea.Msg {
		action, err := handler.Dispatch(context.Background(), req)
		return ActionResultMsg{Action: action, Err: err}
	}
}

func (m *Model) rewardAddress(name string) string {
	for _, t := range m.view.Tokens {
		if t.Loaded && t.Name == name {
			return t.Address.Hex()
		}
	}
	return ""
}

func (m *Model) applyView(v dashboardApp.View) {
	m.view = v
	m.lastUpdate = time.Now()

	rows := make([]components.TokenRow, 0, len(v.Tokens))
	rewards := make([]string, 0, len(v.Tokens))
	for _, t := range v.Tokens {
		rows = append(rows, components.TokenRow{
			Address:    t.Address.Hex(),
			Name:       t.Name,
			Type:       t.TypeName(),
			Price:      t.Price,
			Apr:        t.StakingApr,
			StakeFee:   t.StakeFee,
			UnstakeFee: t.UnstakeFee,
			Staked:     t.Staker.StakingBalance.String(),
			Value:      t.Staker.StakingValue,
			Projected:  t.Staker.ProjectedReward,
			Loaded:     t.Loaded,
		})
		if t.Loaded {
			rewards = append(rewards, t.Name)
		}
	}
	m.tokens.Update(rows)
	m.panel.SetRewardChoices(rewards)
	m.refreshPosition()

	if v.Generation > 0 {
		m.startupSteps["config"].Status = "done"
		m.startupSteps["farm"].Status = "connected"
	}
	if v.Ready {
		m.startupSteps["prices"].Status = "done"
		if m.phase == PhaseStartup {
			m.phase = PhaseDashboard
		}
	}
}

func (m *Model) refreshPosition() {
	row, ok := m.tokens.Selected()
	if !ok {
		m.position.Update(components.Position{Connected: m.view.Wallet != (common.Address{})})
		return
	}
	t, ok := domain.LookupTokenByAddress(m.view.Tokens, row.Address)
	if !ok {
		return
	}

	rewardName := t.Staker.StakingRewardToken.Hex()
	if rt, ok := domain.LookupTokenByAddress(m.view.Tokens, rewardName); ok && rt.Name != "" {
		rewardName = rt.Name
	}

	m.position.Update(components.Position{
		Token:           t.Name,
		WalletBalance:   t.Staker.WalletBalance.String(),
		StakingBalance:  t.Staker.StakingBalance.String(),
		RewardBalance:   t.Staker.RewardBalance.String(),
		RewardToken:     rewardName,
		ProjectedReward: t.Staker.ProjectedReward,
		ProjectedAmount: t.Staker.ProjectedRewardAmount,
		LastRewarded:    t.Staker.TimestampLastRewarded,
		Connected:       m.view.Wallet != (common.Address{}),
		HasMultiRewards: t.HasMultiTokenRewards,
		StakingValueUSD: t.Staker.StakingValue,
		StakeFeeTotal:   t.StakeFee,
		UnstakeFeeTotal: t.UnstakeFee,
	})
}

func (m *Model) applyAction(a domain.Action) {
	st := components.ActionStatus{State: string(a.State), Step: a.Step, Error: a.Error}
	if n := len(a.TxHashes); n > 0 {
		st.Hash = a.TxHashes[n-1].Hex()
	}
	m.panel.SetStatus(a.Token.Hex(), string(a.Kind), st)
	if a.TxURL != "" && (a.State == domain.ActionSuccess || a.State == domain.ActionFailed) {
		m.logs = addLog(m.logs, "tx", a.TxURL)
	}
	m.lastUpdate = time.Now()
}

func (m *Model) addError(msg string) {
	m.logs = addLog(m.logs, "error", msg)
	m.errors = append(m.errors, ErrorEntry{Message: msg, Timestamp: time.Now()})
	if len(m.errors) > 3 {
		m.errors = m.errors[len(m.errors)-3:]
	}
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", timestamp, level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		if !m.view.Ready {
			return m.renderStartupScreen()
		}
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" 🌾 Savvy Finance Farm "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	width := m.width - 4
	if width < 40 {
		width = 100
	}

	b.WriteString(BoxStyle.Width(width).Render(m.tokens.View(m.view.Ready)))
	b.WriteString("\n")

	selected := ""
	if row, ok := m.tokens.Selected(); ok {
		selected = row.Address
	}
	left := m.position.View()
	right := m.panel.View(selected, m.view.Ready, m.view.CanSign)
	if m.width > 120 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			BoxStyle.Width(width/2-1).Render(left),
			BoxStyle.Width(width/2-1).Render(right),
		))
	} else {
		b.WriteString(BoxStyle.Width(width).Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(right))
	}
	b.WriteString("\n\n")

	// Persistent error panel (show last 3 errors)
	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	goldStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ███████╗ █████╗ ██╗   ██╗██╗   ██╗██╗   ██╗
   ██╔════╝██╔══██╗██║   ██║██║   ██║╚██╗ ██╔╝
   ███████╗███████║██║   ██║██║   ██║ ╚████╔╝
   ╚════██║██╔══██║╚██╗ ██╔╝╚██╗ ██╔╝  ╚██╔╝
   ███████║██║  ██║ ╚████╔╝  ╚████╔╝    ██║
   ╚══════╝╚═╝  ╚═╝  ╚═══╝    ╚═══╝     ╚═╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("               F I N A N C E   F A R M"))
	sb.WriteString("\n\n\n")
	sb.WriteString(goldStyle.Render("              🌾  Stake, earn, repeat  🌾"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  🌾 Savvy Finance Farm"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("  Waiting for every token's metadata..."))
	sb.WriteString("\n")

	for _, l := range m.logs {
		sb.WriteString(MutedValue.Render("  " + l))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Chain: %d", m.view.ChainID))

	wallet := "no wallet"
	if m.view.Wallet != (common.Address{}) {
		wallet = m.view.Wallet.Hex()[:10] + "…"
		if !m.view.CanSign {
			wallet += " (read-only)"
		}
	}
	parts = append(parts, "Wallet: "+wallet)

	if m.view.Ready {
		parts = append(parts, StatusConnected.Render("● tokens updated"))
	} else {
		parts = append(parts, StatusReconnecting.Render("◌ updating tokens"))
	}

	parts = append(parts, m.status.View())

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run(handler ActionHandler) error {
	Program = tea.NewProgram(New(handler), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
