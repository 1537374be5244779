package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dashboardApp "github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	"github.com/fd1az/savvy-farm/internal/asset"
)

var (
	svf  = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	busd = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

type fakeHandler struct {
	requests  []domain.ActionRequest
	maxCalls  []domain.ActionKind
	refreshes int
	err       error
}

func (f *fakeHandler) Dispatch(_ context.Context, req domain.ActionRequest) (domain.Action, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.Action{}, f.err
	}
	return domain.Action{ID: "a1", Token: common.HexToAddress(req.Token), Kind: req.Kind, State: domain.ActionSubmitted}, nil
}

func (f *fakeHandler) MaxAmount(kind domain.ActionKind, token string) (string, error) {
	f.maxCalls = append(f.maxCalls, kind)
	if kind == domain.ActionUnstake {
		return "42.5", nil
	}
	return "0", nil
}

func (f *fakeHandler) Refresh() {
	f.refreshes++
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func testView(ready bool) dashboardApp.View {
	staked, _ := asset.ParseUnits("42.5", asset.TokenDecimals)
	return dashboardApp.View{
		Ready:      ready,
		Generation: 1,
		CanSign:    true,
		Wallet:     common.HexToAddress("0x70997970C51812dc3A010C8d2B8cF9f7d8e8b3c0"),
		Tokens: []domain.Token{
			{Address: svf, Name: "SVF", Loaded: true, Staker: domain.StakerView{StakingBalance: staked}},
			{Address: busd, Name: "BUSD", Loaded: true},
		},
	}
}

// dashboardModel returns a model past the welcome screen showing view.
func dashboardModel(t *testing.T, h *fakeHandler, view dashboardApp.View) Model {
	t.Helper()
	m := New(h)
	m, _ = update(t, m, runes("x"))
	require.Equal(t, PhaseStartup, m.phase)
	m, _ = update(t, m, ViewMsg{View: view})
	return m
}

func TestModel_ReadyViewEntersDashboard(t *testing.T) {
	m := dashboardModel(t, &fakeHandler{}, testView(true))

	assert.Equal(t, PhaseDashboard, m.phase)
	require.Len(t, m.tokens.Rows(), 2)
	assert.Equal(t, "42.5", m.tokens.Rows()[0].Staked)
	assert.Equal(t, "SVF", m.panel.RewardChoice())
}

func TestModel_NotReadyStaysOnStartup(t *testing.T) {
	m := dashboardModel(t, &fakeHandler{}, testView(false))
	assert.Equal(t, PhaseStartup, m.phase)
}

func TestModel_MaxFillsCurrentBalance(t *testing.T) {
	h := &fakeHandler{}
	m := dashboardModel(t, h, testView(true))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, string(domain.ActionUnstake), m.panel.Kind())

	m, _ = update(t, m, runes("m"))
	assert.Equal(t, []domain.ActionKind{domain.ActionUnstake}, h.maxCalls)
	assert.Equal(t, "42.5", m.panel.Amount())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd()
	result, ok := msg.(ActionResultMsg)
	require.True(t, ok)
	require.NoError(t, result.Err)
	require.Len(t, h.requests, 1)
	assert.Equal(t, domain.ActionRequest{Token: svf.Hex(), Kind: domain.ActionUnstake, Amount: "42.5"}, h.requests[0])

	m, _ = update(t, m, result)
	assert.Empty(t, m.errors)
}

func TestModel_DispatchErrorIsShown(t *testing.T) {
	h := &fakeHandler{err: errors.New("invalid amount")}
	m := dashboardModel(t, h, testView(true))

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	require.Len(t, m.errors, 1)
	assert.Equal(t, "invalid amount", m.errors[0].Message)

	m, _ = update(t, m, runes("e"))
	assert.Empty(t, m.errors)
}

func TestModel_ChangeRewardTokenSendsAddress(t *testing.T) {
	h := &fakeHandler{}
	m := dashboardModel(t, h, testView(true))

	for i := 0; i < 3; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
	require.Equal(t, string(domain.ActionChangeRewardToken), m.panel.Kind())

	m, _ = update(t, m, runes("t"))
	assert.Equal(t, "BUSD", m.panel.RewardChoice())

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()

	require.Len(t, h.requests, 1)
	assert.Equal(t, busd.Hex(), h.requests[0].RewardToken)
	assert.Empty(t, h.requests[0].Amount)
}

func TestModel_ChangeRewardTokenWaitsForReady(t *testing.T) {
	h := &fakeHandler{}
	m := dashboardModel(t, h, testView(false))
	m.phase = PhaseDashboard

	for i := 0; i < 3; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, h.requests)
}

func TestModel_ActionMsgUpdatesStatus(t *testing.T) {
	m := dashboardModel(t, &fakeHandler{}, testView(true))

	m, _ = update(t, m, ActionMsg{Action: domain.Action{
		Token:    svf,
		Kind:     domain.ActionStake,
		State:    domain.ActionMining,
		TxHashes: []common.Hash{common.HexToHash("0x01")},
	}})

	assert.Contains(t, m.panel.View(svf.Hex(), true, true), "Mining")
}

func TestModel_RefreshKey(t *testing.T) {
	h := &fakeHandler{}
	m := dashboardModel(t, h, testView(true))

	update(t, m, runes("r"))
	assert.Equal(t, 1, h.refreshes)
}
