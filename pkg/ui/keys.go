package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit        key.Binding
	Up          key.Binding
	Down        key.Binding
	NextAction  key.Binding
	PrevAction  key.Binding
	Edit        key.Binding
	Submit      key.Binding
	Cancel      key.Binding
	Max         key.Binding
	NextReward  key.Binding
	Refresh     key.Binding
	ClearErrors key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev token"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next token"),
		),
		NextAction: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next action"),
		),
		PrevAction: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev action"),
		),
		Edit: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "amount"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Max: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "max"),
		),
		NextReward: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "reward token"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ClearErrors: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "clear errors"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Up, k.Down, k.NextAction, k.Edit, k.Max, k.Submit}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Up, k.Down, k.Refresh},
		{k.NextAction, k.PrevAction, k.NextReward},
		{k.Edit, k.Max, k.Submit, k.Cancel, k.ClearErrors},
	}
}
