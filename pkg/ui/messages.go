package ui

import (
	"time"

	dashboardApp "github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
)

// Message types for TUI updates

// ViewMsg is sent whenever the token view changes.
type ViewMsg struct {
	View dashboardApp.View
}

// ActionMsg is sent on every action transition.
type ActionMsg struct {
	Action domain.Action
}

// ActionResultMsg carries the outcome of a dispatch made from the TUI.
type ActionResultMsg struct {
	Action domain.Action
	Err    error
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // config, chain, farm, prices
	Status  string // "connecting", "connected", "failed"
	Message string
}
