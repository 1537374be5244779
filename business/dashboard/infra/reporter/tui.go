package reporter

import (
	"context"
	"time"

	dashboardApp "github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	"github.com/fd1az/savvy-farm/pkg/ui"
)

// TUIReporter implements Reporter by forwarding updates to the Bubble Tea
// program as messages.
type TUIReporter struct {
	send func(msg any)
}

// NewTUIReporter creates a TUIReporter sending to the running ui program.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{send: func(msg any) { ui.Send(msg) }}
}

// Start reports the configuration step as done.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "config", Status: "done"})
	r.send(ui.StartupMsg{Step: "chain", Status: "connecting"})
	r.send(ui.StartupMsg{Step: "farm", Status: "connecting"})
	r.send(ui.StartupMsg{Step: "prices", Status: "connecting"})
	return nil
}

// UpdateView sends the view to the TUI.
func (r *TUIReporter) UpdateView(view dashboardApp.View) {
	r.send(ui.ViewMsg{View: view})
}

// UpdateAction sends an action transition to the TUI.
func (r *TUIReporter) UpdateAction(action domain.Action) {
	r.send(ui.ActionMsg{Action: action})
	if action.State == domain.ActionFailed && action.Error != "" {
		r.send(ui.LogMsg{Level: "error", Message: string(action.Kind) + ": " + action.Error})
	}
}

// UpdateConnectionStatus sends connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// Stop is a no-op; the program is quit by its own key handling.
func (r *TUIReporter) Stop() error {
	return nil
}
