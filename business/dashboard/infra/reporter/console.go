// Package reporter contains the dashboard's user surfaces: a plain console
// printer for CLI mode and an adapter feeding the Bubble Tea TUI.
package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	dashboardApp "github.com/fd1az/savvy-farm/business/dashboard/app"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu       sync.Mutex
	out      io.Writer
	printed  uint64
	notified bool
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to out.
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Savvy Finance Farm Started")
	fmt.Fprintln(r.out, "==========================")
	return nil
}

// UpdateView prints the token table once per ready generation. Partial views
// published while a refresh is in flight are skipped.
func (r *ConsoleReporter) UpdateView(view dashboardApp.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !view.Ready {
		if r.notified {
			return
		}
		fmt.Fprintf(r.out, "[%s] updating tokens (%d listed)\n", time.Now().Format("15:04:05"), len(view.Tokens))
		r.notified = true
		return
	}
	if view.Generation == r.printed || !allLoaded(view.Tokens) {
		return
	}
	r.printed = view.Generation

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "FARM TOKENS  generation #%d  %s\n", view.Generation, view.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "%-10s %-14s %12s %8s %10s %16s %14s\n", "Token", "Type", "Price", "APR", "Fees s/u", "Staked", "Reward (USD)")
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	for _, t := range view.Tokens {
		fmt.Fprintf(r.out, "%-10s %-14s %12s %7s%% %10s %16s %14s\n",
			t.Name,
			t.TypeName(),
			"$"+usd(t.Price),
			decimal.NewFromFloat(t.StakingApr).StringFixed(2),
			decimal.NewFromFloat(t.StakeFee).StringFixed(2)+"/"+decimal.NewFromFloat(t.UnstakeFee).StringFixed(2),
			t.Staker.StakingBalance.String(),
			"$"+usd(t.Staker.ProjectedReward),
		)
	}
	fmt.Fprintln(r.out, "================================================================================")
}

// UpdateAction prints an action transition.
func (r *ConsoleReporter) UpdateAction(a domain.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("[%s] action %s %s %s: %s", time.Now().Format("15:04:05"), a.ID[:min(8, len(a.ID))], a.Kind, a.Token.Hex(), a.State)
	if a.Step != "" {
		line += " (" + a.Step + ")"
	}
	if a.TxURL != "" {
		line += " " + a.TxURL
	} else if n := len(a.TxHashes); n > 0 {
		line += " tx " + a.TxHashes[n-1].Hex()
	}
	if a.Error != "" {
		line += " error: " + a.Error
	}
	fmt.Fprintln(r.out, line)
}

// UpdateConnectionStatus outputs connection status changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency)
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// Stop prints the shutdown line.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Savvy Finance Farm Stopped")
	return nil
}

func allLoaded(tokens []domain.Token) bool {
	for _, t := range tokens {
		if !t.Loaded {
			return false
		}
	}
	return true
}

func usd(v float64) string {
	if v != 0 && v < 0.01 {
		return decimal.NewFromFloat(v).StringFixed(6)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
