// Package main is the entry point for the Savvy Finance Farm dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/savvy-farm/business/blockchain"
	blockchainDI "github.com/fd1az/savvy-farm/business/blockchain/di"
	blockchainDomain "github.com/fd1az/savvy-farm/business/blockchain/domain"
	"github.com/fd1az/savvy-farm/business/dashboard"
	dashboardDI "github.com/fd1az/savvy-farm/business/dashboard/di"
	"github.com/fd1az/savvy-farm/business/farm"
	"github.com/fd1az/savvy-farm/business/pricing"
	"github.com/fd1az/savvy-farm/internal/apm"
	"github.com/fd1az/savvy-farm/internal/config"
	"github.com/fd1az/savvy-farm/internal/health"
	"github.com/fd1az/savvy-farm/internal/logger"
	"github.com/fd1az/savvy-farm/internal/metrics"
	"github.com/fd1az/savvy-farm/internal/monolith"
	"github.com/fd1az/savvy-farm/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// shutdownGrace bounds how long in-flight transactions may settle on exit.
const shutdownGrace = 30 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("savvy-farm %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, cancel, *configPath, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, configPath string, tuiMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	var out io.Writer = os.Stderr
	if tuiMode {
		// The TUI owns the terminal.
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceIDFromContext)
	log.Info(ctx, "starting savvy finance farm",
		"version", version,
		"environment", cfg.App.Environment,
		"wallet", cfg.Wallet.AccountAddress().Hex(),
	)

	var traceProvider apm.TraceProvider
	var promServer *metrics.PrometheusServer
	if cfg.Telemetry.Enabled {
		traceProvider = apm.NewTraceProvider(log,
			apm.WithProvider(apm.ParseProvider(cfg.Telemetry.TraceProvider)),
			apm.WithServiceName(cfg.Telemetry.ServiceName),
			apm.WithEndpoint(cfg.Telemetry.OTLPEndpoint),
			apm.WithHeaders(cfg.Telemetry.OTLPHeaders),
		)

		if _, err := metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		); err != nil {
			log.Warn(ctx, "metrics disabled", "error", err)
		} else {
			promServer = metrics.NewPrometheusServer(metrics.WithPort(cfg.Telemetry.PrometheusPort))
			promServer.Start(nil)
			log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
		}
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
		if promServer != nil {
			promServer.Stop(context.Background())
		}
	}()

	healthServer := health.NewServer(cfg.Health.Port, version, log)

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	modules := []monolith.Module{
		&blockchain.Module{}, // Must be first - chain id check and new heads
		&farm.Module{},       // Contract gateway
		&pricing.Module{},    // Price oracle
		&dashboard.Module{},  // Depends on all of the above
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	services := mono.Services()
	healthServer.RegisterCheck("chain", func(ctx context.Context) (bool, string) {
		state := blockchainDI.GetBlockchainService(services).ConnectionState()
		return state == blockchainDomain.StateConnected, string(state)
	})
	healthServer.RegisterReadiness("tokens", func(ctx context.Context) (bool, string) {
		if dashboardDI.GetAggregator(services).Ready() {
			return true, "tokens updated"
		}
		return false, "updating tokens"
	})
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer healthServer.Stop(context.Background())

	stop := func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer stopCancel()
		mono.StopModules(stopCtx, modules...)
	}

	if tuiMode {
		return runTUI(ctx, cancel, func() error {
			if err := mono.StartModules(ctx, modules...); err != nil {
				return fmt.Errorf("failed to start modules: %w", err)
			}
			return nil
		}, dashboard.ActionHandler(services), stop)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	log.Info(ctx, "all modules started, watching farm")

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")
	stop()
	return nil
}

func runTUI(ctx context.Context, cancel context.CancelFunc, startFunc func() error, handler ui.ActionHandler, stopFunc func()) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	errCh := make(chan error, 1)
	go func() {
		// Wait for the welcome screen to complete
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			ui.Send(ui.StartupMsg{Step: "chain", Status: "failed"})
			errCh <- err
			return
		}

		<-ctx.Done()
		stopFunc()
		errCh <- nil
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	if err := ui.Run(handler); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// The user quit; stop the modules and wait for them.
	cancel()
	return <-errCh
}
