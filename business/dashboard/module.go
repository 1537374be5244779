// Package dashboard implements the dashboard context: the token view-model,
// its refresh loop, user actions and the surfaces that present them.
package dashboard

import (
	"context"

	blockchainDI "github.com/fd1az/savvy-farm/business/blockchain/di"
	"github.com/fd1az/savvy-farm/business/dashboard/app"
	dashboardDI "github.com/fd1az/savvy-farm/business/dashboard/di"
	"github.com/fd1az/savvy-farm/business/dashboard/infra/api"
	"github.com/fd1az/savvy-farm/business/dashboard/infra/reporter"
	farmDI "github.com/fd1az/savvy-farm/business/farm/di"
	pricingDI "github.com/fd1az/savvy-farm/business/pricing/di"
	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/fd1az/savvy-farm/internal/config"
	"github.com/fd1az/savvy-farm/internal/di"
	"github.com/fd1az/savvy-farm/internal/logger"
	"github.com/fd1az/savvy-farm/internal/monolith"
	"github.com/fd1az/savvy-farm/pkg/ui"
)

// Module implements the dashboard bounded context.
type Module struct{}

// RegisterServices registers all dashboard services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, dashboardDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		network := sr.Get("network").(asset.Network)

		return app.NewAggregator(app.AggregatorConfig{
			IconBaseURL: cfg.Dashboard.IconBaseURL,
			Wallet:      cfg.Wallet.AccountAddress(),
			CanSign:     cfg.Wallet.CanSign(),
			ChainID:     network.ChainID,
		})
	})

	di.RegisterToken(c, dashboardDI.Dispatcher, func(sr di.ServiceRegistry) *app.Dispatcher {
		log := sr.Get("logger").(logger.LoggerInterface)

		// Resolved lazily: the refresher depends on the reporters, which
		// include the API server built on this dispatcher.
		onSuccess := func() { dashboardDI.GetRefresher(sr).Trigger() }

		network := sr.Get("network").(asset.Network)

		return app.NewDispatcher(farmDI.GetGateway(sr), dashboardDI.GetAggregator(sr), onSuccess, log,
			app.WithTxLink(network.TxURL))
	})

	di.RegisterToken(c, dashboardDI.APIServer, func(sr di.ServiceRegistry) *api.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return api.NewServer(api.Config{
			Port:           cfg.API.Port,
			AllowedOrigins: cfg.API.AllowedOrigins,
		}, dashboardDI.GetAggregator(sr), dashboardDI.GetDispatcher(sr), log)
	})

	di.RegisterToken(c, dashboardDI.Reporters, func(sr di.ServiceRegistry) []app.Reporter {
		cfg := sr.Get("config").(*config.Config)

		var reporters []app.Reporter
		if cfg.App.TUIMode {
			reporters = append(reporters, reporter.NewTUIReporter())
		} else {
			reporters = append(reporters, reporter.NewConsoleReporter())
		}
		if cfg.API.Enabled {
			reporters = append(reporters, dashboardDI.GetAPIServer(sr))
		}
		return reporters
	})

	di.RegisterToken(c, dashboardDI.Refresher, func(sr di.ServiceRegistry) *app.Refresher {
		cfg := sr.Get("config").(*config.Config)
		network := sr.Get("network").(asset.Network)
		log := sr.Get("logger").(logger.LoggerInterface)

		refCfg := app.DefaultRefresherConfig()
		if cfg.Dashboard.RefreshTimeout > 0 {
			refCfg.Timeout = cfg.Dashboard.RefreshTimeout
		}
		if cfg.Dashboard.ReadConcurrency > 0 {
			refCfg.ReadConcurrency = cfg.Dashboard.ReadConcurrency
		}
		if cfg.Dashboard.MinRefreshSpacing > 0 {
			refCfg.MinSpacing = cfg.Dashboard.MinRefreshSpacing
		}
		refCfg.SourceName = network.Name

		return app.NewRefresher(
			farmDI.GetGateway(sr),
			pricingDI.GetOracle(sr),
			blockchainDI.GetBlockchainService(sr),
			dashboardDI.GetAggregator(sr),
			refCfg,
			log,
			dashboardDI.GetReporters(sr)...,
		)
	})

	return nil
}

// Startup starts the reporters, forwards view and action updates to them and
// begins the refresh loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	aggregator := dashboardDI.GetAggregator(sr)
	dispatcher := dashboardDI.GetDispatcher(sr)
	reporters := dashboardDI.GetReporters(sr)

	for _, r := range reporters {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}

	views := aggregator.Subscribe()
	go func() {
		for v := range views {
			for _, r := range reporters {
				r.UpdateView(v)
			}
		}
	}()

	actions := dispatcher.Subscribe()
	go func() {
		for a := range actions {
			for _, r := range reporters {
				r.UpdateAction(a)
			}
		}
	}()

	if err := dashboardDI.GetRefresher(sr).Start(ctx); err != nil {
		return err
	}

	log.Info(ctx, "dashboard module started",
		"reporters", len(reporters),
		"api", mono.Config().API.Enabled,
	)
	return nil
}

// Shutdown waits for the refresh loop to exit after ctx is cancelled, lets
// in-flight transactions settle until stopCtx expires and stops the reporters.
func (m *Module) Shutdown(stopCtx context.Context, mono monolith.Monolith) {
	log := mono.Logger()
	sr := mono.Services()

	dashboardDI.GetRefresher(sr).Wait()

	dispatcher := dashboardDI.GetDispatcher(sr)
	if err := dispatcher.Wait(stopCtx); err != nil {
		log.Warn(stopCtx, "actions still in flight at shutdown", "error", err)
	}
	dispatcher.Close()
	dashboardDI.GetAggregator(sr).Close()

	for _, r := range dashboardDI.GetReporters(sr) {
		if err := r.Stop(); err != nil {
			log.Error(stopCtx, "error stopping reporter", "error", err)
		}
	}
}

// ActionHandler adapts the dashboard services to the TUI.
func ActionHandler(sr di.ServiceRegistry) ui.ActionHandler {
	return actionHandler{
		Dispatcher: dashboardDI.GetDispatcher(sr),
		refresher:  dashboardDI.GetRefresher(sr),
	}
}

type actionHandler struct {
	*app.Dispatcher
	refresher *app.Refresher
}

func (h actionHandler) Refresh() {
	h.refresher.Trigger()
}
