// Package pricing implements the token price context backed by the PancakeSwap API.
package pricing

import (
	"context"

	"github.com/fd1az/savvy-farm/business/pricing/app"
	pricingDI "github.com/fd1az/savvy-farm/business/pricing/di"
	"github.com/fd1az/savvy-farm/business/pricing/infra/pancakeswap"
	"github.com/fd1az/savvy-farm/internal/config"
	"github.com/fd1az/savvy-farm/internal/di"
	"github.com/fd1az/savvy-farm/internal/logger"
	"github.com/fd1az/savvy-farm/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.PriceSource, func(sr di.ServiceRegistry) app.PriceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		clientCfg := pancakeswap.Config{
			BaseURL:           cfg.Pricing.BaseURL,
			Timeout:           cfg.Pricing.Timeout,
			RequestsPerMinute: cfg.Pricing.RequestsPerMinute,
			CacheTTL:          cfg.Pricing.CacheTTL,
		}

		client, err := pancakeswap.NewClient(clientCfg, log)
		if err != nil {
			panic("failed to create price client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, pricingDI.Oracle, func(sr di.ServiceRegistry) *app.Oracle {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewOracle(pricingDI.GetPriceSource(sr), log)
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	pricingDI.GetOracle(mono.Services())
	mono.Logger().Info(ctx, "pricing module started", "api", mono.Config().Pricing.BaseURL)
	return nil
}
