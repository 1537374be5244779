// Package blockchain implements the chain connectivity context: new heads and gas pricing.
package blockchain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/savvy-farm/business/blockchain/app"
	blockchainDI "github.com/fd1az/savvy-farm/business/blockchain/di"
	"github.com/fd1az/savvy-farm/business/blockchain/infra/ethereum"
	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/fd1az/savvy-farm/internal/config"
	"github.com/fd1az/savvy-farm/internal/di"
	"github.com/fd1az/savvy-farm/internal/logger"
	"github.com/fd1az/savvy-farm/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		network := sr.Get("network").(asset.Network)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(network.WSURL, network.RPCURL)
		if cfg.Chain.PollInterval > 0 {
			subCfg.PollInterval = cfg.Chain.PollInterval
		}
		if cfg.Chain.InitialBackoff > 0 {
			subCfg.InitialBackoff = cfg.Chain.InitialBackoff
		}
		if cfg.Chain.MaxBackoff > 0 {
			subCfg.MaxBackoff = cfg.Chain.MaxBackoff
		}
		subCfg.MaxReconnects = cfg.Chain.MaxReconnects

		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		client := sr.Get("ethClient").(*ethclient.Client)
		log := sr.Get("logger").(logger.LoggerInterface)

		oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(), client, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(
			blockchainDI.GetBlockSubscriber(sr),
			blockchainDI.GetGasOracle(sr),
		)
	})

	return nil
}

// Startup checks the node serves the configured chain.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	network := mono.Network()

	svc := blockchainDI.GetBlockchainService(mono.Services())
	if err := svc.VerifyChainID(ctx, network.ChainID); err != nil {
		log.Error(ctx, "chain id check failed", "network", network.Name, "error", err)
		return err
	}

	log.Info(ctx, "blockchain module started", "network", network.Name, "chain_id", network.ChainID)
	return nil
}
