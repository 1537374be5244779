// Package farm implements the farm contract context: typed reads and writes
// over the staking contract and the tokens it tracks.
package farm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/fd1az/savvy-farm/business/blockchain/di"
	"github.com/fd1az/savvy-farm/business/farm/app"
	farmDI "github.com/fd1az/savvy-farm/business/farm/di"
	"github.com/fd1az/savvy-farm/business/farm/infra/contract"
	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/fd1az/savvy-farm/internal/config"
	"github.com/fd1az/savvy-farm/internal/di"
	"github.com/fd1az/savvy-farm/internal/logger"
	"github.com/fd1az/savvy-farm/internal/monolith"
)

// Module implements the farm bounded context.
type Module struct{}

// RegisterServices registers the farm gateway with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, farmDI.Gateway, func(sr di.ServiceRegistry) app.Gateway {
		cfg := sr.Get("config").(*config.Config)
		network := sr.Get("network").(asset.Network)
		client := sr.Get("ethClient").(*ethclient.Client)
		log := sr.Get("logger").(logger.LoggerInterface)

		key, err := cfg.Wallet.SigningKey()
		if err != nil {
			panic("invalid wallet key: " + err.Error())
		}

		gwCfg := contract.Config{
			Farm:           network.Farm,
			ChainID:        new(big.Int).SetUint64(network.ChainID),
			Key:            key,
			Account:        cfg.Wallet.AccountAddress(),
			ReceiptTimeout: cfg.Chain.ReceiptTimeout,
		}

		gw, err := contract.NewGateway(gwCfg, client, client.Client(), blockchainDI.GetGasOracle(sr), log)
		if err != nil {
			panic("failed to create farm gateway: " + err.Error())
		}
		return gw
	})

	return nil
}

// Startup logs the wallet mode the gateway runs in.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	gw := farmDI.GetGateway(mono.Services())

	mode := "disconnected"
	switch {
	case gw.CanSign():
		mode = "signing"
	case mono.Config().Wallet.Connected():
		mode = "watch-only"
	}

	log.Info(ctx, "farm module started",
		"farm", gw.Farm().Hex(),
		"account", gw.Account().Hex(),
		"wallet", mode,
	)
	return nil
}
