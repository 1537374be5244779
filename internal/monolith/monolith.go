// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/fd1az/savvy-farm/internal/config"
	"github.com/fd1az/savvy-farm/internal/di"
	"github.com/fd1az/savvy-farm/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	Network() asset.Network
	Networks() *asset.Registry
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// Stopper is implemented by modules that own goroutines or in-flight work.
// Shutdown returns once that work settled or ctx expired.
type Stopper interface {
	Shutdown(context.Context, Monolith)
}

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	ethClient *ethclient.Client
	network   asset.Network
	networks  *asset.Registry
	container di.Container
}

// New creates a new Monolith instance connected to the configured network.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	networks := asset.DefaultRegistry()

	network, err := cfg.Network(networks)
	if err != nil {
		return nil, err
	}

	ethClient, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network.Name, err)
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClient", ethClient)
	container.Register("network", network)
	container.Register("networks", networks)

	return &app{
		config:    cfg,
		logger:    log,
		ethClient: ethClient,
		network:   network,
		networks:  networks,
		container: container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) Network() asset.Network {
	return a.network
}

func (a *app) Networks() *asset.Registry {
	return a.networks
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// StopModules shuts modules down in reverse start order, skipping those
// without a Shutdown hook.
func (a *app) StopModules(ctx context.Context, modules ...Module) {
	for i := len(modules) - 1; i >= 0; i-- {
		if s, ok := modules[i].(Stopper); ok {
			s.Shutdown(ctx, a)
		}
	}
}

// Close closes all resources.
func (a *app) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
