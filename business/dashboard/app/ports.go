// Package app contains the dashboard services: the view-model aggregator, the
// refresh loop and the action dispatcher.
package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	blockchainDomain "github.com/fd1az/savvy-farm/business/blockchain/domain"
	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	pricingDomain "github.com/fd1az/savvy-farm/business/pricing/domain"
)

// Reporter presents dashboard state to a user surface.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// UpdateView receives every newly published view.
	UpdateView(view View)

	// UpdateAction receives every action transition.
	UpdateAction(action domain.Action)

	// UpdateConnectionStatus updates the connection status of a data source.
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// BlockSource delivers new chain heads.
type BlockSource interface {
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
	ConnectionState() blockchainDomain.ConnectionState
}

// PriceFetcher resolves token prices concurrently.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, tokens []common.Address, fn func(pricingDomain.TokenPrice)) <-chan struct{}
}
