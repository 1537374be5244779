// Package ethereum provides EVM node adapters for block tracking and gas pricing.
package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	tracerName = "github.com/fd1az/savvy-farm/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/savvy-farm/business/blockchain/infra/ethereum"
)

// NodeClient is the subset of ethclient.Client the subscriber needs.
type NodeClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Dialer opens a NodeClient for url.
type Dialer func(ctx context.Context, url string) (NodeClient, error)

// DialEthClient dials a go-ethereum client over HTTP or WebSocket.
func DialEthClient(ctx context.Context, url string) (NodeClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GasPriceSuggester is satisfied by *ethclient.Client.
type GasPriceSuggester interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}
