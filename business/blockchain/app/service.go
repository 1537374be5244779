package app

import (
	"context"
	"fmt"

	"github.com/fd1az/savvy-farm/business/blockchain/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
)

// BlockchainService coordinates node interactions.
type BlockchainService struct {
	subscriber BlockSubscriber
	gasOracle  GasOracle
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(subscriber BlockSubscriber, gasOracle GasOracle) *BlockchainService {
	return &BlockchainService{
		subscriber: subscriber,
		gasOracle:  gasOracle,
	}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// LatestBlock returns the current head.
func (s *BlockchainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// GetGasPrice retrieves the current gas price.
func (s *BlockchainService) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.GetGasPrice(ctx)
}

// ConnectionState returns the current connection state.
func (s *BlockchainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}

// VerifyChainID fails when the node serves a different chain than expected.
func (s *BlockchainService) VerifyChainID(ctx context.Context, expected uint64) error {
	got, err := s.subscriber.ChainID(ctx)
	if err != nil {
		return err
	}

	if !got.IsUint64() || got.Uint64() != expected {
		return apperror.New(apperror.CodeChainIDMismatch,
			apperror.WithContext(fmt.Sprintf("expected %d, node reports %s", expected, got)))
	}
	return nil
}
