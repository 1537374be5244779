// Package app defines the farm contract ports consumed by other contexts.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/savvy-farm/business/farm/domain"
)

// Gateway is the typed boundary over the farm contract and the tokens it
// tracks. Reads never panic and convert failures to coded errors; writes
// return immediately with a handle that reports progress.
type Gateway interface {
	// ListTokenAddresses returns every registered token. On failure the slice
	// is empty and non-nil.
	ListTokenAddresses(ctx context.Context) ([]common.Address, error)

	// AreTokensActive checks every address in one batched round trip.
	AreTokensActive(ctx context.Context, addrs []common.Address) []domain.ActiveResult

	GetTokenMetadata(ctx context.Context, token common.Address) (domain.TokenMetadata, error)
	GetStakerData(ctx context.Context, token, staker common.Address) (domain.StakerData, error)

	// Stake approves the farm for amount on the token, then stakes it.
	Stake(ctx context.Context, token common.Address, amount *big.Int) *domain.TxHandle
	Unstake(ctx context.Context, token common.Address, amount *big.Int) *domain.TxHandle
	WithdrawReward(ctx context.Context, token common.Address, amount *big.Int) *domain.TxHandle
	SetStakingRewardToken(ctx context.Context, token, rewardToken common.Address) *domain.TxHandle

	// Farm is the contract address.
	Farm() common.Address
	// Account is the connected wallet, zero when none.
	Account() common.Address
	// CanSign reports whether writes can be signed.
	CanSign() bool
}
