// Package domain contains the typed records read from the farm contract.
package domain

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/savvy-farm/internal/asset"
)

// TokenType is the farm's classification of a token. The raw contract value
// is kept so unknown types still round-trip.
type TokenType int

const (
	TokenTypeStandard    TokenType = 0
	TokenTypeSingle      TokenType = 1
	TokenTypeMultiReward TokenType = 2
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeStandard, TokenTypeSingle:
		return "single-reward"
	case TokenTypeMultiReward:
		return "multi-reward"
	default:
		return "unknown"
	}
}

// Fee is a percentage fee split between the farm developer and the token admin.
type Fee struct {
	Dev   float64
	Admin float64
}

// Total returns the fee a staker pays.
func (f Fee) Total() float64 {
	return f.Dev + f.Admin
}

// TokenMetadata is the decoded result of tokensData(address).
type TokenMetadata struct {
	Address              common.Address
	Name                 string
	Type                 TokenType
	Balance              float64
	StakeFee             Fee
	UnstakeFee           Fee
	StakingApr           float64
	RewardToken          common.Address
	Admin                common.Address
	HasMultiTokenRewards bool
}

// StakerData is the connected wallet's position in one token.
type StakerData struct {
	WalletBalance         asset.Amount
	StakingBalance        asset.Amount
	RewardBalance         asset.Amount
	StakingRewardToken    common.Address
	TimestampLastRewarded int64
	TimestampAdded        int64
}

// EffectiveRewardToken returns the staker's chosen reward token, or fallback
// when none was ever set.
func (s StakerData) EffectiveRewardToken(fallback common.Address) common.Address {
	if s.StakingRewardToken == (common.Address{}) {
		return fallback
	}
	return s.StakingRewardToken
}

// Checkpoint is the timestamp rewards last accrued from.
func (s StakerData) Checkpoint() int64 {
	if s.TimestampLastRewarded > 0 {
		return s.TimestampLastRewarded
	}
	return s.TimestampAdded
}

// ActiveResult is one entry of a batched tokenIsActive read.
type ActiveResult struct {
	Address common.Address
	Active  bool
	Err     error
}
