package domain

import (
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	farmDomain "github.com/fd1az/savvy-farm/business/farm/domain"
	"github.com/fd1az/savvy-farm/internal/asset"
)

// Token is the normalized record for one active farm token. Every field
// except Address is recomputed on each aggregation.
type Token struct {
	Address              common.Address       `json:"address"`
	Name                 string               `json:"name"`
	Type                 farmDomain.TokenType `json:"type"`
	IconURL              string               `json:"iconUrl,omitempty"`
	Price                float64              `json:"price"`
	Balance              float64              `json:"balance"`
	StakeFee             float64              `json:"stakeFee"`
	UnstakeFee           float64              `json:"unstakeFee"`
	StakingApr           float64              `json:"stakingApr"`
	RewardToken          common.Address       `json:"rewardToken"`
	Admin                common.Address       `json:"admin"`
	HasMultiTokenRewards bool                 `json:"hasMultiTokenRewards"`
	// Loaded is set once metadata for the token has resolved.
	Loaded bool       `json:"loaded"`
	Staker StakerView `json:"stakerData"`
}

// StakerView is the connected wallet's position with its derived values. It
// is zero when no wallet is connected.
type StakerView struct {
	WalletBalance         asset.Amount   `json:"walletBalance"`
	StakingBalance        asset.Amount   `json:"stakingBalance"`
	RewardBalance         asset.Amount   `json:"rewardBalance"`
	StakingRewardToken    common.Address `json:"stakingRewardToken"`
	TimestampLastRewarded int64          `json:"timestampLastRewarded"`
	TimestampAdded        int64          `json:"timestampAdded"`

	StakingValue          float64 `json:"stakingValue"`
	ProjectedReward       float64 `json:"projectedReward"`
	ProjectedRewardAmount float64 `json:"projectedRewardAmount"`
}

// TypeName is the human label for the token type.
func (t Token) TypeName() string {
	return t.Type.String()
}

// LookupTokenByAddress returns the token whose address matches addr,
// ignoring hex case.
func LookupTokenByAddress(tokens []Token, addr string) (Token, bool) {
	addr = strings.TrimSpace(addr)
	for _, t := range tokens {
		if strings.EqualFold(t.Address.Hex(), addr) {
			return t, true
		}
	}
	return Token{}, false
}

// IconURL builds the icon reference for a token name under base.
func IconURL(base, name string) string {
	if base == "" || name == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(strings.ToLower(name)) + ".svg"
}
