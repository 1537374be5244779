package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/savvy-farm/business/farm/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/asset"
)

const (
	tokensDataFields = 11
	stakerDataFields = 5
)

// tuple gives typed positional access to unpacked ABI outputs. The first
// mismatch is kept and reported by err.
type tuple struct {
	method string
	values []any
	fail   error
}

func newTuple(method string, values []any, want int) *tuple {
	t := &tuple{method: method, values: values}
	if len(values) != want {
		t.fail = fmt.Errorf("%s: expected %d fields, got %d", method, want, len(values))
	}
	return t
}

func (t *tuple) bigInt(i int) *big.Int {
	v, ok := t.at(i).(*big.Int)
	if !ok {
		t.mismatch(i, "uint256")
		return new(big.Int)
	}
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (t *tuple) address(i int) common.Address {
	v, ok := t.at(i).(common.Address)
	if !ok {
		t.mismatch(i, "address")
	}
	return v
}

func (t *tuple) str(i int) string {
	v, ok := t.at(i).(string)
	if !ok {
		t.mismatch(i, "string")
	}
	return v
}

func (t *tuple) boolean(i int) bool {
	v, ok := t.at(i).(bool)
	if !ok {
		t.mismatch(i, "bool")
	}
	return v
}

func (t *tuple) at(i int) any {
	if t.fail != nil || i >= len(t.values) {
		return nil
	}
	return t.values[i]
}

func (t *tuple) mismatch(i int, want string) {
	if t.fail == nil {
		t.fail = fmt.Errorf("%s: field %d is %T, want %s", t.method, i, t.values[i], want)
	}
}

func (t *tuple) err() error {
	if t.fail == nil {
		return nil
	}
	return apperror.New(apperror.CodeInvalidContractResponse,
		apperror.WithCause(t.fail),
		apperror.WithContext(t.method))
}

// fixed converts an 18-decimal fixed-point integer to float64.
func fixed(v *big.Int) float64 {
	return asset.FormatUnits(v, asset.TokenDecimals)
}

func decodeTokenMetadata(token common.Address, values []any) (domain.TokenMetadata, error) {
	t := newTuple(methodTokensData, values, tokensDataFields)

	md := domain.TokenMetadata{
		Address:              token,
		Name:                 t.str(0),
		Type:                 domain.TokenType(fixed(t.bigInt(1))),
		Balance:              fixed(t.bigInt(2)),
		StakeFee:             domain.Fee{Dev: fixed(t.bigInt(3)), Admin: fixed(t.bigInt(5))},
		UnstakeFee:           domain.Fee{Dev: fixed(t.bigInt(4)), Admin: fixed(t.bigInt(6))},
		StakingApr:           fixed(t.bigInt(7)),
		RewardToken:          t.address(8),
		Admin:                t.address(9),
		HasMultiTokenRewards: t.boolean(10),
	}

	if err := t.err(); err != nil {
		return domain.TokenMetadata{}, err
	}
	return md, nil
}

// decodeStakerData decodes stakerData outputs; walletBalance comes from a
// separate balanceOf read.
func decodeStakerData(values []any, walletBalance *big.Int) (domain.StakerData, error) {
	t := newTuple(methodStakerData, values, stakerDataFields)

	sd := domain.StakerData{
		WalletBalance:         asset.FromWei(walletBalance),
		StakingBalance:        asset.FromWei(t.bigInt(0)),
		RewardBalance:         asset.FromWei(t.bigInt(1)),
		StakingRewardToken:    t.address(2),
		TimestampLastRewarded: unixSeconds(t.bigInt(3)),
		TimestampAdded:        unixSeconds(t.bigInt(4)),
	}

	if err := t.err(); err != nil {
		return domain.StakerData{}, err
	}
	return sd, nil
}

func unixSeconds(v *big.Int) int64 {
	if !v.IsInt64() {
		return 0
	}
	return v.Int64()
}

func decodeSingle[T any](method string, values []any) (T, error) {
	var zero T
	if len(values) != 1 {
		return zero, apperror.New(apperror.CodeInvalidContractResponse,
			apperror.WithContext(fmt.Sprintf("%s: expected 1 field, got %d", method, len(values))))
	}
	v, ok := values[0].(T)
	if !ok {
		return zero, apperror.New(apperror.CodeInvalidContractResponse,
			apperror.WithContext(fmt.Sprintf("%s: field is %T", method, values[0])))
	}
	return v, nil
}
