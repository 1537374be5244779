package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxHandle_Lifecycle(t *testing.T) {
	h := NewTxHandle()
	assert.Equal(t, TxIdle, h.Status().State)

	approve := common.HexToHash("0x01")
	stake := common.HexToHash("0x02")

	h.Mining("approve", approve)
	h.Mining("stake", stake)
	h.Succeed("stake", stake)

	var states []TxState
	for st := range h.Updates() {
		states = append(states, st.State)
	}
	assert.Equal(t, []TxState{TxMining, TxMining, TxSuccess}, states)
	assert.Equal(t, []common.Hash{approve, stake}, h.Hashes())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, TxSuccess, st.State)
}

func TestTxHandle_TerminalIsFinal(t *testing.T) {
	h := NewTxHandle()
	h.Except("approve", errors.New("no signer"))
	h.Succeed("stake", common.HexToHash("0x02"))

	st := h.Status()
	assert.Equal(t, TxException, st.State)
	assert.EqualError(t, st.Err, "no signer")

	select {
	case <-h.Done():
	default:
		t.Fatal("expected done to be closed")
	}
}

func TestTxHandle_WaitHonoursContext(t *testing.T) {
	h := NewTxHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TxIdle, st.State)
}

func TestStakerData_Defaults(t *testing.T) {
	rewardToken := common.HexToAddress("0xAA")

	var s StakerData
	assert.Equal(t, rewardToken, s.EffectiveRewardToken(rewardToken))

	s.StakingRewardToken = common.HexToAddress("0xBB")
	assert.Equal(t, s.StakingRewardToken, s.EffectiveRewardToken(rewardToken))

	s.TimestampAdded = 100
	assert.Equal(t, int64(100), s.Checkpoint())
	s.TimestampLastRewarded = 200
	assert.Equal(t, int64(200), s.Checkpoint())
}
