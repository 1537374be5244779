package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blockchainDomain "github.com/fd1az/savvy-farm/business/blockchain/domain"
	"github.com/fd1az/savvy-farm/business/dashboard/app"
	farmDomain "github.com/fd1az/savvy-farm/business/farm/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
)

func newRefreshFixture(t *testing.T) (*fakeGateway, *fakePrices, *app.Aggregator, *app.Refresher) {
	t.Helper()

	gw := newFakeGateway()
	gw.list = []common.Address{svf, busd, cake}
	gw.inactive[cake] = true
	gw.meta[svf] = metadata(svf, "SVF", 10, busd)
	gw.meta[busd] = metadata(busd, "BUSD", 5, busd)
	gw.account = wallet
	gw.stakers[svf] = farmDomain.StakerData{
		StakingBalance: units("42.5"),
		WalletBalance:  units("7"),
		TimestampAdded: time.Now().Unix() - 86_400,
	}

	prices := &fakePrices{prices: map[common.Address]float64{svf: 2, busd: 1}}
	agg := app.NewAggregator(app.AggregatorConfig{Wallet: wallet})
	r := app.NewRefresher(gw, prices, nil, agg, app.DefaultRefresherConfig(), testLogger())

	return gw, prices, agg, r
}

func TestRefresher_Refresh(t *testing.T) {
	_, _, agg, r := newRefreshFixture(t)

	require.NoError(t, r.Refresh(context.Background()))

	view := agg.View()
	assert.True(t, view.Ready)
	require.Len(t, view.Tokens, 2, "inactive token is dropped")

	tok, ok := agg.LookupTokenByAddress(svf.Hex())
	require.True(t, ok)
	assert.Equal(t, 2.0, tok.Price)
	assert.Equal(t, "42.5", tok.Staker.StakingBalance.String())
	assert.Equal(t, 85.0, tok.Staker.StakingValue)
	assert.Greater(t, tok.Staker.ProjectedReward, 0.0)
}

func TestRefresher_ListFailureKeepsSnapshot(t *testing.T) {
	gw, _, agg, r := newRefreshFixture(t)
	require.NoError(t, r.Refresh(context.Background()))
	before := agg.View()

	gw.mu.Lock()
	gw.listErr = errors.New("node down")
	gw.mu.Unlock()

	assert.Error(t, r.Refresh(context.Background()))
	assert.Equal(t, before.Generation, agg.View().Generation)
	assert.Len(t, agg.View().Tokens, 2)
}

func TestRefresher_ActiveCheckErrorKeepsTrackedOnly(t *testing.T) {
	gw, _, agg, r := newRefreshFixture(t)
	require.NoError(t, r.Refresh(context.Background()))

	gw.mu.Lock()
	gw.activeEr[svf] = errors.New("batch entry failed")
	gw.activeEr[cake] = errors.New("batch entry failed")
	gw.mu.Unlock()

	require.NoError(t, r.Refresh(context.Background()))

	assert.True(t, agg.IsTracked(svf), "previously tracked address survives")
	assert.False(t, agg.IsTracked(cake), "unknown address is not added on error")
}

func TestRefresher_FailedActiveBatchOnFirstCycleIsNotReady(t *testing.T) {
	gw, _, agg, r := newRefreshFixture(t)
	for _, a := range gw.list {
		gw.activeEr[a] = errors.New("batch rejected")
	}

	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsReadError(err))

	assert.False(t, agg.Ready())
	assert.Equal(t, uint64(0), agg.View().Generation)
	assert.Empty(t, agg.View().Tokens)

	gw.mu.Lock()
	clear(gw.activeEr)
	gw.mu.Unlock()

	require.NoError(t, r.Refresh(context.Background()))
	assert.True(t, agg.Ready())
	assert.Len(t, agg.View().Tokens, 2)
}

func TestRefresher_FailedActiveBatchKeepsSnapshot(t *testing.T) {
	gw, _, agg, r := newRefreshFixture(t)
	require.NoError(t, r.Refresh(context.Background()))
	before := agg.View()

	gw.mu.Lock()
	for _, a := range gw.list {
		gw.activeEr[a] = errors.New("batch rejected")
	}
	gw.mu.Unlock()

	assert.Error(t, r.Refresh(context.Background()))
	assert.Equal(t, before.Generation, agg.View().Generation)
	assert.Len(t, agg.View().Tokens, 2)
}

func TestRefresher_MetadataFailureKeepsPrevious(t *testing.T) {
	gw, _, agg, r := newRefreshFixture(t)
	require.NoError(t, r.Refresh(context.Background()))

	gw.mu.Lock()
	gw.metaErr[svf] = errors.New("call reverted")
	gw.mu.Unlock()

	require.NoError(t, r.Refresh(context.Background()))

	tok, ok := agg.LookupTokenByAddress(svf.Hex())
	require.True(t, ok)
	assert.Equal(t, "SVF", tok.Name)
	assert.True(t, agg.Ready())
}

func TestRefresher_NoWalletSkipsStakerReads(t *testing.T) {
	gw, _, agg, r := newRefreshFixture(t)
	gw.account = common.Address{}

	require.NoError(t, r.Refresh(context.Background()))

	tok, ok := agg.LookupTokenByAddress(svf.Hex())
	require.True(t, ok)
	assert.True(t, tok.Staker.StakingBalance.IsZero())
}

func TestRefresher_StartRefreshesOnBlocks(t *testing.T) {
	gw, prices, agg, _ := newRefreshFixture(t)
	blocks := &fakeBlocks{ch: make(chan *blockchainDomain.Block, 1), state: blockchainDomain.StateConnected}
	rep := &recordingReporter{}

	cfg := app.DefaultRefresherConfig()
	cfg.MinSpacing = 0
	r := app.NewRefresher(gw, prices, blocks, agg, cfg, testLogger(), rep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	assert.ErrorIs(t, r.Start(ctx), app.ErrRefresherStarted)

	require.Eventually(t, agg.Ready, time.Second, 10*time.Millisecond)
	first := agg.View().Generation

	blocks.ch <- &blockchainDomain.Block{Number: 100, Timestamp: time.Now()}
	require.Eventually(t, func() bool {
		return agg.View().Generation > first
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rep.count())

	r.Trigger()
	require.Eventually(t, func() bool {
		return agg.View().Generation > first+1
	}, time.Second, 10*time.Millisecond)

	cancel()
	r.Wait()
}
