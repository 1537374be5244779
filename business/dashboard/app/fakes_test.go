package app_test

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	blockchainDomain "github.com/fd1az/savvy-farm/business/blockchain/domain"
	"github.com/fd1az/savvy-farm/business/dashboard/app"
	dashboardDomain "github.com/fd1az/savvy-farm/business/dashboard/domain"
	farmDomain "github.com/fd1az/savvy-farm/business/farm/domain"
	pricingDomain "github.com/fd1az/savvy-farm/business/pricing/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/fd1az/savvy-farm/internal/logger"
)

var (
	svf    = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	busd   = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	cake   = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	wallet = common.HexToAddress("0x70997970C51812dc3A010C8d2B8cF9f7d8e8b3c0")
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func units(s string) asset.Amount {
	a, err := asset.ParseUnits(s, asset.TokenDecimals)
	if err != nil {
		panic(err)
	}
	return a
}

func metadata(addr common.Address, name string, apr float64, reward common.Address) farmDomain.TokenMetadata {
	return farmDomain.TokenMetadata{
		Address:     addr,
		Name:        name,
		Type:        farmDomain.TokenTypeSingle,
		Balance:     1000,
		StakeFee:    farmDomain.Fee{Dev: 0.5, Admin: 0.25},
		UnstakeFee:  farmDomain.Fee{Dev: 1, Admin: 1},
		StakingApr:  apr,
		RewardToken: reward,
	}
}

type writeCall struct {
	method string
	token  common.Address
	amount *big.Int
	reward common.Address
}

// fakeGateway serves canned reads and records writes. Write handles are
// resolved by autoFinish or left for the test to drive.
type fakeGateway struct {
	mu sync.Mutex

	list     []common.Address
	listErr  error
	inactive map[common.Address]bool
	activeEr map[common.Address]error
	meta     map[common.Address]farmDomain.TokenMetadata
	metaErr  map[common.Address]error
	stakers  map[common.Address]farmDomain.StakerData
	account  common.Address

	writes  []writeCall
	handles []*farmDomain.TxHandle
	// autoFinish resolves every write immediately with the given state.
	autoFinish farmDomain.TxState
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		inactive: make(map[common.Address]bool),
		activeEr: make(map[common.Address]error),
		meta:     make(map[common.Address]farmDomain.TokenMetadata),
		metaErr:  make(map[common.Address]error),
		stakers:  make(map[common.Address]farmDomain.StakerData),
	}
}

func (g *fakeGateway) ListTokenAddresses(ctx context.Context) ([]common.Address, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return []common.Address{}, g.listErr
	}
	return append([]common.Address(nil), g.list...), nil
}

func (g *fakeGateway) AreTokensActive(ctx context.Context, addrs []common.Address) []farmDomain.ActiveResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]farmDomain.ActiveResult, len(addrs))
	for i, a := range addrs {
		out[i] = farmDomain.ActiveResult{Address: a, Active: !g.inactive[a], Err: g.activeEr[a]}
	}
	return out
}

func (g *fakeGateway) GetTokenMetadata(ctx context.Context, token common.Address) (farmDomain.TokenMetadata, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.metaErr[token]; err != nil {
		return farmDomain.TokenMetadata{}, err
	}
	md, ok := g.meta[token]
	if !ok {
		return farmDomain.TokenMetadata{}, apperror.New(apperror.CodeContractReadFailed)
	}
	return md, nil
}

func (g *fakeGateway) GetStakerData(ctx context.Context, token, staker common.Address) (farmDomain.StakerData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stakers[token], nil
}

func (g *fakeGateway) write(c writeCall) *farmDomain.TxHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes = append(g.writes, c)
	h := farmDomain.NewTxHandle()
	g.handles = append(g.handles, h)

	switch g.autoFinish {
	case farmDomain.TxSuccess:
		h.Mining(c.method, common.HexToHash("0x01"))
		h.Succeed(c.method, common.HexToHash("0x01"))
	case farmDomain.TxFail:
		h.Mining(c.method, common.HexToHash("0x02"))
		h.Fail(c.method, common.HexToHash("0x02"), apperror.New(apperror.CodeTransactionReverted))
	case farmDomain.TxException:
		h.Except(c.method, apperror.New(apperror.CodeTransactionFailed))
	}
	return h
}

func (g *fakeGateway) Stake(ctx context.Context, token common.Address, amount *big.Int) *farmDomain.TxHandle {
	return g.write(writeCall{method: "stake", token: token, amount: amount})
}

func (g *fakeGateway) Unstake(ctx context.Context, token common.Address, amount *big.Int) *farmDomain.TxHandle {
	return g.write(writeCall{method: "unstake", token: token, amount: amount})
}

func (g *fakeGateway) WithdrawReward(ctx context.Context, token common.Address, amount *big.Int) *farmDomain.TxHandle {
	return g.write(writeCall{method: "withdrawReward", token: token, amount: amount})
}

func (g *fakeGateway) SetStakingRewardToken(ctx context.Context, token, rewardToken common.Address) *farmDomain.TxHandle {
	return g.write(writeCall{method: "setStakingRewardToken", token: token, reward: rewardToken})
}

func (g *fakeGateway) Farm() common.Address {
	return common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9")
}

func (g *fakeGateway) Account() common.Address { return g.account }

func (g *fakeGateway) CanSign() bool { return g.account != (common.Address{}) }

func (g *fakeGateway) writeCalls() []writeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]writeCall(nil), g.writes...)
}

func (g *fakeGateway) lastHandle() *farmDomain.TxHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.handles) == 0 {
		return nil
	}
	return g.handles[len(g.handles)-1]
}

// fakePrices answers synchronously from a table; missing tokens fail.
type fakePrices struct {
	mu     sync.Mutex
	prices map[common.Address]float64
}

func (p *fakePrices) FetchPrices(ctx context.Context, tokens []common.Address, fn func(pricingDomain.TokenPrice)) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tokens {
		price, ok := p.prices[t]
		tp := pricingDomain.TokenPrice{Address: t, Price: price, FetchedAt: time.Now()}
		if !ok {
			tp.Err = errors.New("no price")
		}
		fn(tp)
	}
	done := make(chan struct{})
	close(done)
	return done
}

type fakeBlocks struct {
	ch    chan *blockchainDomain.Block
	state blockchainDomain.ConnectionState
}

func (b *fakeBlocks) SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error) {
	return b.ch, nil
}

func (b *fakeBlocks) ConnectionState() blockchainDomain.ConnectionState {
	return b.state
}

type recordingReporter struct {
	mu       sync.Mutex
	statuses []bool
}

func (r *recordingReporter) Start(ctx context.Context) error { return nil }
func (r *recordingReporter) UpdateView(app.View)             {}
func (r *recordingReporter) Stop() error                     { return nil }

func (r *recordingReporter) UpdateAction(dashboardDomain.Action) {}

func (r *recordingReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, connected)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}
