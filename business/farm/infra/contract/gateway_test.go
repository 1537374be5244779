package contract

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/savvy-farm/business/farm/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/logger"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	farmAddr  = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	tokenA    = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB    = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenC    = common.HexToAddress("0x000000000000000000000000000000000000000c")
	walletHex = "0xf39Fd6e51aad88F6F4cE6aB8827279cffFb92266"
)

func e18(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1e18))
}

// fakeBackend answers contract calls by method name and mines every
// transaction immediately.
type fakeBackend struct {
	mu       sync.Mutex
	abis     []abi.ABI
	results  map[string][]any
	errs     map[string]error
	rawOut   map[string][]byte
	sendErr  error
	reverted func(tx *types.Transaction) bool
	sent     []*types.Transaction
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	farm, err := abi.JSON(strings.NewReader(FarmABI))
	require.NoError(t, err)
	erc20, err := abi.JSON(strings.NewReader(ERC20ABI))
	require.NoError(t, err)
	return &fakeBackend{
		abis:    []abi.ABI{farm, erc20},
		results: map[string][]any{},
		errs:    map[string]error{},
		rawOut:  map[string][]byte{},
	}
}

func (f *fakeBackend) method(input []byte) *abi.Method {
	for _, a := range f.abis {
		if m, err := a.MethodById(input[:4]); err == nil {
			return m
		}
	}
	return nil
}

func (f *fakeBackend) respond(input []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := f.method(input)
	if m == nil {
		return nil, errors.New("unknown method")
	}
	if err := f.errs[m.Name]; err != nil {
		return nil, err
	}
	if raw, ok := f.rawOut[m.Name]; ok {
		return raw, nil
	}
	if m.Name == methodTokenIsActive {
		args, _ := m.Inputs.Unpack(input[4:])
		if errs := f.errs[methodTokenIsActive+":"+args[0].(common.Address).Hex()]; errs != nil {
			return nil, errs
		}
		return m.Outputs.Pack(args[0].(common.Address) != tokenC)
	}
	return m.Outputs.Pack(f.results[m.Name]...)
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return f.respond(msg.Data)
}

func (f *fakeBackend) BatchCallContext(ctx context.Context, elems []rpc.BatchElem) error {
	for i := range elems {
		arg := elems[i].Args[0].(map[string]any)
		out, err := f.respond(arg["data"].(hexutil.Bytes))
		if err != nil {
			elems[i].Error = err
			continue
		}
		*elems[i].Result.(*hexutil.Bytes) = out
	}
	return nil
}

func (f *fakeBackend) CodeAt(ctx context.Context, a common.Address, n *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, n *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (f *fakeBackend) PendingCodeAt(ctx context.Context, a common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, a common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if f.reverted != nil && f.reverted(tx) {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(2)}, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (f *fakeBackend) sentTo() []common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]common.Address, len(f.sent))
	for i, tx := range f.sent {
		out[i] = *tx.To()
	}
	return out
}

func newTestGateway(t *testing.T, backend *fakeBackend, signer bool) *Gateway {
	t.Helper()
	cfg := Config{Farm: farmAddr, ChainID: big.NewInt(97), ReceiptTimeout: 5 * time.Second}
	if signer {
		key, err := crypto.HexToECDSA(testKeyHex)
		require.NoError(t, err)
		cfg.Key = key
	}
	g, err := NewGateway(cfg, backend, backend, nil, logger.New(io.Discard, logger.LevelError, "test", nil))
	require.NoError(t, err)
	return g
}

func waitTx(t *testing.T, h *domain.TxHandle) domain.TxStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := h.Wait(ctx)
	require.NoError(t, err)
	return st
}

func TestGateway_ListTokenAddresses(t *testing.T) {
	backend := newFakeBackend(t)
	backend.results[methodGetTokens] = []any{[]common.Address{tokenA, tokenB}}
	g := newTestGateway(t, backend, false)

	addrs, err := g.ListTokenAddresses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{tokenA, tokenB}, addrs)
}

func TestGateway_ListTokenAddressesFailureReturnsEmpty(t *testing.T) {
	backend := newFakeBackend(t)
	backend.errs[methodGetTokens] = errors.New("connection refused")
	g := newTestGateway(t, backend, false)

	addrs, err := g.ListTokenAddresses(context.Background())
	require.Error(t, err)
	assert.NotNil(t, addrs)
	assert.Empty(t, addrs)
	assert.Equal(t, apperror.CodeContractReadFailed, apperror.GetCode(err))
}

func TestGateway_AreTokensActiveIsolatesFailures(t *testing.T) {
	backend := newFakeBackend(t)
	backend.errs[methodTokenIsActive+":"+tokenB.Hex()] = errors.New("execution reverted")
	g := newTestGateway(t, backend, false)

	results := g.AreTokensActive(context.Background(), []common.Address{tokenA, tokenB, tokenC})
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.True(t, results[0].Active)

	assert.Error(t, results[1].Err)
	assert.Equal(t, tokenB, results[1].Address)

	assert.NoError(t, results[2].Err)
	assert.False(t, results[2].Active)
}

type failingBatch struct{}

func (failingBatch) BatchCallContext(ctx context.Context, elems []rpc.BatchElem) error {
	return errors.New("transport closed")
}

func TestGateway_AreTokensActiveBatchFailureMarksAll(t *testing.T) {
	backend := newFakeBackend(t)
	g := newTestGateway(t, backend, false)
	g.batch = failingBatch{}

	results := g.AreTokensActive(context.Background(), []common.Address{tokenA, tokenB})
	for _, r := range results {
		assert.Equal(t, apperror.CodeContractReadFailed, apperror.GetCode(r.Err))
	}
}

func TestGateway_GetTokenMetadata(t *testing.T) {
	backend := newFakeBackend(t)
	rewardToken := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	admin := common.HexToAddress("0x00000000000000000000000000000000000000ad")
	backend.results[methodTokensData] = []any{
		"Savvy", e18(2), e18(1500),
		e18(1), e18(2), new(big.Int).Div(e18(1), big.NewInt(2)), e18(0),
		e18(12), rewardToken, admin, true,
	}
	g := newTestGateway(t, backend, false)

	md, err := g.GetTokenMetadata(context.Background(), tokenA)
	require.NoError(t, err)

	assert.Equal(t, tokenA, md.Address)
	assert.Equal(t, "Savvy", md.Name)
	assert.Equal(t, domain.TokenTypeMultiReward, md.Type)
	assert.Equal(t, 1500.0, md.Balance)
	assert.Equal(t, 1.5, md.StakeFee.Total())
	assert.Equal(t, 2.0, md.UnstakeFee.Total())
	assert.Equal(t, 12.0, md.StakingApr)
	assert.Equal(t, rewardToken, md.RewardToken)
	assert.Equal(t, admin, md.Admin)
	assert.True(t, md.HasMultiTokenRewards)
}

func TestGateway_GetTokenMetadataRejectsMalformedTuple(t *testing.T) {
	backend := newFakeBackend(t)
	backend.rawOut[methodTokensData] = []byte{0x01, 0x02}
	g := newTestGateway(t, backend, false)

	_, err := g.GetTokenMetadata(context.Background(), tokenA)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidContractResponse, apperror.GetCode(err))
}

func TestDecodeTokenMetadata_ShapeErrors(t *testing.T) {
	_, err := decodeTokenMetadata(tokenA, []any{"only name"})
	assert.Equal(t, apperror.CodeInvalidContractResponse, apperror.GetCode(err))

	values := []any{
		"Savvy", "not a number", e18(1), e18(0), e18(0), e18(0), e18(0),
		e18(1), common.Address{}, common.Address{}, false,
	}
	_, err = decodeTokenMetadata(tokenA, values)
	require.Error(t, err)
	assert.Contains(t, errors.Unwrap(err).Error(), "field 1")
}

func TestGateway_GetStakerData(t *testing.T) {
	backend := newFakeBackend(t)
	half := new(big.Int).Div(e18(1), big.NewInt(2))
	backend.results[methodStakerData] = []any{
		new(big.Int).Add(e18(42), half), e18(3), common.Address{}, big.NewInt(1700000000), big.NewInt(1690000000),
	}
	backend.results[methodBalanceOf] = []any{e18(7)}
	g := newTestGateway(t, backend, false)

	sd, err := g.GetStakerData(context.Background(), tokenA, common.HexToAddress(walletHex))
	require.NoError(t, err)

	assert.Equal(t, "42.5", sd.StakingBalance.String())
	assert.Equal(t, "3", sd.RewardBalance.String())
	assert.Equal(t, "7", sd.WalletBalance.String())
	assert.Equal(t, int64(1700000000), sd.TimestampLastRewarded)
	assert.Equal(t, int64(1690000000), sd.TimestampAdded)

	_, err = g.GetStakerData(context.Background(), tokenA, common.Address{})
	assert.Equal(t, apperror.CodeWalletNotConnected, apperror.GetCode(err))
}

func TestGateway_StakeApprovesThenStakes(t *testing.T) {
	backend := newFakeBackend(t)
	g := newTestGateway(t, backend, true)
	assert.Equal(t, common.HexToAddress(walletHex), g.Account())

	h := g.Stake(context.Background(), tokenA, e18(5))
	st := waitTx(t, h)

	assert.Equal(t, domain.TxSuccess, st.State)
	assert.Equal(t, methodStake, st.Step)
	assert.Equal(t, []common.Address{tokenA, farmAddr}, backend.sentTo())
	assert.Len(t, h.Hashes(), 2)
}

func TestGateway_FailedApprovePreventsStake(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reverted = func(tx *types.Transaction) bool { return *tx.To() == tokenA }
	g := newTestGateway(t, backend, true)

	st := waitTx(t, g.Stake(context.Background(), tokenA, e18(5)))

	assert.Equal(t, domain.TxFail, st.State)
	assert.Equal(t, methodApprove, st.Step)
	assert.Equal(t, apperror.CodeTransactionReverted, apperror.GetCode(st.Err))
	assert.Equal(t, []common.Address{tokenA}, backend.sentTo())
}

func TestGateway_WriteRejectedIsException(t *testing.T) {
	backend := newFakeBackend(t)
	backend.sendErr = errors.New("insufficient funds for gas")
	g := newTestGateway(t, backend, true)

	st := waitTx(t, g.Unstake(context.Background(), tokenA, e18(1)))
	assert.Equal(t, domain.TxException, st.State)
	assert.Equal(t, apperror.CodeTransactionFailed, apperror.GetCode(st.Err))
}

func TestGateway_WriteWithoutSignerIsException(t *testing.T) {
	backend := newFakeBackend(t)
	g := newTestGateway(t, backend, false)

	st := waitTx(t, g.SetStakingRewardToken(context.Background(), tokenA, tokenB))
	assert.Equal(t, domain.TxException, st.State)
	assert.Equal(t, apperror.CodeWalletNotConnected, apperror.GetCode(st.Err))
	assert.Empty(t, backend.sentTo())
}

func TestGateway_WithdrawRewardSendsToFarm(t *testing.T) {
	backend := newFakeBackend(t)
	g := newTestGateway(t, backend, true)

	st := waitTx(t, g.WithdrawReward(context.Background(), tokenA, e18(1)))
	assert.Equal(t, domain.TxSuccess, st.State)
	assert.Equal(t, methodWithdrawReward, st.Step)
	assert.Equal(t, []common.Address{farmAddr}, backend.sentTo())
}
