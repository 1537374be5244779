// Package contract implements the farm Gateway over go-ethereum.
package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	bcdomain "github.com/fd1az/savvy-farm/business/blockchain/domain"
	"github.com/fd1az/savvy-farm/business/farm/app"
	"github.com/fd1az/savvy-farm/business/farm/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/circuitbreaker"
	"github.com/fd1az/savvy-farm/internal/logger"
)

const (
	tracerName = "github.com/fd1az/savvy-farm/business/farm/infra/contract"
	meterName  = "github.com/fd1az/savvy-farm/business/farm/infra/contract"
)

// Ensure Gateway implements app.Gateway.
var _ app.Gateway = (*Gateway)(nil)

// Backend is satisfied by *ethclient.Client.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// BatchCaller is satisfied by *rpc.Client.
type BatchCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// GasPricer supplies the gas price for writes.
type GasPricer interface {
	GetGasPrice(ctx context.Context) (*bcdomain.GasPrice, error)
}

// Config configures a Gateway.
type Config struct {
	Farm    common.Address
	ChainID *big.Int
	// Key signs writes; nil makes the gateway read-only.
	Key *ecdsa.PrivateKey
	// Account is the watched wallet when Key is nil.
	Account        common.Address
	ReceiptTimeout time.Duration
}

type gatewayMetrics struct {
	readsTotal  metric.Int64Counter
	readErrors  metric.Int64Counter
	readLatency metric.Float64Histogram
	txTotal     metric.Int64Counter
}

// Gateway reads from and writes to the farm contract.
type Gateway struct {
	cfg     Config
	account common.Address
	backend Backend
	batch   BatchCaller
	gas     GasPricer
	logger  logger.LoggerInterface

	farmABI  abi.ABI
	erc20ABI abi.ABI
	farm     *bind.BoundContract

	readCB  *circuitbreaker.CircuitBreaker[[]byte]
	batchCB *circuitbreaker.CircuitBreaker[struct{}]

	tracer  trace.Tracer
	metrics *gatewayMetrics
}

// NewGateway creates a farm gateway. batch and gas may be nil; without batch
// the active check falls back to one call per token.
func NewGateway(cfg Config, backend Backend, batch BatchCaller, gas GasPricer, log logger.LoggerInterface) (*Gateway, error) {
	farmABI, err := abi.JSON(strings.NewReader(FarmABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse farm ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}

	account := cfg.Account
	if cfg.Key != nil {
		if cfg.ChainID == nil {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("chain id is required to sign farm transactions"))
		}
		account = crypto.PubkeyToAddress(cfg.Key.PublicKey)
	}

	g := &Gateway{
		cfg:      cfg,
		account:  account,
		backend:  backend,
		batch:    batch,
		gas:      gas,
		logger:   log,
		farmABI:  farmABI,
		erc20ABI: erc20ABI,
		farm:     bind.NewBoundContract(cfg.Farm, farmABI, backend, backend, backend),
		tracer:   otel.Tracer(tracerName),
	}

	readCfg := circuitbreaker.DefaultConfig("farm-read")
	readCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) }
	readCfg.OnStateChange = g.logBreaker
	g.readCB = circuitbreaker.New[[]byte](readCfg)

	batchCfg := circuitbreaker.DefaultConfig("farm-batch")
	batchCfg.OnStateChange = g.logBreaker
	g.batchCB = circuitbreaker.New[struct{}](batchCfg)

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return g, nil
}

func (g *Gateway) logBreaker(name string, from, to gobreaker.State) {
	g.logger.Info(context.Background(), "circuit breaker state change",
		"breaker", name, "from", from.String(), "to", to.String())
}

func (g *Gateway) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gatewayMetrics{}

	g.metrics.readsTotal, err = meter.Int64Counter(
		"farm_reads_total",
		metric.WithDescription("Total farm contract reads"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	g.metrics.readErrors, err = meter.Int64Counter(
		"farm_read_errors_total",
		metric.WithDescription("Total failed farm contract reads"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	g.metrics.readLatency, err = meter.Float64Histogram(
		"farm_read_latency_ms",
		metric.WithDescription("Farm contract read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	g.metrics.txTotal, err = meter.Int64Counter(
		"farm_transactions_total",
		metric.WithDescription("Farm writes by step and outcome"),
		metric.WithUnit("{tx}"),
	)
	return err
}

// Farm returns the contract address.
func (g *Gateway) Farm() common.Address {
	return g.cfg.Farm
}

// Account returns the connected wallet.
func (g *Gateway) Account() common.Address {
	return g.account
}

// CanSign reports whether a signing key is configured.
func (g *Gateway) CanSign() bool {
	return g.cfg.Key != nil
}

// ListTokenAddresses returns every token registered on the farm.
func (g *Gateway) ListTokenAddresses(ctx context.Context) ([]common.Address, error) {
	ctx, span := g.tracer.Start(ctx, "farm.list_tokens")
	defer span.End()

	values, err := g.call(ctx, g.cfg.Farm, g.farmABI, methodGetTokens)
	var addrs []common.Address
	if err == nil {
		addrs, err = decodeSingle[[]common.Address](methodGetTokens, values)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		g.logger.Error(ctx, "failed to list farm tokens", "farm", g.cfg.Farm.Hex(), "error", err)
		return []common.Address{}, err
	}

	span.SetAttributes(attribute.Int("tokens", len(addrs)))
	return addrs, nil
}

// AreTokensActive resolves tokenIsActive for every address in one JSON-RPC
// batch. Entries fail independently.
func (g *Gateway) AreTokensActive(ctx context.Context, addrs []common.Address) []domain.ActiveResult {
	ctx, span := g.tracer.Start(ctx, "farm.tokens_active",
		trace.WithAttributes(attribute.Int("tokens", len(addrs))))
	defer span.End()

	results := make([]domain.ActiveResult, len(addrs))
	for i, a := range addrs {
		results[i].Address = a
	}
	if len(addrs) == 0 {
		return results
	}

	if g.batch == nil {
		for i, a := range addrs {
			values, err := g.call(ctx, g.cfg.Farm, g.farmABI, methodTokenIsActive, a)
			if err == nil {
				results[i].Active, err = decodeSingle[bool](methodTokenIsActive, values)
			}
			results[i].Err = err
		}
		return results
	}

	elems := make([]rpc.BatchElem, 0, len(addrs))
	outs := make([]hexutil.Bytes, len(addrs))
	index := make([]int, 0, len(addrs))

	for i, a := range addrs {
		data, err := g.farmABI.Pack(methodTokenIsActive, a)
		if err != nil {
			results[i].Err = apperror.New(apperror.CodeContractReadFailed, apperror.WithCause(err))
			continue
		}
		elems = append(elems, rpc.BatchElem{
			Method: "eth_call",
			Args:   []any{callArg(g.cfg.Farm, data), "latest"},
			Result: &outs[i],
		})
		index = append(index, i)
	}

	g.metrics.readsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("method", methodTokenIsActive)))
	start := time.Now()

	_, err := g.batchCB.Execute(func() (struct{}, error) {
		return struct{}{}, g.batch.BatchCallContext(ctx, elems)
	})
	g.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("method", methodTokenIsActive)))

	if err != nil {
		g.metrics.readErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", methodTokenIsActive)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		g.logger.Error(ctx, "active check batch failed", "tokens", len(addrs), "error", err)

		wrapped := readError(methodTokenIsActive, err)
		for _, i := range index {
			results[i].Err = wrapped
		}
		return results
	}

	failed := 0
	for k, el := range elems {
		i := index[k]
		if el.Error != nil {
			results[i].Err = readError(methodTokenIsActive, el.Error)
			failed++
			continue
		}

		values, err := g.farmABI.Unpack(methodTokenIsActive, outs[i])
		if err != nil {
			results[i].Err = apperror.New(apperror.CodeInvalidContractResponse,
				apperror.WithCause(err),
				apperror.WithContext(methodTokenIsActive))
			failed++
			continue
		}
		results[i].Active, results[i].Err = decodeSingle[bool](methodTokenIsActive, values)
		if results[i].Err != nil {
			failed++
		}
	}

	if failed > 0 {
		span.AddEvent("partial_failure", trace.WithAttributes(attribute.Int("failed", failed)))
		g.logger.Warn(ctx, "active check partially failed", "failed", failed, "tokens", len(addrs))
	}

	return results
}

// GetTokenMetadata reads and strictly decodes tokensData(token).
func (g *Gateway) GetTokenMetadata(ctx context.Context, token common.Address) (domain.TokenMetadata, error) {
	ctx, span := g.tracer.Start(ctx, "farm.token_metadata",
		trace.WithAttributes(attribute.String("token", token.Hex())))
	defer span.End()

	values, err := g.call(ctx, g.cfg.Farm, g.farmABI, methodTokensData, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		g.logger.Warn(ctx, "token metadata read failed", "token", token.Hex(), "error", err)
		return domain.TokenMetadata{}, err
	}

	md, err := decodeTokenMetadata(token, values)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		g.logger.Warn(ctx, "token metadata malformed", "token", token.Hex(), "error", err)
		return domain.TokenMetadata{}, err
	}

	return md, nil
}

// GetStakerData reads staker's position in token and their wallet balance.
func (g *Gateway) GetStakerData(ctx context.Context, token, staker common.Address) (domain.StakerData, error) {
	ctx, span := g.tracer.Start(ctx, "farm.staker_data",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("staker", staker.Hex()),
		))
	defer span.End()

	if staker == (common.Address{}) {
		return domain.StakerData{}, apperror.New(apperror.CodeWalletNotConnected)
	}

	values, err := g.call(ctx, g.cfg.Farm, g.farmABI, methodStakerData, token, staker)
	if err != nil {
		span.RecordError(err)
		g.logger.Warn(ctx, "staker data read failed", "token", token.Hex(), "error", err)
		return domain.StakerData{}, err
	}

	balValues, err := g.call(ctx, token, g.erc20ABI, methodBalanceOf, staker)
	var balance *big.Int
	if err == nil {
		balance, err = decodeSingle[*big.Int](methodBalanceOf, balValues)
	}
	if err != nil {
		span.RecordError(err)
		g.logger.Warn(ctx, "wallet balance read failed", "token", token.Hex(), "error", err)
		return domain.StakerData{}, err
	}

	sd, err := decodeStakerData(values, balance)
	if err != nil {
		span.RecordError(err)
		g.logger.Warn(ctx, "staker data malformed", "token", token.Hex(), "error", err)
		return domain.StakerData{}, err
	}

	return sd, nil
}

// call packs, executes and unpacks a read-only call.
func (g *Gateway) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	attrs := metric.WithAttributes(attribute.String("method", method))

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractReadFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to encode "+method))
	}

	g.metrics.readsTotal.Add(ctx, 1, attrs)
	start := time.Now()

	out, err := g.readCB.Execute(func() ([]byte, error) {
		return g.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	g.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		g.metrics.readErrors.Add(ctx, 1, attrs)
		return nil, readError(method, err)
	}

	values, err := parsed.Unpack(method, out)
	if err != nil {
		g.metrics.readErrors.Add(ctx, 1, attrs)
		return nil, apperror.New(apperror.CodeInvalidContractResponse,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}

	return values, nil
}

func readError(method string, err error) error {
	if apperror.GetCode(err) == apperror.CodeCircuitOpen {
		return err
	}
	return apperror.New(apperror.CodeContractReadFailed,
		apperror.WithCause(err),
		apperror.WithContext(method))
}

// callArg mirrors the eth_call transaction object ethclient sends.
func callArg(to common.Address, data []byte) map[string]any {
	return map[string]any{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
}

func isRevert(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}
