package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/savvy-farm/business/farm/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
)

// txStep is one transaction of a logical write.
type txStep struct {
	contract *bind.BoundContract
	method   string
	args     []any
}

// Stake approves the farm to spend amount of token, then stakes it. Both
// transactions report through one handle and stake is never sent if the
// approval does not succeed.
func (g *Gateway) Stake(ctx context.Context, token common.Address, amount *big.Int) *domain.TxHandle {
	return g.write(ctx, token,
		txStep{contract: g.erc20(token), method: methodApprove, args: []any{g.cfg.Farm, amount}},
		txStep{contract: g.farm, method: methodStake, args: []any{token, amount}},
	)
}

// Unstake withdraws amount of token from the farm.
func (g *Gateway) Unstake(ctx context.Context, token common.Address, amount *big.Int) *domain.TxHandle {
	return g.write(ctx, token, txStep{contract: g.farm, method: methodUnstake, args: []any{token, amount}})
}

// WithdrawReward claims amount of accrued reward on token.
func (g *Gateway) WithdrawReward(ctx context.Context, token common.Address, amount *big.Int) *domain.TxHandle {
	return g.write(ctx, token, txStep{contract: g.farm, method: methodWithdrawReward, args: []any{token, amount}})
}

// SetStakingRewardToken selects the token rewards on token are paid in.
func (g *Gateway) SetStakingRewardToken(ctx context.Context, token, rewardToken common.Address) *domain.TxHandle {
	return g.write(ctx, token, txStep{contract: g.farm, method: methodSetStakingRewardToken, args: []any{token, rewardToken}})
}

func (g *Gateway) erc20(token common.Address) *bind.BoundContract {
	return bind.NewBoundContract(token, g.erc20ABI, g.backend, g.backend, g.backend)
}

// write runs steps in the background. The caller's cancellation is detached
// so a finished request does not abandon a transaction mid-flight.
func (g *Gateway) write(ctx context.Context, token common.Address, steps ...txStep) *domain.TxHandle {
	h := domain.NewTxHandle()
	go g.run(context.WithoutCancel(ctx), token, h, steps)
	return h
}

func (g *Gateway) run(ctx context.Context, token common.Address, h *domain.TxHandle, steps []txStep) {
	action := steps[len(steps)-1].method

	ctx, span := g.tracer.Start(ctx, "farm.write",
		trace.WithAttributes(
			attribute.String("action", action),
			attribute.String("token", token.Hex()),
		))
	defer span.End()

	if g.cfg.Key == nil {
		err := apperror.New(apperror.CodeWalletNotConnected,
			apperror.WithContext("no signing key configured"))
		span.RecordError(err)
		h.Except(steps[0].method, err)
		g.countTx(ctx, steps[0].method, domain.TxException)
		return
	}

	var last common.Hash
	for _, step := range steps {
		tx, err := g.submit(ctx, step)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submit failed")
			g.logger.Error(ctx, "farm transaction rejected", "step", step.method, "token", token.Hex(), "error", err)
			h.Except(step.method, err)
			g.countTx(ctx, step.method, domain.TxException)
			return
		}

		last = tx.Hash()
		h.Mining(step.method, last)
		span.AddEvent("submitted", trace.WithAttributes(
			attribute.String("step", step.method),
			attribute.String("hash", last.Hex()),
		))
		g.logger.Info(ctx, "farm transaction submitted", "step", step.method, "hash", last.Hex())

		if err := g.confirm(ctx, tx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "not confirmed")
			g.logger.Error(ctx, "farm transaction failed", "step", step.method, "hash", last.Hex(), "error", err)
			h.Fail(step.method, last, err)
			g.countTx(ctx, step.method, domain.TxFail)
			return
		}
		g.countTx(ctx, step.method, domain.TxSuccess)
	}

	span.SetStatus(codes.Ok, "mined")
	h.Succeed(action, last)
}

func (g *Gateway) submit(ctx context.Context, step txStep) (*types.Transaction, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(g.cfg.Key, g.cfg.ChainID)
	if err != nil {
		return nil, apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to build transactor"))
	}
	opts.Context = ctx

	if g.gas != nil {
		price, err := g.gas.GetGasPrice(ctx)
		if err != nil {
			g.logger.Warn(ctx, "gas oracle unavailable, using node suggestion", "error", err)
		} else {
			opts.GasPrice = price.Wei
		}
	}

	tx, err := step.contract.Transact(opts, step.method, step.args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to send %s", step.method)))
	}
	return tx, nil
}

// confirm waits for tx to be mined and checks its receipt status.
func (g *Gateway) confirm(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ReceiptTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, g.backend, tx)
	if err != nil {
		return apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext("waiting for "+tx.Hash().Hex()))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return apperror.New(apperror.CodeTransactionReverted,
			apperror.WithContext(tx.Hash().Hex()))
	}
	return nil
}

func (g *Gateway) countTx(ctx context.Context, step string, state domain.TxState) {
	g.metrics.txTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("state", string(state)),
	))
}
