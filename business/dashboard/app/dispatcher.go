package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/fd1az/savvy-farm/business/dashboard/domain"
	farmApp "github.com/fd1az/savvy-farm/business/farm/app"
	farmDomain "github.com/fd1az/savvy-farm/business/farm/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/asset"
	"github.com/fd1az/savvy-farm/internal/logger"
)

type actionKey struct {
	token common.Address
	kind  domain.ActionKind
}

// Dispatcher turns user action requests into gateway writes and tracks each
// one through Idle, Submitted, Mining and finally Success or Failed.
type Dispatcher struct {
	gateway    farmApp.Gateway
	aggregator *Aggregator
	onSuccess  func()
	logger     logger.LoggerInterface
	newID      func() string
	txLink     func(common.Hash) string

	mu      sync.Mutex
	actions map[string]*domain.Action
	order   []string
	latest  map[actionKey]string
	subs    []chan domain.Action
	closed  bool
	wg      sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTxLink sets the explorer link builder used for Action.TxURL.
func WithTxLink(fn func(common.Hash) string) DispatcherOption {
	return func(d *Dispatcher) {
		d.txLink = fn
	}
}

// NewDispatcher creates a Dispatcher. onSuccess, when set, runs after every
// successful action; the module wires it to an immediate refresh.
func NewDispatcher(gateway farmApp.Gateway, aggregator *Aggregator, onSuccess func(), log logger.LoggerInterface, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		gateway:    gateway,
		aggregator: aggregator,
		onSuccess:  onSuccess,
		logger:     log,
		newID:      uuid.NewString,
		actions:    make(map[string]*domain.Action),
		latest:     make(map[actionKey]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates req and issues exactly one gateway write. Invalid input
// is rejected with a validation error before the gateway is contacted.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.ActionRequest) (domain.Action, error) {
	token, ok := d.aggregator.LookupTokenByAddress(req.Token)
	if !ok {
		return domain.Action{}, apperror.NotFound(apperror.CodeTokenNotFound, req.Token)
	}

	kind, err := domain.ParseActionKind(string(req.Kind))
	if err != nil {
		return domain.Action{}, apperror.Validation(apperror.CodeValidationError, err.Error())
	}

	var amount asset.Amount
	if kind.TakesAmount() {
		amount, err = asset.ParsePositiveUnits(req.Amount, asset.TokenDecimals)
		if err != nil {
			return domain.Action{}, apperror.New(apperror.CodeInvalidAmount,
				apperror.WithContext(fmt.Sprintf("%q", req.Amount)),
				apperror.WithCause(err))
		}
	}

	var reward common.Address
	if kind == domain.ActionChangeRewardToken {
		rt, ok := d.aggregator.LookupTokenByAddress(req.RewardToken)
		if !ok {
			return domain.Action{}, apperror.Validation(apperror.CodeTokenNotFound, "reward token "+req.RewardToken)
		}
		reward = rt.Address
	}

	now := time.Now()
	action := &domain.Action{
		ID:          d.newID(),
		Token:       token.Address,
		Kind:        kind,
		RewardToken: reward,
		State:       domain.ActionSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if kind.TakesAmount() {
		action.Amount = amount.String()
	}

	key := actionKey{token.Address, kind}

	d.mu.Lock()
	if id, ok := d.latest[key]; ok && d.actions[id].State.InFlight() {
		d.mu.Unlock()
		return domain.Action{}, apperror.Conflict(apperror.CodeActionInProgress,
			fmt.Sprintf("%s %s", kind, token.Address.Hex()))
	}
	d.actions[action.ID] = action
	d.order = append(d.order, action.ID)
	d.latest[key] = action.ID
	snapshot := d.copyLocked(action)
	d.mu.Unlock()

	d.logger.Info(ctx, "dispatching action",
		"id", action.ID,
		"kind", string(kind),
		"token", token.Address.Hex(),
		"amount", action.Amount,
	)
	d.publish(snapshot)

	var handle *farmDomain.TxHandle
	switch kind {
	case domain.ActionStake:
		handle = d.gateway.Stake(ctx, token.Address, amount.Raw())
	case domain.ActionUnstake:
		handle = d.gateway.Unstake(ctx, token.Address, amount.Raw())
	case domain.ActionWithdrawReward:
		handle = d.gateway.WithdrawReward(ctx, token.Address, amount.Raw())
	case domain.ActionChangeRewardToken:
		handle = d.gateway.SetStakingRewardToken(ctx, token.Address, reward)
	}

	d.wg.Add(1)
	go d.track(context.WithoutCancel(ctx), action.ID, handle)

	return snapshot, nil
}

func (d *Dispatcher) track(ctx context.Context, id string, handle *farmDomain.TxHandle) {
	defer d.wg.Done()

	for st := range handle.Updates() {
		d.transition(ctx, id, st, handle.Hashes())
	}
	// Updates may drop transitions; the final status is authoritative.
	d.transition(ctx, id, handle.Status(), handle.Hashes())
}

func (d *Dispatcher) transition(ctx context.Context, id string, st farmDomain.TxStatus, hashes []common.Hash) {
	d.mu.Lock()
	action, ok := d.actions[id]
	if !ok || action.State == domain.ActionSuccess || action.State == domain.ActionFailed {
		d.mu.Unlock()
		return
	}

	switch st.State {
	case farmDomain.TxMining:
		action.State = domain.ActionMining
	case farmDomain.TxSuccess:
		action.State = domain.ActionSuccess
	case farmDomain.TxFail, farmDomain.TxException:
		action.State = domain.ActionFailed
	default:
		d.mu.Unlock()
		return
	}
	action.Step = st.Step
	action.TxState = string(st.State)
	action.TxHashes = hashes
	if n := len(hashes); n > 0 && d.txLink != nil {
		action.TxURL = d.txLink(hashes[n-1])
	}
	if st.Err != nil {
		action.Error = st.Err.Error()
	}
	action.UpdatedAt = time.Now()
	snapshot := d.copyLocked(action)
	d.mu.Unlock()

	switch snapshot.State {
	case domain.ActionSuccess:
		d.logger.Info(ctx, "action succeeded", "id", id, "kind", string(snapshot.Kind), "token", snapshot.Token.Hex())
	case domain.ActionFailed:
		d.logger.Warn(ctx, "action failed", "id", id, "kind", string(snapshot.Kind), "txState", snapshot.TxState, "error", snapshot.Error)
	}

	d.publish(snapshot)

	if snapshot.State == domain.ActionSuccess && d.onSuccess != nil {
		d.onSuccess()
	}
}

// MaxAmount returns the largest amount for kind on token, read from the
// current view: wallet balance for stake, staking balance for unstake and
// reward balance for withdraw reward.
func (d *Dispatcher) MaxAmount(kind domain.ActionKind, tokenAddr string) (string, error) {
	token, ok := d.aggregator.LookupTokenByAddress(tokenAddr)
	if !ok {
		return "", apperror.NotFound(apperror.CodeTokenNotFound, tokenAddr)
	}

	switch kind {
	case domain.ActionStake:
		return token.Staker.WalletBalance.String(), nil
	case domain.ActionUnstake:
		return token.Staker.StakingBalance.String(), nil
	case domain.ActionWithdrawReward:
		return token.Staker.RewardBalance.String(), nil
	default:
		return "", apperror.Validation(apperror.CodeValidationError, fmt.Sprintf("%q has no amount", kind))
	}
}

// Action returns the action with id.
func (d *Dispatcher) Action(id string) (domain.Action, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.actions[id]
	if !ok {
		return domain.Action{}, false
	}
	return d.copyLocked(a), true
}

// State returns the state of the latest action of kind on token, Idle when
// there was none. Failed stays until a new action is dispatched.
func (d *Dispatcher) State(token common.Address, kind domain.ActionKind) domain.ActionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.latest[actionKey{token, kind}]
	if !ok {
		return domain.ActionIdle
	}
	return d.actions[id].State
}

// Actions returns every dispatched action, newest first.
func (d *Dispatcher) Actions() []domain.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Action, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.copyLocked(d.actions[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Subscribe returns a channel receiving every action transition. Updates are
// dropped for receivers that fall behind.
func (d *Dispatcher) Subscribe() <-chan domain.Action {
	ch := make(chan domain.Action, 16)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		close(ch)
		return ch
	}
	d.subs = append(d.subs, ch)
	return ch
}

// Wait blocks until every tracked action reached a terminal state or ctx
// ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends every subscription. Tracking of in-flight actions continues.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		close(ch)
	}
	d.subs = nil
	d.closed = true
}

func (d *Dispatcher) publish(a domain.Action) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ch := range d.subs {
		select {
		case ch <- a:
		default:
		}
	}
}

func (d *Dispatcher) copyLocked(a *domain.Action) domain.Action {
	out := *a
	if a.TxHashes != nil {
		out.TxHashes = append([]common.Hash(nil), a.TxHashes...)
	}
	return out
}
