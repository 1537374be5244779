package domain

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxState is the lifecycle of a submitted write.
type TxState string

const (
	TxIdle      TxState = "Idle"
	TxMining    TxState = "Mining"
	TxSuccess   TxState = "Success"
	TxFail      TxState = "Fail"
	TxException TxState = "Exception"
)

// IsTerminal reports whether no further transitions happen.
func (s TxState) IsTerminal() bool {
	return s == TxSuccess || s == TxFail || s == TxException
}

// TxStatus is a point-in-time view of a TxHandle.
type TxStatus struct {
	State     TxState
	Step      string // approve, stake, unstake, withdrawReward, setStakingRewardToken
	Hash      common.Hash
	Err       error
	UpdatedAt time.Time
}

// TxHandle tracks one logical write, which may span several transactions.
type TxHandle struct {
	mu      sync.Mutex
	status  TxStatus
	hashes  []common.Hash
	updates chan TxStatus
	done    chan struct{}
}

// NewTxHandle returns a handle in the Idle state.
func NewTxHandle() *TxHandle {
	h := &TxHandle{
		status:  TxStatus{State: TxIdle, UpdatedAt: time.Now()},
		updates: make(chan TxStatus, 8),
		done:    make(chan struct{}),
	}
	return h
}

// Status returns the latest status.
func (h *TxHandle) Status() TxStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Hashes returns every transaction hash submitted under this handle.
func (h *TxHandle) Hashes() []common.Hash {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]common.Hash, len(h.hashes))
	copy(out, h.hashes)
	return out
}

// Updates delivers every transition and is closed after the terminal one.
// Updates are dropped if the reader falls behind; Status stays authoritative.
func (h *TxHandle) Updates() <-chan TxStatus {
	return h.updates
}

// Done is closed once the handle reaches a terminal state.
func (h *TxHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the handle is terminal or ctx ends.
func (h *TxHandle) Wait(ctx context.Context) (TxStatus, error) {
	select {
	case <-h.done:
		return h.Status(), nil
	case <-ctx.Done():
		return h.Status(), ctx.Err()
	}
}

// Mining records a transaction accepted by the node.
func (h *TxHandle) Mining(step string, hash common.Hash) {
	h.transition(TxStatus{State: TxMining, Step: step, Hash: hash})
}

// Succeed marks the handle Success.
func (h *TxHandle) Succeed(step string, hash common.Hash) {
	h.transition(TxStatus{State: TxSuccess, Step: step, Hash: hash})
}

// Fail marks the handle Fail: the transaction reverted or was never confirmed.
func (h *TxHandle) Fail(step string, hash common.Hash, err error) {
	h.transition(TxStatus{State: TxFail, Step: step, Hash: hash, Err: err})
}

// Except marks the handle Exception: the write never reached a block.
func (h *TxHandle) Except(step string, err error) {
	h.transition(TxStatus{State: TxException, Step: step, Err: err})
}

func (h *TxHandle) transition(next TxStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status.State.IsTerminal() {
		return
	}

	next.UpdatedAt = time.Now()
	h.status = next
	if next.Hash != (common.Hash{}) && (len(h.hashes) == 0 || h.hashes[len(h.hashes)-1] != next.Hash) {
		h.hashes = append(h.hashes, next.Hash)
	}

	select {
	case h.updates <- next:
	default:
	}

	if next.State.IsTerminal() {
		close(h.updates)
		close(h.done)
	}
}
