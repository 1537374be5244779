package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ActionKind is a user-selectable farm operation.
type ActionKind string

const (
	ActionStake             ActionKind = "stake"
	ActionUnstake           ActionKind = "unstake"
	ActionWithdrawReward    ActionKind = "withdraw reward"
	ActionChangeRewardToken ActionKind = "change reward token"
)

// ActionKinds lists every kind in display order.
var ActionKinds = []ActionKind{ActionStake, ActionUnstake, ActionWithdrawReward, ActionChangeRewardToken}

// ParseActionKind accepts the display name or its hyphenated form.
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "stake":
		return ActionStake, nil
	case "unstake":
		return ActionUnstake, nil
	case "withdraw reward", "withdraw-reward", "withdrawReward":
		return ActionWithdrawReward, nil
	case "change reward token", "change-reward-token", "setStakingRewardToken":
		return ActionChangeRewardToken, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// TakesAmount reports whether the kind requires an amount.
func (k ActionKind) TakesAmount() bool {
	return k != ActionChangeRewardToken
}

// ActionState is the user-visible progress of an action.
type ActionState string

const (
	ActionIdle      ActionState = "Idle"
	ActionSubmitted ActionState = "Submitted"
	ActionMining    ActionState = "Mining"
	ActionSuccess   ActionState = "Success"
	ActionFailed    ActionState = "Failed"
)

// InFlight reports whether the action still awaits an outcome.
func (s ActionState) InFlight() bool {
	return s == ActionSubmitted || s == ActionMining
}

// ActionRequest is raw user input for one action.
type ActionRequest struct {
	Token       string     `json:"token"`
	Kind        ActionKind `json:"kind"`
	Amount      string     `json:"amount,omitempty"`
	RewardToken string     `json:"rewardToken,omitempty"`
}

// Action is a dispatched request and its progress.
type Action struct {
	ID          string         `json:"id"`
	Token       common.Address `json:"token"`
	Kind        ActionKind     `json:"kind"`
	Amount      string         `json:"amount,omitempty"`
	RewardToken common.Address `json:"rewardToken,omitempty"`
	State       ActionState    `json:"state"`
	Step        string         `json:"step,omitempty"`
	TxHashes    []common.Hash  `json:"txHashes,omitempty"`
	// TxURL is the explorer link for the latest hash.
	TxURL string `json:"txUrl,omitempty"`
	// TxState is the raw transaction outcome, distinguishing Fail from
	// Exception when State is Failed.
	TxState   string    `json:"txState,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
