package contract

// FarmABI covers the farm methods the dashboard reads and writes.
const FarmABI = `[
	{"inputs":[],"name":"getTokens","outputs":[{"internalType":"address[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"_token","type":"address"}],"name":"tokenIsActive","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{
		"inputs":[{"internalType":"address","name":"","type":"address"}],
		"name":"tokensData",
		"outputs":[
			{"internalType":"string","name":"name","type":"string"},
			{"internalType":"uint256","name":"_type","type":"uint256"},
			{"internalType":"uint256","name":"balance","type":"uint256"},
			{"internalType":"uint256","name":"devStakeFee","type":"uint256"},
			{"internalType":"uint256","name":"devUnstakeFee","type":"uint256"},
			{"internalType":"uint256","name":"adminStakeFee","type":"uint256"},
			{"internalType":"uint256","name":"adminUnstakeFee","type":"uint256"},
			{"internalType":"uint256","name":"stakingApr","type":"uint256"},
			{"internalType":"address","name":"rewardToken","type":"address"},
			{"internalType":"address","name":"admin","type":"address"},
			{"internalType":"bool","name":"hasMultiTokenRewards","type":"bool"}
		],
		"stateMutability":"view","type":"function"
	},
	{
		"inputs":[{"internalType":"address","name":"","type":"address"},{"internalType":"address","name":"","type":"address"}],
		"name":"stakerData",
		"outputs":[
			{"internalType":"uint256","name":"stakingBalance","type":"uint256"},
			{"internalType":"uint256","name":"rewardBalance","type":"uint256"},
			{"internalType":"address","name":"stakingRewardToken","type":"address"},
			{"internalType":"uint256","name":"timestampLastRewarded","type":"uint256"},
			{"internalType":"uint256","name":"timestampAdded","type":"uint256"}
		],
		"stateMutability":"view","type":"function"
	},
	{"inputs":[{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"stake","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"unstake","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"withdrawReward","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"_token","type":"address"},{"internalType":"address","name":"_rewardToken","type":"address"}],"name":"setStakingRewardToken","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// ERC20ABI is the token subset used for allowances and wallet balances.
const ERC20ABI = `[
	{"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Farm method names.
const (
	methodGetTokens             = "getTokens"
	methodTokenIsActive         = "tokenIsActive"
	methodTokensData            = "tokensData"
	methodStakerData            = "stakerData"
	methodStake                 = "stake"
	methodUnstake               = "unstake"
	methodWithdrawReward        = "withdrawReward"
	methodSetStakingRewardToken = "setStakingRewardToken"
	methodApprove               = "approve"
	methodBalanceOf             = "balanceOf"
)
