package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Chain connectivity
	CodeChainConnectionFailed: "Failed to connect to chain node",
	CodeChainRPCError:         "Chain RPC call failed",
	CodeChainIDMismatch:       "Node chain id does not match configured network",
	CodeUnsupportedNetwork:    "Unsupported network",

	// Contract gateway
	CodeContractReadFailed:      "Farm contract read failed",
	CodeInvalidContractResponse: "Unexpected contract response shape",
	CodeTransactionFailed:       "Transaction could not be submitted",
	CodeTransactionReverted:     "Transaction reverted",
	CodeWalletNotConnected:      "No wallet connected",

	// Price oracle
	CodePriceFetchFailed: "Failed to fetch token price",

	// Actions
	CodeInvalidAmount:    "Amount must be a positive number",
	CodeTokenNotFound:    "Token not found",
	CodeActionInProgress: "Action already in progress for this token",
	CodeActionNotFound:   "Action not found",

	// Circuit breaker errors
	CodeCircuitOpen: "Circuit breaker is open",
}
