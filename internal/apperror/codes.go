package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Farm-specific error codes
const (
	// Chain connectivity
	CodeChainConnectionFailed Code = "CHAIN_CONNECTION_FAILED"
	CodeChainRPCError         Code = "CHAIN_RPC_ERROR"
	CodeChainIDMismatch       Code = "CHAIN_ID_MISMATCH"
	CodeUnsupportedNetwork    Code = "UNSUPPORTED_NETWORK"

	// Contract gateway
	CodeContractReadFailed      Code = "CONTRACT_READ_FAILED"
	CodeInvalidContractResponse Code = "INVALID_CONTRACT_RESPONSE"
	CodeTransactionFailed       Code = "TRANSACTION_FAILED"
	CodeTransactionReverted     Code = "TRANSACTION_REVERTED"
	CodeWalletNotConnected      Code = "WALLET_NOT_CONNECTED"

	// Price oracle
	CodePriceFetchFailed Code = "PRICE_FETCH_FAILED"

	// Actions
	CodeInvalidAmount    Code = "INVALID_AMOUNT"
	CodeTokenNotFound    Code = "TOKEN_NOT_FOUND"
	CodeActionInProgress Code = "ACTION_IN_PROGRESS"
	CodeActionNotFound   Code = "ACTION_NOT_FOUND"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
