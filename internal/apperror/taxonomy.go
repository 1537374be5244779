package apperror

// IsReadError reports whether err is a failed or malformed contract read.
func IsReadError(err error) bool {
	switch GetCode(err) {
	case CodeContractReadFailed, CodeInvalidContractResponse:
		return true
	}
	return false
}

// IsPriceFetchError reports whether err is a failed price lookup.
func IsPriceFetchError(err error) bool {
	switch GetCode(err) {
	case CodePriceFetchFailed:
		return true
	}
	return false
}

// IsTransactionError reports whether err came from a rejected, reverted or
// unconfirmed write.
func IsTransactionError(err error) bool {
	switch GetCode(err) {
	case CodeTransactionFailed, CodeTransactionReverted, CodeWalletNotConnected:
		return true
	}
	return false
}

// IsValidationError reports whether err rejected user input.
func IsValidationError(err error) bool {
	switch GetCode(err) {
	case CodeValidationError, CodeInvalidAmount, CodeTokenNotFound, CodeActionInProgress, CodeInvalidInput, CodeRequiredField:
		return true
	}
	return false
}
