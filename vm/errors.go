package vm

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedTransaction    = errors.New("unsupported transaction type")
	ErrInvalidTransactionVersion = errors.New("invalid transaction version")
	ErrInvalidTransactionHash    = errors.New("transaction hash does not match its contents")
	ErrInvalidContractAddress    = errors.New("contract address does not match its derivation")
	ErrInvalidNonce              = errors.New("invalid transaction nonce")
	ErrContractAlreadyDeployed   = errors.New("contract already deployed")
	ErrUndeclaredClass           = errors.New("class is not declared")
	ErrInvalidCalldata           = errors.New("invalid constructor calldata")
	ErrInvalidSignature          = errors.New("invalid transaction signature")
	ErrStepLimitExceeded         = errors.New("step limit exceeded")
	ErrMissingResourceWeight     = errors.New("missing fee weight for resource")
	ErrMaxFeeTooLow              = errors.New("actual fee exceeds max fee")
	ErrInsufficientBalance       = errors.New("insufficient fee token balance")
)

// TransactionExecutionError is returned when a transaction is rejected by
// the executor. Index is the position of the transaction in the executed batch.
type TransactionExecutionError struct {
	Index uint64
	Cause error
}

func (e TransactionExecutionError) Error() string {
	return fmt.Sprintf("execute transaction #%d: %s", e.Index, e.Cause)
}

func (e TransactionExecutionError) Unwrap() error {
	return e.Cause
}
