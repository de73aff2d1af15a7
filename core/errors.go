package core

import "errors"

var (
	ErrAddressOutOfRange   = errors.New("address out of range")
	ErrNilFelt             = errors.New("nil felt")
	ErrEmptyStorageVarName = errors.New("empty storage variable name")
)

// DerivationError reports a failed address, storage key or hash derivation.
// It always points at malformed caller input.
type DerivationError struct {
	Op  string
	Err error
}

func (e *DerivationError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DerivationError) Unwrap() error {
	return e.Err
}
