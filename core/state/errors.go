package state

import (
	"errors"
)

var (
	ErrContractNotDeployed = errors.New("contract not deployed")
	ErrClassNotDeclared    = errors.New("class not declared")
	ErrNoChainHeight       = errors.New("no block has been committed")
)
