package vm

import (
	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/core/state"
)

//go:generate mockgen -destination=../mocks/mock_executor.go -package=mocks github.com/NethermindEth/devnet/vm Executor
type Executor interface {
	// Execute applies txn to st. On failure st is left untouched.
	Execute(txn core.Transaction, blockCtx *core.BlockContext, st state.State) (*ExecutionInfo, error)
}

type ExecutionInfo struct {
	TransactionHash *felt.Felt
	// Address of the contract the transaction deployed, if any
	ContractAddress *felt.Felt
	MaxFee          *felt.Felt
	ActualFee       *felt.Felt
	Resources       map[string]uint64
}
