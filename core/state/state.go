// Package state holds the account and storage view the sequencer executes
// transactions against.
//
// Reads of unset storage slots and nonces yield zero. Class hashes and classes
// have no default and report ErrContractNotDeployed and ErrClassNotDeclared.
package state

import (
	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
)

type Reader interface {
	ContractStorage(addr, key *felt.Felt) (felt.Felt, error)
	ContractNonce(addr *felt.Felt) (felt.Felt, error)
	ContractClassHash(addr *felt.Felt) (felt.Felt, error)
	Class(classHash *felt.Felt) (*core.Class, error)
}

// State is a Reader that also accepts writes
type State interface {
	Reader

	SetStorage(addr, key, value *felt.Felt) error
	SetNonce(addr, nonce *felt.Felt) error
	SetClassHash(addr, classHash *felt.Felt) error
	SetClass(classHash *felt.Felt, class *core.Class) error
}

// Committer is a backing store that state diffs are flushed into when a
// block is closed
type Committer interface {
	Reader

	Commit(diff *core.StateDiff, blockNumber uint64) error
	// ChainHeight is the number of the last committed block, ErrNoChainHeight
	// when nothing has been committed yet
	ChainHeight() (uint64, error)
}

// Apply writes every entry of diff into st
func Apply(st State, diff *core.StateDiff) error {
	for classHash, class := range diff.DeclaredClasses {
		if err := st.SetClass(&classHash, class); err != nil {
			return err
		}
	}
	for addr, classHash := range diff.DeployedContracts {
		if err := st.SetClassHash(&addr, classHash); err != nil {
			return err
		}
	}
	for addr, nonce := range diff.Nonces {
		if err := st.SetNonce(&addr, nonce); err != nil {
			return err
		}
	}
	for addr, storage := range diff.StorageDiffs {
		for key, value := range storage {
			if err := st.SetStorage(&addr, &key, value); err != nil {
				return err
			}
		}
	}
	return nil
}
