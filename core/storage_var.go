package core

import (
	"github.com/NethermindEth/devnet/core/crypto"
	"github.com/NethermindEth/devnet/core/felt"
)

// StorageVarAddress computes the storage key of a Cairo storage variable:
// sn_keccak(name), folded with Pedersen over the index arguments and reduced
// below L2AddressUpperBound.
func StorageVarAddress(name string, args ...*felt.Felt) (*felt.Felt, error) {
	const op = "storage variable address"
	if name == "" {
		return nil, &DerivationError{Op: op, Err: ErrEmptyStorageVarName}
	}
	if err := checkFelts(args...); err != nil {
		return nil, &DerivationError{Op: op, Err: err}
	}

	res, err := crypto.StarknetKeccak([]byte(name))
	if err != nil {
		return nil, &DerivationError{Op: op, Err: err}
	}
	for _, arg := range args {
		res = crypto.Pedersen(res, arg)
	}
	return reduceToAddressRange(res), nil
}
