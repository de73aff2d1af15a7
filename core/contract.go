package core

import (
	"fmt"
	"math/big"

	"github.com/NethermindEth/devnet/core/crypto"
	"github.com/NethermindEth/devnet/core/felt"
)

// L2AddressUpperBound is 2**251 - 256. Contract addresses and storage keys are
// reduced below it.
var L2AddressUpperBound = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 251), big.NewInt(256))

var contractAddressPrefix = new(felt.Felt).SetBytes([]byte("STARKNET_CONTRACT_ADDRESS"))

// ContractAddress computes the address of a Starknet contract deployed by deployerAddress.
//
// https://docs.starknet.io/architecture-and-concepts/smart-contracts/contract-address/
func ContractAddress(salt, classHash *felt.Felt, constructorCallData []*felt.Felt, deployerAddress *felt.Felt) (*felt.Felt, error) {
	const op = "contract address"
	if err := checkFelts(salt, classHash, deployerAddress); err != nil {
		return nil, &DerivationError{Op: op, Err: err}
	}
	if err := checkFelts(constructorCallData...); err != nil {
		return nil, &DerivationError{Op: op, Err: fmt.Errorf("constructor calldata: %w", err)}
	}
	if !IsValidAddress(deployerAddress) {
		return nil, &DerivationError{Op: op, Err: fmt.Errorf("deployer %s: %w", deployerAddress, ErrAddressOutOfRange)}
	}

	callDataHash := crypto.PedersenArray(constructorCallData...)
	hash := crypto.PedersenArray(
		contractAddressPrefix,
		deployerAddress,
		salt,
		classHash,
		callDataHash,
	)
	return reduceToAddressRange(hash), nil
}

// IsValidAddress reports whether a is below L2AddressUpperBound
func IsValidAddress(a *felt.Felt) bool {
	return a.BigInt(new(big.Int)).Cmp(L2AddressUpperBound) < 0
}

func reduceToAddressRange(f *felt.Felt) *felt.Felt {
	v := f.BigInt(new(big.Int))
	if v.Cmp(L2AddressUpperBound) < 0 {
		return f
	}
	return new(felt.Felt).SetBigInt(v.Mod(v, L2AddressUpperBound))
}

func checkFelts(felts ...*felt.Felt) error {
	for i, f := range felts {
		if f == nil {
			return fmt.Errorf("element %d: %w", i, ErrNilFelt)
		}
	}
	return nil
}
