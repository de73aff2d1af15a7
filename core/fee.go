package core

import "github.com/NethermindEth/devnet/core/felt"

// FeeTokenBalanceVar is the storage variable holding ERC20 balances in the fee token
const FeeTokenBalanceVar = "ERC20_balances"

// feeBytes is the width of a fee: an unsigned 128-bit integer
const feeBytes = 16

// FeeTokenBalanceKey returns the fee token storage key holding the balance of address
func FeeTokenBalanceKey(address *felt.Felt) (*felt.Felt, error) {
	return StorageVarAddress(FeeTokenBalanceVar, address)
}

// FeeFromFelt interprets the low 16 bytes of the big-endian encoding of v as an
// unsigned 128-bit fee.
func FeeFromFelt(v *felt.Felt) *felt.Felt {
	b := v.Bytes()
	return new(felt.Felt).SetBytes(b[felt.Bytes-feeBytes:])
}
