package core

import (
	"errors"
	"fmt"

	"github.com/NethermindEth/devnet/core/crypto"
	"github.com/NethermindEth/devnet/core/felt"
)

type Transaction interface {
	Hash() *felt.Felt
	Signature() []*felt.Felt
}

var _ Transaction = (*DeployAccountTransaction)(nil)

var ErrUnknownTransaction = errors.New("unknown transaction")

var (
	deployAccountFelt = new(felt.Felt).SetBytes([]byte("deploy_account"))

	// QueryVersionOffset is added to the version of transactions that are only
	// simulated and never included in a block.
	QueryVersionOffset = felt.UnsafeFromString("0x100000000000000000000000000000000")
)

type DeployAccountTransaction struct {
	TransactionHash *felt.Felt
	// The maximum fee that the sender is willing to pay for the transaction.
	MaxFee *felt.Felt
	// The transaction's version. Deploy account transactions start at version 1.
	Version *felt.Felt
	// The hash of the class which defines the account's functionality.
	ClassHash *felt.Felt
	// The address the account is deployed to, derived from the fields below.
	ContractAddress *felt.Felt
	// A random number used to distinguish between different instances of the account.
	ContractAddressSalt *felt.Felt
	// The arguments passed to the constructor during deployment.
	ConstructorCallData []*felt.Felt
	// The transaction nonce, zero for a fresh account.
	Nonce *felt.Felt
	// Additional information given by the sender, used to validate the transaction.
	TransactionSignature []*felt.Felt
}

func (d *DeployAccountTransaction) Hash() *felt.Felt {
	return d.TransactionHash
}

func (d *DeployAccountTransaction) Signature() []*felt.Felt {
	return d.TransactionSignature
}

// TransactionHash computes the hash of txn on the chain identified by chainID
func TransactionHash(txn Transaction, chainID *felt.Felt) (*felt.Felt, error) {
	switch t := txn.(type) {
	case *DeployAccountTransaction:
		return deployAccountTransactionHash(t, chainID)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTransaction, txn)
	}
}

func deployAccountTransactionHash(d *DeployAccountTransaction, chainID *felt.Felt) (*felt.Felt, error) {
	const op = "deploy account transaction hash"
	if err := checkFelts(d.Version, d.ContractAddress, d.ClassHash, d.ContractAddressSalt, d.MaxFee, d.Nonce, chainID); err != nil {
		return nil, &DerivationError{Op: op, Err: err}
	}
	if err := checkFelts(d.ConstructorCallData...); err != nil {
		return nil, &DerivationError{Op: op, Err: err}
	}

	callData := []*felt.Felt{d.ClassHash, d.ContractAddressSalt}
	callData = append(callData, d.ConstructorCallData...)
	return crypto.PedersenArray(
		deployAccountFelt,
		d.Version,
		d.ContractAddress,
		&felt.Zero,
		crypto.PedersenArray(callData...),
		d.MaxFee,
		chainID,
		d.Nonce,
	), nil
}
