package sequencer

import (
	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
)

// DeployAccountTransaction builds the transaction DeployAccount submits for an
// account holding balance in the fee token. Signers use it to learn the hash
// they have to sign.
func DeployAccountTransaction(blockCtx *core.BlockContext, classHash, version, salt *felt.Felt,
	calldata, signature []*felt.Felt, balance *felt.Felt,
) (*core.DeployAccountTransaction, error) {
	address, err := core.ContractAddress(salt, classHash, calldata, &felt.Zero)
	if err != nil {
		return nil, err
	}
	return deployAccountTransaction(blockCtx, address, classHash, version, salt, calldata, signature, balance)
}

func deployAccountTransaction(blockCtx *core.BlockContext, address, classHash, version, salt *felt.Felt,
	calldata, signature []*felt.Felt, balance *felt.Felt,
) (*core.DeployAccountTransaction, error) {
	txn := &core.DeployAccountTransaction{
		MaxFee:               core.FeeFromFelt(balance),
		Version:              version,
		ClassHash:            classHash,
		ContractAddress:      address,
		ContractAddressSalt:  salt,
		ConstructorCallData:  calldata,
		Nonce:                new(felt.Felt),
		TransactionSignature: signature,
	}

	var err error
	if txn.TransactionHash, err = core.TransactionHash(txn, blockCtx.ChainIDFelt()); err != nil {
		return nil, err
	}
	return txn, nil
}
