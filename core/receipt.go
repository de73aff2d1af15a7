package core

import "github.com/NethermindEth/devnet/core/felt"

type TransactionReceipt struct {
	TransactionHash *felt.Felt
	// Address of the deployed contract, if any
	ContractAddress *felt.Felt
	MaxFee          *felt.Felt
	ActualFee       *felt.Felt
	// Resource usage by kind, see ResourceKinds
	ExecutionResources map[string]uint64
	BlockNumber        uint64
}
