package crypto

import "github.com/NethermindEth/devnet/core/felt"

type Digest interface {
	Update(...*felt.Felt) Digest
	Finish() *felt.Felt
}
