package core

import (
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/jinzhu/copier"
)

// Resources the executor charges for
const (
	StepsResource     = "n_steps"
	PedersenBuiltin   = "pedersen_builtin"
	RangeCheckBuiltin = "range_check_builtin"
	ECDSABuiltin      = "ecdsa_builtin"
	BitwiseBuiltin    = "bitwise_builtin"
	PoseidonBuiltin   = "poseidon_builtin"
	OutputBuiltin     = "output_builtin"
	ECOpBuiltin       = "ec_op_builtin"
)

var ResourceKinds = []string{
	StepsResource,
	PedersenBuiltin,
	RangeCheckBuiltin,
	ECDSABuiltin,
	BitwiseBuiltin,
	PoseidonBuiltin,
	OutputBuiltin,
	ECOpBuiltin,
}

const (
	DefaultChainID        = "KATANA"
	DefaultGasPrice       = 100 * 1_000_000_000 // 100 gwei
	DefaultMaxSteps       = 1_000_000
	DefaultResourceWeight = 1.0
)

var (
	DefaultSequencerAddress = felt.UnsafeFromString("0x1000")
	DefaultFeeTokenAddress  = felt.UnsafeFromString("0x1001")
)

// BlockContext is the per-block configuration every transaction executes against.
// It is never mutated once built; advancing the block produces a new value.
type BlockContext struct {
	ChainID          string
	BlockNumber      uint64
	BlockTimestamp   uint64
	SequencerAddress *felt.Felt
	FeeTokenAddress  *felt.Felt
	// Weight per resource kind, used to turn execution resources into L1 gas
	ResourceFeeWeights map[string]float64
	// Price of one unit of L1 gas in the smallest fee token denomination
	GasPrice         uint64
	InvokeTxMaxSteps uint64
	ValidateMaxSteps uint64
}

// DefaultBlockContext returns the genesis context of a fresh devnet chain
func DefaultBlockContext() *BlockContext {
	return NewBlockContext(BlockContextConfig{})
}

// BlockContextConfig holds the configurable parts of a BlockContext. Zero values
// fall back to the defaults.
type BlockContextConfig struct {
	ChainID            string
	SequencerAddress   *felt.Felt
	FeeTokenAddress    *felt.Felt
	ResourceFeeWeights map[string]float64
	GasPrice           uint64
	InvokeTxMaxSteps   uint64
	ValidateMaxSteps   uint64
}

func NewBlockContext(cfg BlockContextConfig) *BlockContext {
	b := &BlockContext{
		ChainID:            DefaultChainID,
		SequencerAddress:   new(felt.Felt).Set(DefaultSequencerAddress),
		FeeTokenAddress:    new(felt.Felt).Set(DefaultFeeTokenAddress),
		ResourceFeeWeights: make(map[string]float64, len(ResourceKinds)),
		GasPrice:           DefaultGasPrice,
		InvokeTxMaxSteps:   DefaultMaxSteps,
		ValidateMaxSteps:   DefaultMaxSteps,
	}
	for _, kind := range ResourceKinds {
		b.ResourceFeeWeights[kind] = DefaultResourceWeight
	}
	for kind, weight := range cfg.ResourceFeeWeights {
		b.ResourceFeeWeights[kind] = weight
	}

	if cfg.ChainID != "" {
		b.ChainID = cfg.ChainID
	}
	if cfg.SequencerAddress != nil {
		b.SequencerAddress.Set(cfg.SequencerAddress)
	}
	if cfg.FeeTokenAddress != nil {
		b.FeeTokenAddress.Set(cfg.FeeTokenAddress)
	}
	if cfg.GasPrice != 0 {
		b.GasPrice = cfg.GasPrice
	}
	if cfg.InvokeTxMaxSteps != 0 {
		b.InvokeTxMaxSteps = cfg.InvokeTxMaxSteps
	}
	if cfg.ValidateMaxSteps != 0 {
		b.ValidateMaxSteps = cfg.ValidateMaxSteps
	}
	return b
}

// ChainIDFelt is the chain id as it enters transaction hashes
func (b *BlockContext) ChainIDFelt() *felt.Felt {
	return new(felt.Felt).SetBytes([]byte(b.ChainID))
}

var feltConverter = copier.TypeConverter{
	SrcType: &felt.Felt{},
	DstType: &felt.Felt{},
	Fn: func(src any) (any, error) {
		f, _ := src.(*felt.Felt)
		if f == nil {
			return (*felt.Felt)(nil), nil
		}
		return new(felt.Felt).Set(f), nil
	},
}

// Clone returns a deep copy, safe to hand out to callers
func (b *BlockContext) Clone() *BlockContext {
	clone := new(BlockContext)
	if err := copier.CopyWithOption(clone, b, copier.Option{
		DeepCopy:   true,
		Converters: []copier.TypeConverter{feltConverter},
	}); err != nil {
		// only reachable if the struct layout stops being copyable
		panic(err)
	}
	return clone
}

// Next returns the context of the block following b
func (b *BlockContext) Next(timestamp uint64) *BlockContext {
	next := b.Clone()
	next.BlockNumber = b.BlockNumber + 1
	next.BlockTimestamp = timestamp
	return next
}
