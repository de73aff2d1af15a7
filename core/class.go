package core

import (
	"errors"
	"slices"

	"github.com/NethermindEth/devnet/core/crypto"
	"github.com/NethermindEth/devnet/core/felt"
)

type ClassKind uint8

const (
	ClassKindPlain ClassKind = iota
	// Account classes validate the signature of the transactions they send
	ClassKindAccount
)

// AnyArity marks a constructor accepting any number of arguments
const AnyArity = -1

// Class describes what the executor needs to know to deploy an instance of a
// contract class: its constructor shape and the resources each phase consumes.
type Class struct {
	Name string    `cbor:"1,keyasint" yaml:"name" validate:"required"`
	Kind ClassKind `cbor:"2,keyasint" yaml:"kind"`
	// Number of constructor arguments, AnyArity for variadic constructors
	ConstructorArity int    `cbor:"3,keyasint" yaml:"constructor_arity" validate:"min=-1"`
	ValidateSteps    uint64 `cbor:"4,keyasint" yaml:"validate_steps"`
	ConstructorSteps uint64 `cbor:"5,keyasint" yaml:"constructor_steps"`
	// Builtin instances used by a deployment, keyed by resource kind
	Builtins map[string]uint64 `cbor:"6,keyasint" yaml:"builtins"`
}

// DefaultAccountClass is the single-key account predeclared on every devnet.
// Its constructor takes the public key.
func DefaultAccountClass() *Class {
	return &Class{
		Name:             "devnet_account",
		Kind:             ClassKindAccount,
		ConstructorArity: 1,
		ValidateSteps:    1_250,
		ConstructorSteps: 450,
		Builtins: map[string]uint64{
			PedersenBuiltin:   2,
			RangeCheckBuiltin: 12,
			ECDSABuiltin:      1,
		},
	}
}

// Hash identifies the class. It commits to every field of the descriptor.
func (c *Class) Hash() (*felt.Felt, error) {
	name, err := crypto.StarknetKeccak([]byte(c.Name))
	if err != nil {
		return nil, err
	}

	arity := new(felt.Felt).SetUint64(uint64(c.ConstructorArity))
	if c.ConstructorArity < 0 {
		arity.Sub(&felt.Zero, new(felt.Felt).SetUint64(uint64(-c.ConstructorArity)))
	}

	var digest crypto.PedersenDigest
	digest.Update(
		name,
		new(felt.Felt).SetUint64(uint64(c.Kind)),
		arity,
		new(felt.Felt).SetUint64(c.ValidateSteps),
		new(felt.Felt).SetUint64(c.ConstructorSteps),
	)

	builtins := make([]string, 0, len(c.Builtins))
	for builtin := range c.Builtins {
		builtins = append(builtins, builtin)
	}
	slices.Sort(builtins)
	for _, builtin := range builtins {
		builtinName, err := crypto.StarknetKeccak([]byte(builtin))
		if err != nil {
			return nil, err
		}
		digest.Update(builtinName, new(felt.Felt).SetUint64(c.Builtins[builtin]))
	}
	return digest.Finish(), nil
}

// AcceptsCalldata reports whether the constructor takes n arguments
func (c *Class) AcceptsCalldata(n int) bool {
	return c.ConstructorArity == AnyArity || c.ConstructorArity == n
}

var ErrUnknownClassKind = errors.New("unknown class kind (known: plain, account)")

func (k ClassKind) String() string {
	switch k {
	case ClassKindPlain:
		return "plain"
	case ClassKindAccount:
		return "account"
	default:
		return "unknown"
	}
}

func (k ClassKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ClassKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "plain", "PLAIN":
		*k = ClassKindPlain
	case "account", "ACCOUNT":
		*k = ClassKindAccount
	default:
		return ErrUnknownClassKind
	}
	return nil
}
