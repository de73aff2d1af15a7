package felt

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

const (
	Limbs = fp.Limbs // number of 64 bits words needed to represent a Element
	Bits  = fp.Bits  // number of bits needed to represent a Element
	Bytes = fp.Bytes // number of bytes needed to represent a Element
)

const (
	Base10 = 10
	Base16 = 16
)

var ErrOverflow = errors.New("value does not fit")

// Zero felt constant
var Zero = Felt{}

// One felt constant
var One = Felt{val: fp.One()}

var bigIntPool = sync.Pool{
	New: func() any {
		return new(big.Int)
	},
}

// Felt is an element of the Stark field. All addresses, hashes, storage keys
// and balances are felts.
type Felt struct {
	val fp.Element
}

func NewFelt(element *fp.Element) *Felt {
	return &Felt{
		val: *element,
	}
}

// UnsafeFromString parses a hex or decimal string and panics on failure.
// Only meant for constants and tests.
func UnsafeFromString(s string) *Felt {
	f, err := new(Felt).SetString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Impl returns the underlying field element type
func (z *Felt) Impl() *fp.Element {
	return &z.val
}

// UnmarshalJSON accepts numbers and strings as input.
// See Element.SetString for valid prefixes (0x, 0b, ...).
func (z *Felt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) > fp.Bits*3 {
		return errors.New("value too large (max = Element.Bits * 3)")
	}

	// we accept numbers and strings, remove leading and trailing quotes if any
	if len(s) > 0 && s[0] == '"' {
		s = s[1:]
	}
	if len(s) > 0 && s[len(s)-1] == '"' {
		s = s[:len(s)-1]
	}

	vv := bigIntPool.Get().(*big.Int)
	defer bigIntPool.Put(vv)

	if _, ok := vv.SetString(s, 0); !ok {
		if _, ok := vv.SetString(s, Base16); !ok {
			return errors.New("can't parse into a big.Int: " + s)
		}
	}

	z.val.SetBigInt(vv)
	return nil
}

// MarshalJSON encodes the felt as a quoted hex string
func (z *Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + z.String() + `"`), nil
}

// UnmarshalText lets viper, mapstructure and yaml decode felts from strings
func (z *Felt) UnmarshalText(text []byte) error {
	_, err := z.SetString(string(text))
	return err
}

func (z *Felt) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// MarshalCBOR encodes the felt as its 32 byte big-endian representation.
// Value receiver so that felts used as map keys and plain values encode too.
func (z Felt) MarshalCBOR() ([]byte, error) {
	b := z.val.Bytes()
	// CBOR byte string header for 32 bytes
	return append([]byte{0x58, Bytes}, b[:]...), nil
}

// UnmarshalCBOR is the inverse of MarshalCBOR
func (z *Felt) UnmarshalCBOR(data []byte) error {
	if len(data) != Bytes+2 || data[0] != 0x58 || data[1] != Bytes {
		return fmt.Errorf("invalid cbor felt encoding of length %d", len(data))
	}
	return z.SetBytesCanonical(data[2:])
}

// SetBytes interprets e as a big-endian integer, reducing it modulo the field order
func (z *Felt) SetBytes(e []byte) *Felt {
	z.val.SetBytes(e)
	return z
}

// SetBytesCanonical sets z from a 32 byte big-endian slice and fails if the
// value is not a canonical field element
func (z *Felt) SetBytesCanonical(data []byte) error {
	return z.val.SetBytesCanonical(data)
}

// SetString accepts hex (0x prefixed) and decimal strings
func (z *Felt) SetString(number string) (*Felt, error) {
	_, err := z.val.SetString(number)
	return z, err
}

func (z *Felt) SetUint64(v uint64) *Felt {
	z.val.SetUint64(v)
	return z
}

func (z *Felt) SetBigInt(v *big.Int) *Felt {
	z.val.SetBigInt(v)
	return z
}

// BigInt writes the regular (non-Montgomery) value of z into res
func (z *Felt) BigInt(res *big.Int) *big.Int {
	return z.val.BigInt(res)
}

func (z *Felt) SetRandom() (*Felt, error) {
	_, err := z.val.SetRandom()
	return z, err
}

func (z *Felt) Set(x *Felt) *Felt {
	z.val.Set(&x.val)
	return z
}

// Clone returns a new felt with the value of z
func (z *Felt) Clone() *Felt {
	clone := *z
	return &clone
}

// Uint64 returns the value of z if it fits into 64 bits
func (z *Felt) Uint64() (uint64, error) {
	if !z.val.IsUint64() {
		return 0, ErrOverflow
	}
	return z.val.Uint64(), nil
}

// String returns the 0x prefixed hex representation
func (z *Felt) String() string {
	return "0x" + z.val.Text(Base16)
}

func (z *Felt) ShortString() string {
	hex := z.val.Text(Base16)
	if len(hex) <= 8 {
		return "0x" + hex
	}
	return fmt.Sprintf("0x%s...%s", hex[:4], hex[len(hex)-4:])
}

func (z *Felt) Text(base int) string {
	return z.val.Text(base)
}

func (z *Felt) Equal(x *Felt) bool {
	return z.val.Equal(&x.val)
}

// Marshal returns the 32 byte big-endian representation
func (z *Felt) Marshal() []byte {
	return z.val.Marshal()
}

// Bytes returns the 32 byte big-endian representation
func (z *Felt) Bytes() [32]byte {
	return z.val.Bytes()
}

func (z *Felt) IsOne() bool {
	return z.val.IsOne()
}

func (z *Felt) IsZero() bool {
	return z.val.IsZero()
}

func (z *Felt) Add(x, y *Felt) *Felt {
	z.val.Add(&x.val, &y.val)
	return z
}

func (z *Felt) Sub(x, y *Felt) *Felt {
	z.val.Sub(&x.val, &y.val)
	return z
}

func (z *Felt) Mul(x, y *Felt) *Felt {
	z.val.Mul(&x.val, &y.val)
	return z
}

func (z *Felt) Cmp(x *Felt) int {
	return z.val.Cmp(&x.val)
}
