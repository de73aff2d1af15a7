package crypto

import (
	"errors"
	"io"
	"math/big"

	"github.com/NethermindEth/devnet/core/felt"
	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/ecdsa"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fr"
)

// curveBeta is the b coefficient of the Stark curve y^2 = x^3 + x + b
var curveBeta = felt.UnsafeFromString("0x6f21413efbe40de150e596d72f7a8c5609ad26c15c915c1f4cdfcb99cee9e89")

var (
	ErrNotOnCurve        = errors.New("public key is not the x coordinate of a curve point")
	ErrInvalidPrivateKey = errors.New("private key must be in [1, curve order)")
)

// KeyPair is a Stark curve key pair with the public key reduced to its x coordinate,
// which is how accounts store it.
type KeyPair struct {
	PrivateKey *felt.Felt
	PublicKey  *felt.Felt

	key *ecdsa.PrivateKey
}

// GenerateKeyPair draws a key pair from the given randomness source. A deterministic
// reader produces a deterministic key pair.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	keyBytes := key.Bytes()
	return &KeyPair{
		// the scalar follows the compressed public key
		PrivateKey: new(felt.Felt).SetBytes(keyBytes[fp.Bytes:]),
		PublicKey:  felt.NewFelt(&key.PublicKey.A.X),
		key:        key,
	}, nil
}

// KeyPairFromPrivateKey rebuilds the key pair of a known private key
func KeyPairFromPrivateKey(privateKey *felt.Felt) (*KeyPair, error) {
	scalar := privateKey.BigInt(new(big.Int))
	if scalar.Sign() == 0 || scalar.Cmp(fr.Modulus()) >= 0 {
		return nil, ErrInvalidPrivateKey
	}

	_, g := starkcurve.Generators()
	var pub starkcurve.G1Affine
	pub.ScalarMultiplication(&g, scalar)

	pubBytes := pub.Bytes()
	scalarBytes := privateKey.Bytes()
	key := new(ecdsa.PrivateKey)
	if _, err := key.SetBytes(append(pubBytes[:], scalarBytes[:]...)); err != nil {
		return nil, err
	}
	return &KeyPair{
		PrivateKey: privateKey.Clone(),
		PublicKey:  felt.NewFelt(&pub.X),
		key:        key,
	}, nil
}

// Sign signs msgHash and returns the (r, s) pair
func (k *KeyPair) Sign(msgHash *felt.Felt) (r, s *felt.Felt, err error) {
	hashBytes := msgHash.Bytes()
	sigBin, err := k.key.Sign(hashBytes[:], nil)
	if err != nil {
		return nil, nil, err
	}
	var sig ecdsa.Signature
	if _, err = sig.SetBytes(sigBin); err != nil {
		return nil, nil, err
	}
	return new(felt.Felt).SetBytes(sig.R[:]), new(felt.Felt).SetBytes(sig.S[:]), nil
}

// VerifySignature checks an (r, s) signature of msgHash against a public key given
// as an x coordinate. Both points sharing that x coordinate are tried.
func VerifySignature(publicKey, msgHash, r, s *felt.Felt) (bool, error) {
	y, err := curveY(publicKey)
	if err != nil {
		return false, err
	}

	rBytes, sBytes := r.Bytes(), s.Bytes()
	sigBin := append(rBytes[:], sBytes[:]...)
	hashBytes := msgHash.Bytes()

	var negY fp.Element
	negY.Neg(y)
	for _, candidate := range []*fp.Element{y, &negY} {
		pub := ecdsa.PublicKey{A: starkcurve.G1Affine{X: *publicKey.Impl(), Y: *candidate}}
		ok, err := pub.Verify(sigBin, hashBytes[:], nil)
		if err != nil {
			// out of range r or s
			return false, nil
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func curveY(x *felt.Felt) (*fp.Element, error) {
	var rhs fp.Element
	rhs.Square(x.Impl()).
		Mul(&rhs, x.Impl()).
		Add(&rhs, x.Impl()).
		Add(&rhs, curveBeta.Impl())

	y := new(fp.Element).Sqrt(&rhs)
	if y == nil {
		return nil, ErrNotOnCurve
	}
	return y, nil
}
