package db

import "bytes"

// Bucket is a key prefix grouping entries of one kind, a poor man's
// alternative to real buckets for stores that do not support them.
type Bucket byte

const (
	ContractStorage   Bucket = iota // (contract address, storage key) -> value
	ContractNonce                   // contract address -> nonce
	ContractClassHash               // contract address -> class hash
	Class                           // class hash -> cbor encoded class
	ChainHeight                     // -> number of the latest committed block
)

func (b Bucket) String() string {
	switch b {
	case ContractStorage:
		return "ContractStorage"
	case ContractNonce:
		return "ContractNonce"
	case ContractClassHash:
		return "ContractClassHash"
	case Class:
		return "Class"
	case ChainHeight:
		return "ChainHeight"
	default:
		return "Unknown"
	}
}

// Key flattens a prefix and series of byte arrays into a single []byte
func (b Bucket) Key(key ...[]byte) []byte {
	return append([]byte{byte(b)}, bytes.Join(key, []byte{})...)
}
