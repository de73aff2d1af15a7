package core

import (
	"maps"

	"github.com/NethermindEth/devnet/core/felt"
)

// StateDiff is the set of state changes buffered since the last commit
type StateDiff struct {
	StorageDiffs      map[felt.Felt]map[felt.Felt]*felt.Felt // addr -> {key -> value, ...}
	Nonces            map[felt.Felt]*felt.Felt               // addr -> nonce
	DeployedContracts map[felt.Felt]*felt.Felt               // addr -> class hash
	DeclaredClasses   map[felt.Felt]*Class                   // class hash -> class
}

func EmptyStateDiff() *StateDiff {
	return &StateDiff{
		StorageDiffs:      make(map[felt.Felt]map[felt.Felt]*felt.Felt),
		Nonces:            make(map[felt.Felt]*felt.Felt),
		DeployedContracts: make(map[felt.Felt]*felt.Felt),
		DeclaredClasses:   make(map[felt.Felt]*Class),
	}
}

// Merge applies other on top of d, later writes winning
func (d *StateDiff) Merge(other *StateDiff) {
	for addr, diff := range other.StorageDiffs {
		if existing, ok := d.StorageDiffs[addr]; ok {
			maps.Copy(existing, diff)
		} else {
			d.StorageDiffs[addr] = maps.Clone(diff)
		}
	}
	maps.Copy(d.Nonces, other.Nonces)
	maps.Copy(d.DeployedContracts, other.DeployedContracts)
	maps.Copy(d.DeclaredClasses, other.DeclaredClasses)
}

// Length is the number of individual entries in the diff
func (d *StateDiff) Length() int {
	var length int
	for _, storageDiff := range d.StorageDiffs {
		length += len(storageDiff)
	}
	return length + len(d.Nonces) + len(d.DeployedContracts) + len(d.DeclaredClasses)
}

func (d *StateDiff) IsEmpty() bool {
	return d.Length() == 0
}
