package state

import (
	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
)

var _ Committer = (*DictReader)(nil)

// DictReader is a map backed Committer. It is not safe for concurrent use.
type DictReader struct {
	storage     map[felt.Felt]map[felt.Felt]felt.Felt
	nonces      map[felt.Felt]felt.Felt
	classHashes map[felt.Felt]felt.Felt
	classes     map[felt.Felt]*core.Class

	height    uint64
	hasHeight bool
}

func NewDictReader() *DictReader {
	return &DictReader{
		storage:     make(map[felt.Felt]map[felt.Felt]felt.Felt),
		nonces:      make(map[felt.Felt]felt.Felt),
		classHashes: make(map[felt.Felt]felt.Felt),
		classes:     make(map[felt.Felt]*core.Class),
	}
}

func (d *DictReader) ContractStorage(addr, key *felt.Felt) (felt.Felt, error) {
	return d.storage[*addr][*key], nil
}

func (d *DictReader) ContractNonce(addr *felt.Felt) (felt.Felt, error) {
	return d.nonces[*addr], nil
}

func (d *DictReader) ContractClassHash(addr *felt.Felt) (felt.Felt, error) {
	classHash, ok := d.classHashes[*addr]
	if !ok {
		return felt.Zero, ErrContractNotDeployed
	}
	return classHash, nil
}

func (d *DictReader) Class(classHash *felt.Felt) (*core.Class, error) {
	class, ok := d.classes[*classHash]
	if !ok {
		return nil, ErrClassNotDeclared
	}
	return class, nil
}

func (d *DictReader) Commit(diff *core.StateDiff, blockNumber uint64) error {
	for addr, storageDiff := range diff.StorageDiffs {
		storage, ok := d.storage[addr]
		if !ok {
			storage = make(map[felt.Felt]felt.Felt, len(storageDiff))
			d.storage[addr] = storage
		}
		for key, value := range storageDiff {
			storage[key] = *value
		}
	}
	for addr, nonce := range diff.Nonces {
		d.nonces[addr] = *nonce
	}
	for addr, classHash := range diff.DeployedContracts {
		d.classHashes[addr] = *classHash
	}
	for classHash, class := range diff.DeclaredClasses {
		d.classes[classHash] = class
	}

	d.height = blockNumber
	d.hasHeight = true
	return nil
}

func (d *DictReader) ChainHeight() (uint64, error) {
	if !d.hasHeight {
		return 0, ErrNoChainHeight
	}
	return d.height, nil
}
