package state

import (
	"encoding/binary"
	"errors"

	"github.com/NethermindEth/devnet/core"
	"github.com/NethermindEth/devnet/core/felt"
	"github.com/NethermindEth/devnet/db"
	"github.com/NethermindEth/devnet/encoder"
)

var _ Committer = (*DBReader)(nil)

// DBReader reads and commits state to a key-value store
type DBReader struct {
	store db.KeyValueStore
}

func NewDBReader(store db.KeyValueStore) *DBReader {
	return &DBReader{store: store}
}

func (r *DBReader) ContractStorage(addr, key *felt.Felt) (felt.Felt, error) {
	return r.feltOrZero(db.ContractStorage.Key(addr.Marshal(), key.Marshal()))
}

func (r *DBReader) ContractNonce(addr *felt.Felt) (felt.Felt, error) {
	return r.feltOrZero(db.ContractNonce.Key(addr.Marshal()))
}

func (r *DBReader) ContractClassHash(addr *felt.Felt) (felt.Felt, error) {
	classHash, err := r.felt(db.ContractClassHash.Key(addr.Marshal()))
	if errors.Is(err, db.ErrKeyNotFound) {
		return felt.Zero, ErrContractNotDeployed
	}
	return classHash, err
}

func (r *DBReader) Class(classHash *felt.Felt) (*core.Class, error) {
	var class core.Class
	err := r.store.Get(db.Class.Key(classHash.Marshal()), func(val []byte) error {
		return encoder.Unmarshal(val, &class)
	})
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrClassNotDeclared
		}
		return nil, err
	}
	return &class, nil
}

func (r *DBReader) ChainHeight() (uint64, error) {
	var height uint64
	err := r.store.Get(db.ChainHeight.Key(), func(val []byte) error {
		height = binary.BigEndian.Uint64(val)
		return nil
	})
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, ErrNoChainHeight
	}
	return height, err
}

// Commit writes diff and the new chain height in a single batch
func (r *DBReader) Commit(diff *core.StateDiff, blockNumber uint64) error {
	batch := r.store.NewBatch()

	for addr, storageDiff := range diff.StorageDiffs {
		for key, value := range storageDiff {
			if err := batch.Put(db.ContractStorage.Key(addr.Marshal(), key.Marshal()), value.Marshal()); err != nil {
				return err
			}
		}
	}
	for addr, nonce := range diff.Nonces {
		if err := batch.Put(db.ContractNonce.Key(addr.Marshal()), nonce.Marshal()); err != nil {
			return err
		}
	}
	for addr, classHash := range diff.DeployedContracts {
		if err := batch.Put(db.ContractClassHash.Key(addr.Marshal()), classHash.Marshal()); err != nil {
			return err
		}
	}
	for classHash, class := range diff.DeclaredClasses {
		encoded, err := encoder.Marshal(class)
		if err != nil {
			return err
		}
		if err := batch.Put(db.Class.Key(classHash.Marshal()), encoded); err != nil {
			return err
		}
	}

	if err := batch.Put(db.ChainHeight.Key(), binary.BigEndian.AppendUint64(nil, blockNumber)); err != nil {
		return err
	}
	return batch.Write()
}

func (r *DBReader) felt(key []byte) (felt.Felt, error) {
	var f felt.Felt
	err := r.store.Get(key, func(val []byte) error {
		f.SetBytes(val)
		return nil
	})
	return f, err
}

func (r *DBReader) feltOrZero(key []byte) (felt.Felt, error) {
	f, err := r.felt(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return felt.Zero, nil
	}
	return f, err
}
