package memory

import (
	"slices"

	"github.com/NethermindEth/devnet/db"
)

var _ db.Batch = (*batch)(nil)

type batch struct {
	db *Database
	// Writes are kept in order to mimic the behaviour of the real key-value store.
	writes []keyValue
	size   int
}

type keyValue struct {
	key    string
	value  []byte
	delete bool
}

func newBatch(db *Database) *batch {
	return &batch{db: db}
}

func (b *batch) Put(key, value []byte) error {
	b.writes = append(b.writes, keyValue{key: string(key), value: slices.Clone(value)})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyValue{key: string(key), delete: true})
	b.size += len(key)
	return nil
}

func (b *batch) Size() int {
	return b.size
}

func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return db.ErrClosed
	}

	for _, write := range b.writes {
		if write.delete {
			delete(b.db.db, write.key)
		} else {
			b.db.db[write.key] = write.value
		}
	}

	b.Reset()
	return nil
}

func (b *batch) Reset() {
	b.size = 0
	b.writes = b.writes[:0] // reuse the memory
}
