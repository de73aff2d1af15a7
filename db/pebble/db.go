package pebble

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NethermindEth/devnet/db"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var _ db.KeyValueStore = (*DB)(nil)

type DB struct {
	pebble   *pebble.DB
	listener db.EventListener
	// closeLock guards closed so that batches are not written to a closed store
	closeLock sync.RWMutex
	closed    bool
}

// New opens a new database at the given path
func New(path string, logger pebble.Logger) (*DB, error) {
	return newPebble(path, &pebble.Options{Logger: logger})
}

// NewMem opens a new in-memory database
func NewMem() (*DB, error) {
	return newPebble("", &pebble.Options{
		FS: vfs.NewMem(),
	})
}

// NewMemTest opens a new in-memory database that is closed when the test ends
func NewMemTest(t testing.TB) *DB {
	t.Helper()

	memDB, err := NewMem()
	if err != nil {
		t.Fatalf("create in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if err := memDB.Close(); err != nil && !errors.Is(err, db.ErrClosed) {
			t.Errorf("close in-memory db: %v", err)
		}
	})
	return memDB
}

func newPebble(path string, options *pebble.Options) (*DB, error) {
	pDB, err := pebble.Open(path, options)
	if err != nil {
		return nil, err
	}
	return &DB{pebble: pDB, listener: &db.SelectiveListener{}}, nil
}

// WithListener registers an EventListener
func (d *DB) WithListener(listener db.EventListener) *DB {
	d.listener = listener
	return d
}

func (d *DB) Has(key []byte) (bool, error) {
	d.closeLock.RLock()
	defer d.closeLock.RUnlock()
	if d.closed {
		return false, db.ErrClosed
	}
	defer d.listener.OnIO(false, time.Now())

	_, closer, err := d.pebble.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, closer.Close()
}

func (d *DB) Get(key []byte, cb func(value []byte) error) error {
	d.closeLock.RLock()
	defer d.closeLock.RUnlock()
	if d.closed {
		return db.ErrClosed
	}
	defer d.listener.OnIO(false, time.Now())

	val, closer, err := d.pebble.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return db.ErrKeyNotFound
		}
		return err
	}

	if err := cb(val); err != nil {
		return errors.Join(err, closer.Close())
	}
	return closer.Close()
}

func (d *DB) Put(key, value []byte) error {
	d.closeLock.RLock()
	defer d.closeLock.RUnlock()
	if d.closed {
		return db.ErrClosed
	}
	defer d.listener.OnIO(true, time.Now())
	return d.pebble.Set(key, value, pebble.Sync)
}

func (d *DB) Delete(key []byte) error {
	d.closeLock.RLock()
	defer d.closeLock.RUnlock()
	if d.closed {
		return db.ErrClosed
	}
	defer d.listener.OnIO(true, time.Now())
	return d.pebble.Delete(key, pebble.Sync)
}

func (d *DB) NewBatch() db.Batch {
	return &batch{batch: d.pebble.NewBatch(), db: d}
}

// Close : see io.Closer.Close
func (d *DB) Close() error {
	d.closeLock.Lock()
	defer d.closeLock.Unlock()

	if d.closed {
		return db.ErrClosed
	}
	d.closed = true
	return d.pebble.Close()
}

// Impl returns the underlying pebble instance
func (d *DB) Impl() *pebble.DB {
	return d.pebble
}
