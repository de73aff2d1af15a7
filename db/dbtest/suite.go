// Package dbtest holds the behaviour every db.KeyValueStore must share.
package dbtest

import (
	"testing"

	"github.com/NethermindEth/devnet/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noop = func(val []byte) error {
	return nil
}

// TestKeyValueStore runs the store conformance tests against stores built by newStore
func TestKeyValueStore(t *testing.T, newStore func(t *testing.T) db.KeyValueStore) {
	t.Helper()

	t.Run("get of a missing key", func(t *testing.T) {
		store := newStore(t)
		require.ErrorIs(t, store.Get([]byte("missing"), noop), db.ErrKeyNotFound)

		has, err := store.Has([]byte("missing"))
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("put then get", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put([]byte("key"), []byte("value")))

		has, err := store.Has([]byte("key"))
		require.NoError(t, err)
		assert.True(t, has)

		require.NoError(t, store.Get([]byte("key"), func(val []byte) error {
			assert.Equal(t, "value", string(val))
			return nil
		}))
	})

	t.Run("put overwrites", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put([]byte("key"), []byte("value1")))
		require.NoError(t, store.Put([]byte("key"), []byte("value2")))

		require.NoError(t, store.Get([]byte("key"), func(val []byte) error {
			assert.Equal(t, "value2", string(val))
			return nil
		}))
	})

	t.Run("stored value is not aliased to the caller's slice", func(t *testing.T) {
		store := newStore(t)
		value := []byte("value")
		require.NoError(t, store.Put([]byte("key"), value))
		value[0] = 'X'

		require.NoError(t, store.Get([]byte("key"), func(val []byte) error {
			assert.Equal(t, "value", string(val))
			return nil
		}))
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put([]byte("key"), []byte("value")))
		require.NoError(t, store.Delete([]byte("key")))
		require.ErrorIs(t, store.Get([]byte("key"), noop), db.ErrKeyNotFound)

		// deleting a missing key is not an error
		require.NoError(t, store.Delete([]byte("key")))
	})

	t.Run("callback error is returned", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put([]byte("key"), []byte("value")))

		cbErr := assert.AnError
		require.ErrorIs(t, store.Get([]byte("key"), func([]byte) error { return cbErr }), cbErr)
	})

	t.Run("batch is invisible until written", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put([]byte("gone"), []byte("soon")))

		b := store.NewBatch()
		require.NoError(t, b.Put([]byte("key1"), []byte("value1")))
		require.NoError(t, b.Put([]byte("key2"), []byte("value2")))
		require.NoError(t, b.Delete([]byte("gone")))
		assert.Equal(t, len("key1value1key2value2gone"), b.Size())

		require.ErrorIs(t, store.Get([]byte("key1"), noop), db.ErrKeyNotFound)

		require.NoError(t, b.Write())
		assert.Equal(t, 0, b.Size())

		for _, k := range []string{"key1", "key2"} {
			has, err := store.Has([]byte(k))
			require.NoError(t, err)
			assert.True(t, has, k)
		}
		require.ErrorIs(t, store.Get([]byte("gone"), noop), db.ErrKeyNotFound)
	})

	t.Run("batch writes are applied in order", func(t *testing.T) {
		store := newStore(t)

		b := store.NewBatch()
		require.NoError(t, b.Put([]byte("key"), []byte("value1")))
		require.NoError(t, b.Delete([]byte("key")))
		require.NoError(t, b.Put([]byte("key"), []byte("value2")))
		require.NoError(t, b.Write())

		require.NoError(t, store.Get([]byte("key"), func(val []byte) error {
			assert.Equal(t, "value2", string(val))
			return nil
		}))
	})

	t.Run("reset discards buffered writes", func(t *testing.T) {
		store := newStore(t)

		b := store.NewBatch()
		require.NoError(t, b.Put([]byte("key"), []byte("value")))
		b.Reset()
		assert.Equal(t, 0, b.Size())
		require.NoError(t, b.Write())

		require.ErrorIs(t, store.Get([]byte("key"), noop), db.ErrKeyNotFound)
	})

	t.Run("closed store", func(t *testing.T) {
		store := newStore(t)
		b := store.NewBatch()
		require.NoError(t, b.Put([]byte("key"), []byte("value")))
		require.NoError(t, store.Close())

		require.ErrorIs(t, store.Put([]byte("key"), []byte("value")), db.ErrClosed)
		require.ErrorIs(t, store.Get([]byte("key"), noop), db.ErrClosed)
		require.ErrorIs(t, b.Write(), db.ErrClosed)
	})
}
