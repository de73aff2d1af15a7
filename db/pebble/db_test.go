package pebble_test

import (
	"testing"
	"time"

	"github.com/NethermindEth/devnet/db"
	"github.com/NethermindEth/devnet/db/dbtest"
	"github.com/NethermindEth/devnet/db/pebble"
	"github.com/NethermindEth/devnet/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB(t *testing.T) {
	dbtest.TestKeyValueStore(t, func(t *testing.T) db.KeyValueStore {
		return pebble.NewMemTest(t)
	})
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := pebble.New(dir, utils.NewNopZapLogger())
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("key"), []byte("value")))
	require.NoError(t, store.Close())
	require.ErrorIs(t, store.Close(), db.ErrClosed)

	store, err = pebble.New(dir, utils.NewNopZapLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	require.NoError(t, store.Get([]byte("key"), func(val []byte) error {
		assert.Equal(t, "value", string(val))
		return nil
	}))
}

func TestListener(t *testing.T) {
	var reads, writes, commits int
	store := pebble.NewMemTest(t).WithListener(&db.SelectiveListener{
		OnIOCb: func(write bool, _ time.Duration) {
			if write {
				writes++
			} else {
				reads++
			}
		},
		OnCommitCb: func(time.Duration) {
			commits++
		},
	})

	require.NoError(t, store.Put([]byte("key"), []byte("value")))
	require.NoError(t, store.Delete([]byte("key")))
	_, err := store.Has([]byte("key"))
	require.NoError(t, err)

	b := store.NewBatch()
	require.NoError(t, b.Put([]byte("key"), []byte("value")))
	require.NoError(t, b.Write())

	assert.Equal(t, 1, reads)
	assert.Equal(t, 2, writes)
	assert.Equal(t, 1, commits)
}
