package db

import "io"

// Represents a data store that can read from the database
type KeyValueReader interface {
	// Checks if a key exists in the data store
	Has(key []byte) (bool, error)
	// Retrieves a value for a given key if it exists, ErrKeyNotFound otherwise.
	// The value passed to cb is only valid for the duration of the callback.
	Get(key []byte, cb func(value []byte) error) error
}

// Represents a data store that can write to the database
type KeyValueWriter interface {
	// Inserts a given value into the data store
	Put(key []byte, value []byte) error
	// Deletes a given key from the data store
	Delete(key []byte) error
}

// Batch buffers writes until Write applies them atomically
type Batch interface {
	KeyValueWriter
	// Size of the buffered writes in bytes
	Size() int
	Write() error
	Reset()
}

type Batcher interface {
	NewBatch() Batch
}

// Represents a key-value data store that can handle different operations
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Batcher
	io.Closer
}
