package vfsruntime

import "context"

// Provider hands out store connections. Each open file handle acquires
// its own connection and releases it on close; connections are never
// shared across handles.
type Provider interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is a single connection to a key-value store. All access happens
// inside a transaction scope: the callback either completes and its
// effects become visible atomically, or it returns an error and prior
// state is left intact.
type Conn interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Txn) error) error

	// Update runs fn in a read-write transaction.
	Update(ctx context.Context, fn func(Txn) error) error

	// Close releases the connection. Further use is an error.
	Close() error
}

// Txn is the capability set the engine requires of a store transaction.
type Txn interface {
	// Get returns the value stored under key, or ok=false if absent.
	Get(key string) (value []byte, ok bool, err error)

	// Put stores value under key, replacing any prior value.
	Put(key string, value []byte) error

	// DeleteRange removes every key in [low, high], bounds inclusive.
	DeleteRange(low, high string) error

	// Scan calls fn for each key in [low, high] in ascending key order.
	// A non-nil error from fn stops the scan and is returned.
	Scan(low, high string, fn func(key string, value []byte) error) error
}
