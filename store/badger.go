package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	vfsruntime "github.com/pagekv/vfs-runtime"
)

// BadgerConfig holds configuration for a Badger-backed store.
type BadgerConfig struct {
	// Dir is the directory Badger keeps its data in. Ignored when
	// InMemory is set.
	Dir string

	// InMemory runs Badger without touching disk. Contents are lost on
	// Close.
	InMemory bool
}

// Badger is a persistent ordered key-value store backed by BadgerDB.
// It implements vfsruntime.Provider. One Badger owns the database;
// connections handed to file handles share it and only track their own
// closed state.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a Badger database per cfg.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	opts.InMemory = cfg.InMemory
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

// Connect returns a new connection to the database.
func (s *Badger) Connect(ctx context.Context) (vfsruntime.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &badgerConn{db: s.db}, nil
}

// Close releases the underlying database. Outstanding connections become
// unusable.
func (s *Badger) Close() error {
	return s.db.Close()
}

type badgerConn struct {
	db     *badger.DB
	mu     sync.Mutex
	closed bool
}

func (c *badgerConn) View(ctx context.Context, fn func(vfsruntime.Txn) error) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

func (c *badgerConn) Update(ctx context.Context, fn func(vfsruntime.Txn) error) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

func (c *badgerConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *badgerConn) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection is closed")
	}
	return nil
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) Get(key string) ([]byte, bool, error) {
	item, err := t.txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *badgerTxn) Put(key string, value []byte) error {
	return t.txn.Set([]byte(key), append([]byte(nil), value...))
}

func (t *badgerTxn) DeleteRange(low, high string) error {
	// Badger has no native range delete; collect matching keys first,
	// then delete inside the same transaction.
	var keys [][]byte

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)
	for it.Seek([]byte(low)); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		if string(key) > high {
			break
		}
		keys = append(keys, key)
	}
	it.Close()

	for _, key := range keys {
		if err := t.txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTxn) Scan(low, high string, fn func(key string, value []byte) error) error {
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek([]byte(low)); it.Valid(); it.Next() {
		item := it.Item()
		key := string(item.Key())
		if key > high {
			break
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}
