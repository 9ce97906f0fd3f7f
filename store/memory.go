package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	vfsruntime "github.com/pagekv/vfs-runtime"
)

// Memory is an in-memory ordered key-value store. It implements
// vfsruntime.Provider and is safe for concurrent use. Transactions are
// staged in an overlay and applied atomically on success, so a failing
// update leaves prior state intact.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

// Connect returns a new connection sharing this store's contents.
func (s *Memory) Connect(ctx context.Context) (vfsruntime.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memConn{store: s}, nil
}

// Len returns the number of stored keys.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

type memConn struct {
	store  *Memory
	mu     sync.Mutex
	closed bool
}

func (c *memConn) View(ctx context.Context, fn func(vfsruntime.Txn) error) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	return fn(&memTxn{base: c.store.data})
}

func (c *memConn) Update(ctx context.Context, fn func(vfsruntime.Txn) error) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	txn := &memTxn{
		base:     c.store.data,
		writable: true,
		overlay:  make(map[string][]byte),
	}
	if err := fn(txn); err != nil {
		return err
	}

	for key, value := range txn.overlay {
		if value == nil {
			delete(c.store.data, key)
		} else {
			c.store.data[key] = value
		}
	}
	return nil
}

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memConn) check(ctx context.Context) error {
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

// memTxn stages writes in an overlay; a nil overlay value marks a delete.
type memTxn struct {
	base     map[string][]byte
	overlay  map[string][]byte
	writable bool
}

func (t *memTxn) Get(key string) ([]byte, bool, error) {
	if t.overlay != nil {
		if value, staged := t.overlay[key]; staged {
			if value == nil {
				return nil, false, nil
			}
			return append([]byte(nil), value...), true, nil
		}
	}
	value, ok := t.base[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (t *memTxn) Put(key string, value []byte) error {
	if !t.writable {
		return fmt.Errorf("put %q in read-only transaction", key)
	}
	t.overlay[key] = append([]byte(nil), value...)
	return nil
}

func (t *memTxn) DeleteRange(low, high string) error {
	if !t.writable {
		return fmt.Errorf("delete range in read-only transaction")
	}
	for key := range t.base {
		if key >= low && key <= high {
			t.overlay[key] = nil
		}
	}
	for key, value := range t.overlay {
		if value != nil && key >= low && key <= high {
			t.overlay[key] = nil
		}
	}
	return nil
}

func (t *memTxn) Scan(low, high string, fn func(key string, value []byte) error) error {
	var keys []string
	for key := range t.base {
		if key >= low && key <= high {
			keys = append(keys, key)
		}
	}
	if t.overlay != nil {
		for key, value := range t.overlay {
			if value != nil && key >= low && key <= high {
				if _, inBase := t.base[key]; !inBase {
					keys = append(keys, key)
				}
			}
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok, err := t.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}
