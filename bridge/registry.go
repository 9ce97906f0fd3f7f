package bridge

import (
	"sync"

	"github.com/pagekv/vfs-runtime/file"
)

// Registry maps guest-chosen integer tokens to open file handles. The
// guest passes the address of its FILE object with every call; the host
// never dereferences it, the value is purely an opaque key.
//
// Lifecycle is explicit: insert on open, remove on close. The registry
// itself is mutex-guarded, but sequential use of any one file handle
// remains the guest's responsibility.
type Registry struct {
	mu     sync.Mutex
	files  map[uint32]*file.File
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		files: make(map[uint32]*file.File),
	}
}

// Insert associates token with f. It fails when the token is already in
// use or the registry is closed.
func (r *Registry) Insert(token uint32, f *file.File) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, exists := r.files[token]; exists {
		return false
	}
	r.files[token] = f
	return true
}

// Get returns the file registered under token.
func (r *Registry) Get(token uint32) (*file.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[token]
	return f, ok
}

// Remove drops the registration and returns the file, if any. The caller
// owns closing it.
func (r *Registry) Remove(token uint32) (*file.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[token]
	if ok {
		delete(r.files, token)
	}
	return f, ok
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// Close closes every registered file and stops accepting inserts.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for token, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.files, token)
	}
	return firstErr
}
