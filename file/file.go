package file

import (
	"context"
	stderrors "errors"
	"strings"

	"go.uber.org/zap"

	vfsruntime "github.com/pagekv/vfs-runtime"
	"github.com/pagekv/vfs-runtime/errors"
	"github.com/pagekv/vfs-runtime/page"
)

// Seek whence values, matching fseek.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// errStopScan aborts a page scan early once enough bytes were copied.
var errStopScan = stderrors.New("stop scan")

// File is an open handle on a paged virtual file. It owns one store
// connection for its lifetime; Close releases it. A File must be used by
// a single goroutine at a time.
type File struct {
	conn     vfsruntime.Conn
	log      *zap.Logger
	path     string
	readOnly bool
	meta     *page.Metadata
	cursor   page.Cursor
	closed   bool
}

// Option configures an Open call.
type Option func(*File)

// WithLogger sets the handle's logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(f *File) {
		if log != nil {
			f.log = log
		}
	}
}

// Open acquires a store connection and fetches the metadata record for
// path. A mode containing 'r' opens the file read-only; any other mode
// opens it read-write. Opening read-only fails with a not_found error
// when the file does not exist; a write-mode open of a missing path
// succeeds and represents "create on first write".
func Open(ctx context.Context, provider vfsruntime.Provider, path, mode string, opts ...Option) (*File, error) {
	conn, err := provider.Connect(ctx)
	if err != nil {
		return nil, errors.Store(errors.OpConnect, path, err)
	}

	f := &File{
		conn:     conn,
		log:      zap.NewNop(),
		path:     path,
		readOnly: strings.Contains(mode, "r"),
	}
	for _, opt := range opts {
		opt(f)
	}

	meta, err := fetchMetadata(ctx, conn, path)
	if err != nil {
		conn.Close()
		return nil, errors.Store(errors.OpOpen, path, err)
	}
	f.meta = meta

	if f.readOnly && f.meta == nil {
		conn.Close()
		return nil, errors.NotFound(errors.OpOpen, path)
	}

	f.log.Debug("opened virtual file",
		zap.String("path", path),
		zap.Bool("readOnly", f.readOnly),
		zap.Bool("exists", f.meta != nil))

	return f, nil
}

// Close releases the store connection. Every later operation on the
// handle fails with a closed error.
func (f *File) Close() error {
	if f.closed {
		return errors.Closed(errors.OpClose, f.path)
	}
	f.closed = true
	if err := f.conn.Close(); err != nil {
		return errors.Store(errors.OpClose, f.path, err)
	}
	return nil
}

// Read copies up to elementCount elements of elementSize bytes from the
// cursor, walking forward across pages, and advances the cursor. The
// request is truncated down to the last whole element that fits within
// the file, mirroring fread's element alignment. Fewer bytes than
// requested may be returned when EOF is reached mid-copy; that is not an
// error. A Read issued with the cursor already at EOF fails with an
// end_of_file error.
func (f *File) Read(ctx context.Context, elementSize, elementCount int) ([]byte, error) {
	if f.closed {
		return nil, errors.Closed(errors.OpRead, f.path)
	}
	if f.meta == nil {
		return nil, errors.NotFound(errors.OpRead, f.path)
	}
	if elementSize < 1 || elementCount < 0 {
		return nil, errors.InvalidArgument(errors.OpRead, f.path, "element size and count must be positive")
	}
	if f.atEOF() {
		return nil, errors.EndOfFile(errors.OpRead, f.path)
	}

	maxBytes := int64(elementSize) * int64(elementCount)
	if maxBytes > f.meta.Size {
		maxBytes = f.meta.Size
	}
	maxBytes -= maxBytes % int64(elementSize)
	if maxBytes == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, 0, maxBytes)
	cur := f.cursor

	err := f.conn.View(ctx, func(txn vfsruntime.Txn) error {
		low := page.Key(f.path, cur.Page)
		high := page.Key(f.path, f.meta.PageCount-1)
		return txn.Scan(low, high, func(key string, value []byte) error {
			if int64(len(buf)) >= maxBytes {
				return errStopScan
			}
			if cur.Off >= len(value) {
				// Cursor sits at the end of a short final page.
				return errStopScan
			}

			take := int64(len(value) - cur.Off)
			if remaining := maxBytes - int64(len(buf)); take > remaining {
				take = remaining
			}

			buf = append(buf, value[cur.Off:cur.Off+int(take)]...)
			cur.Off += int(take)
			if cur.Off == page.Size {
				cur.Page++
				cur.Off = 0
			}
			return nil
		})
	})
	if err != nil && err != errStopScan {
		return nil, errors.Store(errors.OpRead, f.path, err)
	}

	f.cursor = cur
	return buf, nil
}

// Write replaces the entire file content in one transaction: the full
// prior key range is deleted, then a new metadata record and fresh pages
// are written. The cached metadata is updated; the cursor is not reset,
// it advances by len(content) from its prior position. Version must be
// positive and is stored for callers' freshness checks only.
func (f *File) Write(ctx context.Context, content []byte, version int) error {
	if f.closed {
		return errors.Closed(errors.OpWrite, f.path)
	}
	if f.readOnly {
		return errors.ReadOnly(errors.OpWrite, f.path)
	}
	if version < 1 {
		return errors.InvalidVersion(errors.OpWrite, f.path, version)
	}

	meta := page.NewMetadata(int64(len(content)), version)
	encoded, err := meta.Encode()
	if err != nil {
		return errors.Store(errors.OpWrite, f.path, err)
	}

	err = f.conn.Update(ctx, func(txn vfsruntime.Txn) error {
		if f.meta != nil {
			if err := txn.DeleteRange(f.path, f.meta.LastKey(f.path)); err != nil {
				return err
			}
		}
		if err := txn.Put(f.path, encoded); err != nil {
			return err
		}
		for i := 0; i < meta.PageCount; i++ {
			start := i * page.Size
			end := start + page.Size
			if end > len(content) {
				end = len(content)
			}
			if err := txn.Put(page.Key(f.path, i), content[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Store(errors.OpWrite, f.path, err)
	}

	f.meta = &meta
	f.cursor = page.CursorAt(f.cursor.Offset() + int64(len(content)))

	f.log.Debug("wrote virtual file",
		zap.String("path", f.path),
		zap.Int64("size", meta.Size),
		zap.Int("pages", meta.PageCount),
		zap.Int("version", meta.Version))

	return nil
}

// Seek repositions the cursor. Whence 0 is absolute, 1 is relative to the
// current position, 2 is relative to the end; the target is clamped to
// [0, size] in every mode. Offset must be non-negative; a negative offset
// fails with an end_of_file kind error, matching the original engine's
// error surface. Seek touches only the cached metadata, never the store.
func (f *File) Seek(offset int64, whence int) error {
	if f.closed {
		return errors.Closed(errors.OpSeek, f.path)
	}
	if f.meta == nil {
		return errors.NotFound(errors.OpSeek, f.path)
	}
	if offset < 0 {
		return errors.NegativeOffset(errors.OpSeek, f.path, offset)
	}

	var target int64
	switch whence {
	case SeekStart:
		target = offset
	case SeekCurrent:
		target = f.cursor.Offset() + offset
	case SeekEnd:
		target = f.meta.Size + offset
	default:
		return errors.InvalidArgument(errors.OpSeek, f.path, "whence must be 0, 1 or 2")
	}

	if target > f.meta.Size {
		target = f.meta.Size
	}
	f.cursor = page.CursorAt(target)
	return nil
}

// Tell returns the cursor's absolute byte offset. It is a pure function
// of handle state and never fails.
func (f *File) Tell() int64 {
	return f.cursor.Offset()
}

// Remove deletes the metadata record and every page of the file in one
// transaction, then clears the cached metadata. Later operations that
// require metadata fail with not_found until a new Write.
func (f *File) Remove(ctx context.Context) error {
	if f.closed {
		return errors.Closed(errors.OpRemove, f.path)
	}
	if f.meta == nil {
		return errors.NotFound(errors.OpRemove, f.path)
	}

	err := f.conn.Update(ctx, func(txn vfsruntime.Txn) error {
		return txn.DeleteRange(f.path, f.meta.LastKey(f.path))
	})
	if err != nil {
		return errors.Store(errors.OpRemove, f.path, err)
	}

	f.meta = nil
	f.log.Debug("removed virtual file", zap.String("path", f.path))
	return nil
}

// Exists reports whether the handle's cached metadata snapshot is
// present. It never queries the store; for an authoritative check use the
// package-level Exists.
func (f *File) Exists() bool {
	return !f.closed && f.meta != nil
}

// Path returns the file's immutable identity.
func (f *File) Path() string {
	return f.path
}

// Size returns the logical file size per the cached metadata, or 0 when
// the file does not exist.
func (f *File) Size() int64 {
	if f.meta == nil {
		return 0
	}
	return f.meta.Size
}

// atEOF reports whether the cursor is at or beyond the logical end.
// When size is an exact multiple of the page size, EOF holds as soon as
// the cursor reaches the start of the page past the content.
func (f *File) atEOF() bool {
	return f.cursor.Page >= f.meta.PageCount-1 &&
		int64(f.cursor.Off) >= f.meta.Size%page.Size
}

// Exists performs a fresh, authoritative existence check against the
// store, independent of any open handle's snapshot.
func Exists(ctx context.Context, provider vfsruntime.Provider, path string) (bool, error) {
	conn, err := provider.Connect(ctx)
	if err != nil {
		return false, errors.Store(errors.OpConnect, path, err)
	}
	defer conn.Close()

	meta, err := fetchMetadata(ctx, conn, path)
	if err != nil {
		return false, errors.Store(errors.OpExists, path, err)
	}
	return meta != nil, nil
}

// Remove deletes a file by path without an open handle, in one
// transaction spanning the metadata key and the full page range.
func Remove(ctx context.Context, provider vfsruntime.Provider, path string) error {
	conn, err := provider.Connect(ctx)
	if err != nil {
		return errors.Store(errors.OpConnect, path, err)
	}
	defer conn.Close()

	meta, err := fetchMetadata(ctx, conn, path)
	if err != nil {
		return errors.Store(errors.OpRemove, path, err)
	}
	if meta == nil {
		return errors.NotFound(errors.OpRemove, path)
	}

	err = conn.Update(ctx, func(txn vfsruntime.Txn) error {
		return txn.DeleteRange(path, meta.LastKey(path))
	})
	if err != nil {
		return errors.Store(errors.OpRemove, path, err)
	}
	return nil
}

func fetchMetadata(ctx context.Context, conn vfsruntime.Conn, path string) (*page.Metadata, error) {
	var meta *page.Metadata
	err := conn.View(ctx, func(txn vfsruntime.Txn) error {
		data, ok, err := txn.Get(path)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		m, err := page.DecodeMetadata(data)
		if err != nil {
			return err
		}
		meta = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}
