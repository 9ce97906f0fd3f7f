// Package file implements the paged virtual file engine.
//
// A File presents a seekable, appendable, randomly readable byte stream
// over a key-value store, with POSIX stream semantics: element-aligned
// partial reads, EOF detection, and absolute/relative/end-relative seeks.
// Content is split into fixed 64KiB pages (see package page), each stored
// under its own key; a small metadata record under the file's path key is
// the source of truth for size and seek bounds.
//
// Every Read, Write and Remove runs as one atomic store transaction.
// Write always replaces the entire file content: the full prior key range
// is deleted before new pages are written, so orphan pages never exist.
//
// A File is not safe for concurrent use. Operations must be invoked
// sequentially; serializing access is the caller's responsibility.
package file
