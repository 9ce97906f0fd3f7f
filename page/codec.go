// Package page maps byte offsets onto fixed-size store pages and defines
// the metadata record that accompanies a stored file.
package page

import "fmt"

// Size is the fixed page size in bytes. It is shared by every file in a
// store and is not configurable per file.
const Size = 65536

// indexDigits is the zero-padded width of the page index in a page key.
// Keys must sort lexicographically in numeric page order, which holds for
// indices 0-9999.
const indexDigits = 4

// Cursor is a stream position expressed as a page index plus an offset
// within that page. Off stays in [0, Size); it wraps to 0 and Page
// increments exactly when Off reaches Size.
type Cursor struct {
	Page int
	Off  int
}

// Offset returns the absolute byte offset the cursor points at.
func (c Cursor) Offset() int64 {
	return int64(c.Page)*Size + int64(c.Off)
}

// CursorAt returns the cursor for an absolute byte offset.
func CursorAt(offset int64) Cursor {
	return Cursor{
		Page: int(offset / Size),
		Off:  int(offset % Size),
	}
}

// Key returns the store key for one page of a file. Keys for a given path
// sort lexicographically in page order, so range scans walk pages in
// stream order.
func Key(path string, index int) string {
	return fmt.Sprintf("%s-%0*d", path, indexDigits, index)
}

// Count returns the number of pages needed to hold size bytes.
func Count(size int64) int {
	return int((size + Size - 1) / Size)
}
