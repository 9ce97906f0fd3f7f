package page

import (
	"encoding/json"
	"fmt"
)

// Metadata is the record stored under the file's path key. It is the
// source of truth for EOF detection and seek bounds. It is created on
// first write, replaced wholesale on every subsequent write, and deleted
// on remove.
type Metadata struct {
	// Size is the total logical byte length of the file.
	Size int64 `json:"size"`

	// PageCount is ceil(Size / page.Size), the number of page records.
	PageCount int `json:"pageCount"`

	// Version is caller-supplied and only used for freshness comparisons
	// by callers. The engine stores it but does not enforce anything
	// beyond positivity at write time.
	Version int `json:"version"`
}

// NewMetadata builds the record for content of the given length.
func NewMetadata(size int64, version int) Metadata {
	return Metadata{
		Size:      size,
		PageCount: Count(size),
		Version:   version,
	}
}

// Encode serializes the record for storage.
func (m Metadata) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// DecodeMetadata parses a stored record.
func DecodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

// LastKey returns the upper bound of the file's key range, one index past
// the last stored page. Range deletions span [path, LastKey(path)] so a
// shrinking rewrite purges every stale page.
func (m Metadata) LastKey(path string) string {
	return Key(path, m.PageCount)
}
