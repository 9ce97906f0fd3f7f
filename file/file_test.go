package file

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	verrors "github.com/pagekv/vfs-runtime/errors"
	"github.com/pagekv/vfs-runtime/page"
	"github.com/pagekv/vfs-runtime/store"
)

func newTestFile(t *testing.T, mode string) (*File, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	f, err := Open(context.Background(), s, "test.bin", mode)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f, s
}

func wantKind(t *testing.T, err error, kind verrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if !verrors.IsKind(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func TestRoundTrip_MultiplePages(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	content := make([]byte, 3*page.Size+17)
	rand.New(rand.NewSource(1)).Read(content)

	if err := f.Write(ctx, content, 1); err != nil {
		t.Fatal(err)
	}
	if err := f.Seek(0, SeekStart); err != nil {
		t.Fatal(err)
	}

	got, err := f.Read(ctx, 1, len(content))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("round trip mismatch: got %d bytes", len(got))
	}
}

func TestRead_ElementAlignment(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	content := make([]byte, 1024)
	rand.New(rand.NewSource(2)).Read(content)

	if err := f.Write(ctx, content, 1); err != nil {
		t.Fatal(err)
	}
	f.Seek(0, SeekStart)

	// A request for more 3-byte elements than fit is satisfied only up
	// to the last whole element: 1024 - (1024 mod 3) = 1023 bytes.
	got, err := f.Read(ctx, 3, 999)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1023 {
		t.Fatalf("read %d bytes, want 1023", len(got))
	}
	if !bytes.Equal(got, content[:1023]) {
		t.Fatal("element-aligned read returned wrong bytes")
	}
}

func TestRead_EOFAtExactPageMultiple(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	content := make([]byte, page.Size)
	rand.New(rand.NewSource(3)).Read(content)

	if err := f.Write(ctx, content, 1); err != nil {
		t.Fatal(err)
	}
	f.Seek(0, SeekStart)

	got, err := f.Read(ctx, 1, page.Size)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != page.Size {
		t.Fatalf("read %d bytes, want %d", len(got), page.Size)
	}

	// The file is exactly one page; consuming it all must put the
	// cursor at EOF, not silently return an empty result.
	_, err = f.Read(ctx, 1, 1)
	wantKind(t, err, verrors.KindEndOfFile)
}

func TestRead_PartialThenEOF(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	if err := f.Write(ctx, []byte("0123456789"), 1); err != nil {
		t.Fatal(err)
	}
	f.Seek(0, SeekStart)

	// Requesting past the end returns the remainder without raising.
	got, err := f.Read(ctx, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "0123456789" {
		t.Fatalf("partial read = %q", got)
	}

	// The next read, already exactly at EOF, raises.
	_, err = f.Read(ctx, 1, 1)
	wantKind(t, err, verrors.KindEndOfFile)
}

func TestRead_AcrossPageBoundary(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	content := make([]byte, page.Size+20)
	rand.New(rand.NewSource(4)).Read(content)

	if err := f.Write(ctx, content, 1); err != nil {
		t.Fatal(err)
	}
	if err := f.Seek(page.Size-5, SeekStart); err != nil {
		t.Fatal(err)
	}

	got, err := f.Read(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content[page.Size-5:page.Size+5]) {
		t.Fatal("read straddling a page boundary returned wrong bytes")
	}
	if f.Tell() != page.Size+5 {
		t.Fatalf("Tell() = %d after boundary read", f.Tell())
	}
}

func TestRead_NoMetadata(t *testing.T) {
	f, _ := newTestFile(t, "w")
	_, err := f.Read(context.Background(), 1, 1)
	wantKind(t, err, verrors.KindNotFound)
}

func TestWrite_CursorAccumulates(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	first := []byte("hello world")
	second := []byte("goodbye")

	if err := f.Write(ctx, first, 1); err != nil {
		t.Fatal(err)
	}
	if f.Tell() != int64(len(first)) {
		t.Fatalf("Tell() = %d after first write, want %d", f.Tell(), len(first))
	}

	// Write never resets the cursor; repeated writes accumulate.
	if err := f.Write(ctx, second, 1); err != nil {
		t.Fatal(err)
	}
	if f.Tell() != int64(len(first)+len(second)) {
		t.Fatalf("Tell() = %d after second write, want %d", f.Tell(), len(first)+len(second))
	}

	// Content itself was replaced wholesale.
	f.Seek(0, SeekStart)
	got, err := f.Read(ctx, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, second) {
		t.Fatalf("content = %q, want %q", got, second)
	}
}

func TestWrite_ShrinkLeavesNoOrphanPages(t *testing.T) {
	ctx := context.Background()
	f, s := newTestFile(t, "w")

	long := make([]byte, 2*page.Size+100)
	rand.New(rand.NewSource(5)).Read(long)
	if err := f.Write(ctx, long, 1); err != nil {
		t.Fatal(err)
	}

	short := []byte("tiny")
	if err := f.Write(ctx, short, 2); err != nil {
		t.Fatal(err)
	}

	// Only the metadata record and one page remain stored.
	if got := s.Len(); got != 2 {
		t.Fatalf("store holds %d keys after shrink, want 2", got)
	}

	f.Seek(0, SeekStart)
	got, err := f.Read(ctx, 1, len(long))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, short) {
		t.Fatalf("read %d bytes after shrink, want %d", len(got), len(short))
	}
}

func TestWrite_ReadOnlyHandle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	w, err := Open(ctx, s, "f", "w")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(ctx, []byte("data"), 1); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := Open(ctx, s, "f", "r")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	err = r.Write(ctx, []byte("nope"), 1)
	wantKind(t, err, verrors.KindReadOnly)
}

func TestWrite_InvalidVersion(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	for _, version := range []int{0, -1, -100} {
		err := f.Write(ctx, []byte("data"), version)
		wantKind(t, err, verrors.KindInvalidVersion)
	}

	if err := f.Write(ctx, []byte("data"), 7); err != nil {
		t.Fatal(err)
	}
}

func TestWrite_EmptyContent(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	if err := f.Write(ctx, nil, 1); err != nil {
		t.Fatal(err)
	}
	if !f.Exists() {
		t.Fatal("empty file should exist after write")
	}
	if f.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", f.Size())
	}

	_, err := f.Read(ctx, 1, 1)
	wantKind(t, err, verrors.KindEndOfFile)
}

func TestSeek_Clamping(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	content := make([]byte, 1000)
	if err := f.Write(ctx, content, 1); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		offset int64
		whence int
		want   int64
	}{
		{0, SeekStart, 0},
		{500, SeekStart, 500},
		{1100, SeekStart, 1000}, // clamped to size
		{0, SeekEnd, 1000},
		{100, SeekEnd, 1000}, // clamped to size
	}
	for _, tt := range tests {
		if err := f.Seek(tt.offset, tt.whence); err != nil {
			t.Fatal(err)
		}
		if got := f.Tell(); got != tt.want {
			t.Errorf("Seek(%d, %d): Tell() = %d, want %d", tt.offset, tt.whence, got, tt.want)
		}
	}
}

func TestSeek_CurrentIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	if err := f.Write(ctx, make([]byte, 1000), 1); err != nil {
		t.Fatal(err)
	}
	f.Seek(100, SeekStart)

	if err := f.Seek(50, SeekCurrent); err != nil {
		t.Fatal(err)
	}
	if f.Tell() != 150 {
		t.Fatalf("Tell() = %d, want 150", f.Tell())
	}

	// Relative seeks clamp at size too.
	if err := f.Seek(10000, SeekCurrent); err != nil {
		t.Fatal(err)
	}
	if f.Tell() != 1000 {
		t.Fatalf("Tell() = %d, want 1000", f.Tell())
	}
}

func TestSeek_NegativeOffsetRejected(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	if err := f.Write(ctx, make([]byte, 100), 1); err != nil {
		t.Fatal(err)
	}

	for _, whence := range []int{SeekStart, SeekCurrent, SeekEnd} {
		err := f.Seek(-1, whence)
		wantKind(t, err, verrors.KindEndOfFile)
	}
}

func TestSeek_InvalidWhence(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	if err := f.Write(ctx, make([]byte, 100), 1); err != nil {
		t.Fatal(err)
	}

	err := f.Seek(0, 3)
	wantKind(t, err, verrors.KindInvalidArgument)
}

func TestSeek_NoMetadata(t *testing.T) {
	f, _ := newTestFile(t, "w")
	err := f.Seek(0, SeekStart)
	wantKind(t, err, verrors.KindNotFound)
}

func TestOpen_ReadOnlyMissingFile(t *testing.T) {
	_, err := Open(context.Background(), store.NewMemory(), "missing", "r")
	wantKind(t, err, verrors.KindNotFound)
}

func TestOpen_WriteModeMissingFile(t *testing.T) {
	// Write-mode open of a non-existent path is "create on first write".
	f, _ := newTestFile(t, "w")
	if f.Exists() {
		t.Fatal("file should not exist before first write")
	}
}

func TestRemove_ThenExists(t *testing.T) {
	ctx := context.Background()
	f, s := newTestFile(t, "w")

	if err := f.Write(ctx, []byte("data"), 1); err != nil {
		t.Fatal(err)
	}
	if err := f.Remove(ctx); err != nil {
		t.Fatal(err)
	}

	// Authoritative check against the store.
	exists, err := Exists(ctx, s, "test.bin")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("file still exists in store after Remove")
	}
	if s.Len() != 0 {
		t.Fatalf("store holds %d keys after Remove", s.Len())
	}

	// The stale handle fails with not_found until a new write.
	_, err = f.Read(ctx, 1, 1)
	wantKind(t, err, verrors.KindNotFound)

	if f.Exists() {
		t.Fatal("handle Exists() should reflect the cleared snapshot")
	}
}

func TestRemove_NoMetadata(t *testing.T) {
	f, _ := newTestFile(t, "w")
	err := f.Remove(context.Background())
	wantKind(t, err, verrors.KindNotFound)
}

func TestRemove_Static(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	f, err := Open(ctx, s, "f", "w")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Write(ctx, make([]byte, page.Size+1), 1); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := Remove(ctx, s, "f"); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Fatalf("store holds %d keys after package-level Remove", s.Len())
	}

	err = Remove(ctx, s, "f")
	wantKind(t, err, verrors.KindNotFound)
}

func TestClose_InvalidatesHandle(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	if err := f.Write(ctx, []byte("data"), 1); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := f.Read(ctx, 1, 1); !verrors.IsKind(err, verrors.KindClosed) {
		t.Fatalf("Read after Close = %v, want closed", err)
	}
	if err := f.Write(ctx, []byte("x"), 1); !verrors.IsKind(err, verrors.KindClosed) {
		t.Fatalf("Write after Close = %v, want closed", err)
	}
	if err := f.Seek(0, SeekStart); !verrors.IsKind(err, verrors.KindClosed) {
		t.Fatalf("Seek after Close = %v, want closed", err)
	}
	if err := f.Remove(ctx); !verrors.IsKind(err, verrors.KindClosed) {
		t.Fatalf("Remove after Close = %v, want closed", err)
	}
	if err := f.Close(); !verrors.IsKind(err, verrors.KindClosed) {
		t.Fatalf("second Close = %v, want closed", err)
	}
	if f.Exists() {
		t.Fatal("Exists() on closed handle should be false")
	}
}

func TestOpen_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	w, err := Open(ctx, s, "f", "w")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Write(ctx, []byte("data"), 1); err != nil {
		t.Fatal(err)
	}

	r, err := Open(ctx, s, "f", "r")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Another handle removes the file; r's cached snapshot still says it
	// exists, the authoritative package-level check does not.
	if err := w.Remove(ctx); err != nil {
		t.Fatal(err)
	}
	if !r.Exists() {
		t.Fatal("handle Exists() must reflect its own snapshot")
	}
	exists, err := Exists(ctx, s, "f")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("authoritative Exists must see the removal")
	}
}

func TestRead_VersionPreserved(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFile(t, "w")

	if err := f.Write(ctx, []byte("data"), 42); err != nil {
		t.Fatal(err)
	}
	if f.meta.Version != 42 {
		t.Fatalf("version = %d, want 42", f.meta.Version)
	}
}

func TestErrorsSurfaceVerbatim(t *testing.T) {
	// A store failure during read must surface wrapped, not swallowed.
	ctx := context.Background()
	f, s := newTestFile(t, "w")

	if err := f.Write(ctx, []byte("data"), 1); err != nil {
		t.Fatal(err)
	}
	f.Seek(0, SeekStart)

	// Cancelled context aborts the store transaction.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := f.Read(cancelled, 1, 4)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cause not preserved: %v", err)
	}
	_ = s
}
