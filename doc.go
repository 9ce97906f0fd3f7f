// Package vfsruntime provides a paged virtual file abstraction for
// WebAssembly guests backed by a host key-value store.
//
// WASM modules compiled from C expect POSIX stream semantics: fopen,
// fread, fwrite, fseek, ftell. When no native filesystem is available the
// host must synthesize one. This library presents a seekable, randomly
// readable byte stream whose content is split into fixed 64KiB pages,
// each stored under its own key in an ordered key-value store.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	vfs-runtime/     Root package with the store capability interfaces
//	├── file/        The virtual file engine: open/read/write/seek/tell
//	├── page/        Page codec and file metadata record
//	├── store/       Store adapters: in-memory and Badger-backed
//	├── bridge/      wazero host module exposing the C file ABI to guests
//	├── errors/      Structured error types
//	└── cmd/vfsctl/  CLI for inspecting stores and running guest modules
//
// # Quick Start
//
// Open a file against an in-memory store and round-trip some bytes:
//
//	provider := store.NewMemory()
//	f, err := file.Open(ctx, provider, "model.bin", "w")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	if err := f.Write(ctx, payload, 1); err != nil {
//	    log.Fatal(err)
//	}
//	f.Seek(ctx, 0, file.SeekStart)
//	data, err := f.Read(ctx, 1, len(payload))
//
// # Storage Layout
//
// A file named "model.bin" of 150000 bytes occupies four keys:
//
//	model.bin       -> {"size":150000,"pageCount":3,"version":1}
//	model.bin-0000  -> bytes [0, 65536)
//	model.bin-0001  -> bytes [65536, 131072)
//	model.bin-0002  -> bytes [131072, 150000)
//
// Page keys sort lexicographically in page order, so range scans observe
// pages in stream order. Every replacing write deletes the full prior key
// range before writing new pages; orphan pages never exist.
//
// # Thread Safety
//
// Store adapters are safe for concurrent use. An open file handle is NOT
// thread-safe: operations on one handle must be invoked sequentially by
// the caller. Concurrent read/write/seek on a single handle is undefined.
package vfsruntime
