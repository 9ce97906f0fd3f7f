// Package bridge exposes the virtual file engine to WebAssembly guests.
//
// C code compiled to WASM declares the file operations as extern
// functions:
//
//	extern void pv_file_open_wasm(void *f, const char *path, const char *mode, int32_t *status);
//	extern void pv_file_read_wasm(void *f, void *content, size_t size, size_t count, int32_t *num_read);
//	...
//
// The bridge implements that import surface as a wazero host module
// named "env". Pointer arguments are offsets into the guest's linear
// memory; results come back through out-parameters, with status 0 for
// success and -1 for failure, matching the C convention.
//
// The guest's FILE pointer value is used verbatim as an opaque token
// into a host-side registry of open engine handles; the host never
// interprets the pointed-at bytes.
package bridge
