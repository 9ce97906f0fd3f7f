package bridge

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	vfsruntime "github.com/pagekv/vfs-runtime"
	verrors "github.com/pagekv/vfs-runtime/errors"
	"github.com/pagekv/vfs-runtime/file"
)

// C-side status codes.
const (
	statusOK   = 0
	statusFail = -1
)

// cstringMax bounds how far a C string read walks into guest memory.
const cstringMax = 64 * 1024

// guestMemory is the slice of wazero's api.Memory the bridge needs.
// Narrowing it keeps the marshalling logic testable without a live
// guest instance.
type guestMemory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
	WriteUint32Le(offset, v uint32) bool
	Size() uint32
}

// Bridge exposes the virtual file engine to a WASM guest through the C
// out-parameter ABI: integer status codes and pointers into linear
// memory. One Bridge serves one store provider; each guest open acquires
// its own engine handle and store connection.
type Bridge struct {
	provider vfsruntime.Provider
	files    *Registry
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge's logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithClock overrides the wall clock used by pv_time_wasm, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a bridge over the given store provider.
func New(provider vfsruntime.Provider, opts ...Option) *Bridge {
	b := &Bridge{
		provider: provider,
		files:    NewRegistry(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Files returns the bridge's handle registry.
func (b *Bridge) Files() *Registry {
	return b.files
}

// Close closes every file the guest left open.
func (b *Bridge) Close() error {
	return b.files.Close()
}

// Instantiate builds and instantiates the "env" host module exporting
// the pv_*_wasm import surface. It must be called before the guest
// module is instantiated on the same runtime.
func (b *Bridge) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	i32 := api.ValueTypeI32
	f64 := api.ValueTypeF64

	builder := r.NewHostModuleBuilder("env")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.fileOpen(ctx, mod.Memory(),
				api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
				api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
		}), []api.ValueType{i32, i32, i32, i32}, nil).
		Export("pv_file_open_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.fileClose(ctx, mod.Memory(),
				api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
		}), []api.ValueType{i32, i32}, nil).
		Export("pv_file_close_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.fileWrite(ctx, mod.Memory(),
				api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
				api.DecodeU32(stack[2]), api.DecodeU32(stack[3]),
				api.DecodeU32(stack[4]))
		}), []api.ValueType{i32, i32, i32, i32, i32}, nil).
		Export("pv_file_write_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.fileRead(ctx, mod.Memory(),
				api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
				api.DecodeU32(stack[2]), api.DecodeU32(stack[3]),
				api.DecodeU32(stack[4]))
		}), []api.ValueType{i32, i32, i32, i32, i32}, nil).
		Export("pv_file_read_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.fileSeek(ctx, mod.Memory(),
				api.DecodeU32(stack[0]), api.DecodeI32(stack[1]),
				api.DecodeI32(stack[2]), api.DecodeU32(stack[3]))
		}), []api.ValueType{i32, i32, i32, i32}, nil).
		Export("pv_file_seek_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.fileTell(ctx, mod.Memory(),
				api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
		}), []api.ValueType{i32, i32}, nil).
		Export("pv_file_tell_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.fileRemove(ctx, mod.Memory(),
				api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
		}), []api.ValueType{i32, i32}, nil).
		Export("pv_file_remove_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.consoleLog(mod.Memory(), api.DecodeU32(stack[0]))
		}), []api.ValueType{i32}, nil).
		Export("pv_console_log_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			b.assert(mod.Memory(),
				api.DecodeI32(stack[0]), api.DecodeI32(stack[1]),
				api.DecodeU32(stack[2]))
		}), []api.ValueType{i32, i32, i32}, nil).
		Export("pv_assert_wasm")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = api.EncodeF64(float64(b.now().UnixNano()) / 1e9)
		}), nil, []api.ValueType{f64}).
		Export("pv_time_wasm")

	return builder.Instantiate(ctx)
}

func (b *Bridge) fileOpen(ctx context.Context, mem guestMemory, token, pathPtr, modePtr, statusPtr uint32) {
	path, ok := readCString(mem, pathPtr)
	if !ok {
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	mode, ok := readCString(mem, modePtr)
	if !ok {
		writeStatus(mem, statusPtr, statusFail)
		return
	}

	f, err := file.Open(ctx, b.provider, path, mode, file.WithLogger(b.log))
	if err != nil {
		b.log.Debug("guest open failed",
			zap.String("path", path),
			zap.String("mode", mode),
			zap.Error(err))
		writeStatus(mem, statusPtr, statusFail)
		return
	}

	if !b.files.Insert(token, f) {
		f.Close()
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	writeStatus(mem, statusPtr, statusOK)
}

func (b *Bridge) fileClose(_ context.Context, mem guestMemory, token, statusPtr uint32) {
	f, ok := b.files.Remove(token)
	if !ok {
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	if err := f.Close(); err != nil {
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	writeStatus(mem, statusPtr, statusOK)
}

func (b *Bridge) fileWrite(ctx context.Context, mem guestMemory, token, contentPtr, size, count, numWritePtr uint32) {
	f, ok := b.files.Get(token)
	if !ok {
		writeStatus(mem, numWritePtr, statusFail)
		return
	}

	content, ok := mem.Read(contentPtr, size*count)
	if !ok {
		writeStatus(mem, numWritePtr, statusFail)
		return
	}

	if err := f.Write(ctx, content, 1); err != nil {
		b.log.Debug("guest write failed", zap.String("path", f.Path()), zap.Error(err))
		writeStatus(mem, numWritePtr, statusFail)
		return
	}
	mem.WriteUint32Le(numWritePtr, count)
}

func (b *Bridge) fileRead(ctx context.Context, mem guestMemory, token, contentPtr, size, count, numReadPtr uint32) {
	f, ok := b.files.Get(token)
	if !ok {
		writeStatus(mem, numReadPtr, statusFail)
		return
	}

	data, err := f.Read(ctx, int(size), int(count))
	if err != nil {
		// fread reports 0 elements at end of stream; anything else is a
		// hard failure.
		if verrors.IsKind(err, verrors.KindEndOfFile) {
			mem.WriteUint32Le(numReadPtr, 0)
			return
		}
		b.log.Debug("guest read failed", zap.String("path", f.Path()), zap.Error(err))
		writeStatus(mem, numReadPtr, statusFail)
		return
	}

	if !mem.Write(contentPtr, data) {
		writeStatus(mem, numReadPtr, statusFail)
		return
	}
	mem.WriteUint32Le(numReadPtr, uint32(len(data))/size)
}

func (b *Bridge) fileSeek(_ context.Context, mem guestMemory, token uint32, offset, whence int32, statusPtr uint32) {
	f, ok := b.files.Get(token)
	if !ok {
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	if err := f.Seek(int64(offset), int(whence)); err != nil {
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	writeStatus(mem, statusPtr, statusOK)
}

func (b *Bridge) fileTell(_ context.Context, mem guestMemory, token, offsetPtr uint32) {
	f, ok := b.files.Get(token)
	if !ok {
		writeStatus(mem, offsetPtr, statusFail)
		return
	}
	mem.WriteUint32Le(offsetPtr, uint32(f.Tell()))
}

func (b *Bridge) fileRemove(ctx context.Context, mem guestMemory, pathPtr, statusPtr uint32) {
	path, ok := readCString(mem, pathPtr)
	if !ok {
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	if err := file.Remove(ctx, b.provider, path); err != nil {
		b.log.Debug("guest remove failed", zap.String("path", path), zap.Error(err))
		writeStatus(mem, statusPtr, statusFail)
		return
	}
	writeStatus(mem, statusPtr, statusOK)
}

func (b *Bridge) consoleLog(mem guestMemory, msgPtr uint32) {
	msg, ok := readCString(mem, msgPtr)
	if !ok {
		return
	}
	b.log.Info("guest console", zap.String("msg", msg))
}

func (b *Bridge) assert(mem guestMemory, expr, line int32, filePtr uint32) {
	if expr != 0 {
		return
	}
	name, _ := readCString(mem, filePtr)
	b.log.Error("guest assertion failed",
		zap.String("file", name),
		zap.Int32("line", line))
}

// readCString reads a NUL-terminated string from guest memory, bounded
// by cstringMax and the end of linear memory.
func readCString(mem guestMemory, ptr uint32) (string, bool) {
	const chunk = 256

	var buf []byte
	for off := ptr; off-ptr < cstringMax; off += chunk {
		n := uint32(chunk)
		if size := mem.Size(); off+n > size {
			if off >= size {
				return "", false
			}
			n = size - off
		}

		data, ok := mem.Read(off, n)
		if !ok {
			return "", false
		}
		for i, c := range data {
			if c == 0 {
				return string(append(buf, data[:i]...)), true
			}
		}
		buf = append(buf, data...)

		if n < chunk {
			// Hit the end of memory without a terminator.
			return "", false
		}
	}
	return "", false
}

func writeStatus(mem guestMemory, ptr uint32, code int32) {
	mem.WriteUint32Le(ptr, uint32(code))
}
