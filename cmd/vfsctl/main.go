package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	vfsruntime "github.com/pagekv/vfs-runtime"
	"github.com/pagekv/vfs-runtime/bridge"
	"github.com/pagekv/vfs-runtime/file"
	"github.com/pagekv/vfs-runtime/page"
	"github.com/pagekv/vfs-runtime/store"
)

func main() {
	var (
		dbDir       = flag.String("db", "", "Badger store directory")
		putArg      = flag.String("put", "", "Store a file: <path>=<hostfile>")
		getArg      = flag.String("get", "", "Print a stored file to stdout")
		statArg     = flag.String("stat", "", "Show a stored file's metadata")
		rmArg       = flag.String("rm", "", "Remove a stored file")
		list        = flag.Bool("ls", false, "List stored files and exit")
		wasmFile    = flag.String("wasm", "", "Run a guest module with the file bridge mounted")
		invoke      = flag.String("invoke", "", "Exported functions to call (comma-separated)")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *dbDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: vfsctl -db <dir> [-put path=<hostfile>] [-get path] [-stat path] [-rm path] [-ls]")
		fmt.Fprintln(os.Stderr, "       vfsctl -db <dir> -wasm <mod.wasm> [-invoke fn,fn2]")
		fmt.Fprintln(os.Stderr, "       vfsctl -db <dir> -i  (interactive mode)")
		os.Exit(1)
	}

	log := zap.NewNop()
	if *verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	s, err := store.OpenBadger(store.BadgerConfig{Dir: *dbDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *interactive {
		if err := runInteractive(s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(s, log, *putArg, *getArg, *statArg, *rmArg, *list, *wasmFile, *invoke); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(s *store.Badger, log *zap.Logger, putArg, getArg, statArg, rmArg string, list bool, wasmFile, invoke string) error {
	ctx := context.Background()

	switch {
	case putArg != "":
		path, hostFile, ok := strings.Cut(putArg, "=")
		if !ok {
			return fmt.Errorf("-put wants <path>=<hostfile>, got %q", putArg)
		}
		return putFile(ctx, s, log, path, hostFile)

	case getArg != "":
		return getFile(ctx, s, log, getArg)

	case statArg != "":
		return statFile(ctx, s, statArg)

	case rmArg != "":
		return file.Remove(ctx, s, rmArg)

	case list:
		return listFiles(ctx, s)

	case wasmFile != "":
		return runGuest(ctx, s, log, wasmFile, invoke)
	}

	return fmt.Errorf("nothing to do, pass one of -put/-get/-stat/-rm/-ls/-wasm")
}

func putFile(ctx context.Context, s *store.Badger, log *zap.Logger, path, hostFile string) error {
	content, err := os.ReadFile(hostFile)
	if err != nil {
		return fmt.Errorf("read host file: %w", err)
	}

	f, err := file.Open(ctx, s, path, "w", file.WithLogger(log))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(ctx, content, 1); err != nil {
		return err
	}
	fmt.Printf("stored %s (%d bytes, %d pages)\n", path, len(content), page.Count(int64(len(content))))
	return nil
}

func getFile(ctx context.Context, s *store.Badger, log *zap.Logger, path string) error {
	f, err := file.Open(ctx, s, path, "r", file.WithLogger(log))
	if err != nil {
		return err
	}
	defer f.Close()

	if f.Size() == 0 {
		return nil
	}
	content, err := f.Read(ctx, 1, int(f.Size()))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(content)
	return err
}

func statFile(ctx context.Context, s *store.Badger, path string) error {
	conn, err := s.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.View(ctx, func(txn vfsruntime.Txn) error {
		data, ok, err := txn.Get(path)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: not found", path)
		}
		meta, err := page.DecodeMetadata(data)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n  size:    %d\n  pages:   %d\n  version: %d\n", path, meta.Size, meta.PageCount, meta.Version)
		return nil
	})
}

func listFiles(ctx context.Context, s *store.Badger) error {
	entries, err := scanFiles(ctx, s)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-40s %10d bytes  %4d pages  v%d\n", e.path, e.meta.Size, e.meta.PageCount, e.meta.Version)
	}
	return nil
}

func runGuest(ctx context.Context, s *store.Badger, log *zap.Logger, wasmFile, invoke string) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	b := bridge.New(s, bridge.WithLogger(log))
	defer b.Close()

	if _, err := b.Instantiate(ctx, r); err != nil {
		return fmt.Errorf("instantiate bridge: %w", err)
	}
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	mod, err := r.Instantiate(ctx, data)
	if err != nil {
		return fmt.Errorf("instantiate module: %w", err)
	}

	var names []string
	if invoke != "" {
		names = strings.Split(invoke, ",")
	} else if mod.ExportedFunction("_start") != nil {
		names = []string{"_start"}
	} else {
		return fmt.Errorf("no -invoke given and module exports no _start")
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return fmt.Errorf("module does not export %q", name)
		}
		results, err := fn.Call(ctx)
		if err != nil {
			return fmt.Errorf("call %s: %w", name, err)
		}
		if len(results) > 0 {
			fmt.Printf("%s -> %d\n", name, results[0])
		} else {
			fmt.Printf("%s -> ok\n", name)
		}
	}
	return nil
}

// fileEntry pairs a stored path with its decoded metadata record.
type fileEntry struct {
	path string
	meta page.Metadata
}

// scanFiles walks every key and keeps the ones holding metadata records.
// Page keys carry the 4-digit index suffix and are skipped.
func scanFiles(ctx context.Context, provider vfsruntime.Provider) ([]fileEntry, error) {
	conn, err := provider.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var entries []fileEntry
	err = conn.View(ctx, func(txn vfsruntime.Txn) error {
		return txn.Scan("", "\xff\xff\xff\xff", func(key string, value []byte) error {
			if isPageKey(key) {
				return nil
			}
			meta, err := page.DecodeMetadata(value)
			if err != nil {
				// Not a metadata record; some other tenant's key.
				return nil
			}
			entries = append(entries, fileEntry{path: key, meta: meta})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func isPageKey(key string) bool {
	if len(key) < 6 || key[len(key)-5] != '-' {
		return false
	}
	for _, c := range key[len(key)-4:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
