package store

import (
	"context"
	"errors"
	"testing"

	vfsruntime "github.com/pagekv/vfs-runtime"
)

// contractTest exercises the Txn capability set against any provider.
func contractTest(t *testing.T, provider vfsruntime.Provider) {
	t.Helper()
	ctx := context.Background()

	conn, err := provider.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Put and get.
	err = conn.Update(ctx, func(txn vfsruntime.Txn) error {
		if err := txn.Put("f", []byte("meta")); err != nil {
			return err
		}
		if err := txn.Put("f-0000", []byte("page0")); err != nil {
			return err
		}
		if err := txn.Put("f-0001", []byte("page1")); err != nil {
			return err
		}
		return txn.Put("g", []byte("other"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = conn.View(ctx, func(txn vfsruntime.Txn) error {
		value, ok, err := txn.Get("f-0001")
		if err != nil {
			return err
		}
		if !ok || string(value) != "page1" {
			t.Fatalf("Get f-0001 = %q, %v", value, ok)
		}

		_, ok, err = txn.Get("missing")
		if err != nil {
			return err
		}
		if ok {
			t.Fatal("Get of absent key reported ok")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Scan observes keys in ascending order and respects both bounds.
	var keys []string
	err = conn.View(ctx, func(txn vfsruntime.Txn) error {
		return txn.Scan("f", "f-0001", func(key string, value []byte) error {
			keys = append(keys, key)
			return nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"f", "f-0000", "f-0001"}
	if len(keys) != len(want) {
		t.Fatalf("Scan keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Scan keys = %v, want %v", keys, want)
		}
	}

	// DeleteRange is inclusive and leaves keys outside the range alone.
	err = conn.Update(ctx, func(txn vfsruntime.Txn) error {
		return txn.DeleteRange("f", "f-0001")
	})
	if err != nil {
		t.Fatal(err)
	}

	err = conn.View(ctx, func(txn vfsruntime.Txn) error {
		for _, key := range []string{"f", "f-0000", "f-0001"} {
			if _, ok, err := txn.Get(key); err != nil {
				return err
			} else if ok {
				t.Fatalf("key %q survived DeleteRange", key)
			}
		}
		value, ok, err := txn.Get("g")
		if err != nil {
			return err
		}
		if !ok || string(value) != "other" {
			t.Fatal("key outside range was deleted")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// A failing update leaves prior state intact.
	boom := errors.New("boom")
	err = conn.Update(ctx, func(txn vfsruntime.Txn) error {
		if err := txn.Put("g", []byte("clobbered")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want boom", err)
	}

	err = conn.View(ctx, func(txn vfsruntime.Txn) error {
		value, _, err := txn.Get("g")
		if err != nil {
			return err
		}
		if string(value) != "other" {
			t.Fatalf("aborted transaction leaked a write, g = %q", value)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemory_Contract(t *testing.T) {
	contractTest(t, NewMemory())
}

func TestBadger_Contract(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	contractTest(t, s)
}

func TestBadger_InMemory(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	contractTest(t, s)
}

func TestMemory_ClosedConn(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	conn, err := s.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}

	err = conn.View(ctx, func(vfsruntime.Txn) error { return nil })
	if err == nil {
		t.Fatal("View on closed connection should fail")
	}
}

func TestMemory_ConnectionsShareData(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	c1, _ := s.Connect(ctx)
	c2, _ := s.Connect(ctx)
	defer c1.Close()
	defer c2.Close()

	err := c1.Update(ctx, func(txn vfsruntime.Txn) error {
		return txn.Put("k", []byte("v"))
	})
	if err != nil {
		t.Fatal(err)
	}

	err = c2.View(ctx, func(txn vfsruntime.Txn) error {
		_, ok, err := txn.Get("k")
		if err != nil {
			return err
		}
		if !ok {
			t.Fatal("write through c1 not visible through c2")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
