package jsondb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestLockedFileCreatesInitial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "data.json")
	f, err := NewLockedFile(path, []byte(`{"seed":1}`))
	if err != nil {
		t.Fatalf("NewLockedFile failed: %v", err)
	}
	data, err := f.Read(t.Context())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != `{"seed":1}` {
		t.Errorf("Read() = %s", data)
	}
	if b, err := os.ReadFile(path); err != nil || string(b) != `{"seed":1}` {
		t.Errorf("file = %s, %v", b, err)
	}
}

func TestLockedFileMissingWithoutInitial(t *testing.T) {
	f, err := NewLockedFile(filepath.Join(t.TempDir(), "data.json"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Read(t.Context()); !errors.Is(err, ErrIO) {
		t.Errorf("Read() error = %v, want ErrIO", err)
	}
}

func TestHandleReleaseIsIdempotent(t *testing.T) {
	f, err := NewLockedFile(filepath.Join(t.TempDir(), "data.json"), []byte("0"))
	if err != nil {
		t.Fatal(err)
	}
	h, _, err := f.Lock(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Release(); err != nil {
		t.Fatal(err)
	}
	if err := h.Release(); err != nil {
		t.Errorf("second Release() = %v", err)
	}
	if _, err := h.Write([]byte("1")); err == nil {
		t.Error("Write() after Release succeeded")
	}
	// The lock must be available again.
	h, _, err = f.Lock(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	_ = h.Release()
}

func TestLockedFileNoLostUpdate(t *testing.T) {
	for _, shared := range []bool{false, true} {
		name := "separate"
		if shared {
			name = "shared"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "counter")
			const workers = 8
			const rounds = 25
			var common *LockedFile
			if shared {
				var err error
				if common, err = NewLockedFile(path, []byte("0")); err != nil {
					t.Fatal(err)
				}
			}
			var wg sync.WaitGroup
			for range workers {
				// Separate instances stand in for separate processes.
				f := common
				if f == nil {
					var err error
					if f, err = NewLockedFile(path, []byte("0")); err != nil {
						t.Fatal(err)
					}
				}
				wg.Go(func() {
					for range rounds {
						h, data, err := f.Lock(t.Context())
						if err != nil {
							t.Error(err)
							return
						}
						n, err := strconv.Atoi(string(data))
						if err != nil {
							_ = h.Release()
							t.Error(err)
							return
						}
						if _, err := h.Write([]byte(strconv.Itoa(n + 1))); err != nil {
							t.Error(err)
							return
						}
					}
				})
			}
			wg.Wait()
			b, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if got := string(b); got != strconv.Itoa(workers*rounds) {
				t.Errorf("counter = %s, want %d", got, workers*rounds)
			}
		})
	}
}

func TestLockHonorsContext(t *testing.T) {
	for _, shared := range []bool{false, true} {
		name := "separate"
		if shared {
			name = "shared"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data.json")
			a, err := NewLockedFile(path, []byte("{}"))
			if err != nil {
				t.Fatal(err)
			}
			b := a
			if !shared {
				if b, err = NewLockedFile(path, []byte("{}")); err != nil {
					t.Fatal(err)
				}
			}
			h, _, err := a.Lock(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			defer func() {
				_ = h.Release()
			}()

			const timeout = 30 * time.Millisecond
			ctx, cancel := context.WithTimeout(t.Context(), timeout)
			defer cancel()
			start := time.Now()
			if _, _, err := b.Lock(ctx); err == nil {
				t.Fatal("Lock() succeeded while held")
			}
			if _, err := b.Read(ctx); err == nil {
				t.Fatal("Read() succeeded while exclusively held")
			}
			if d := time.Since(start); d > timeout+time.Second {
				t.Errorf("blocked %s after a %s deadline", d, timeout)
			}
		})
	}
}

func TestWriteReadOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{}"), 0o444); err != nil {
		t.Fatal(err)
	}
	f, err := NewLockedFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	h, _, err := f.Lock(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Write([]byte(`{"a":1}`)); !errors.Is(err, ErrPermission) {
		t.Errorf("Write() error = %v, want ErrPermission", err)
	}
}
