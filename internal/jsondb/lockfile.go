package jsondb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocked flock acquisition is retried.
const lockRetryDelay = 5 * time.Millisecond

// LockedFile serializes access to one file across goroutines and processes.
//
// Every acquisition opens its own descriptor on the sidecar lock file, so
// goroutines sharing a LockedFile exclude each other through flock exactly
// like separate processes do, and waiting always honors the context.
type LockedFile struct {
	path     string
	lockPath string
	initial  []byte
}

// NewLockedFile returns a LockedFile for path. When initial is not nil, a
// missing file is created with this content on first access.
func NewLockedFile(path string, initial []byte) (*LockedFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory for %s: %w", ErrIO, path, err)
	}
	return &LockedFile{
		path:     path,
		lockPath: path + ".lock",
		initial:  bytes.Clone(initial),
	}, nil
}

// Path returns the path of the data file.
func (f *LockedFile) Path() string {
	return f.path
}

// Read returns the file content under a shared lock.
func (f *LockedFile) Read(ctx context.Context) ([]byte, error) {
	data, err := f.readShared(ctx)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if f.initial == nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrIO, f.path, err)
	}
	// Lock creates the file.
	h, data, err := f.Lock(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.Release(); err != nil {
		return nil, err
	}
	return data, nil
}

func (f *LockedFile) readShared(ctx context.Context) ([]byte, error) {
	fl := flock.New(f.lockPath)
	if _, err := fl.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return nil, fmt.Errorf("%w: failed to lock %s: %w", ErrIO, f.lockPath, err)
	}
	defer func() {
		_ = fl.Unlock()
	}()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrIO, f.path, err)
	}
	return data, nil
}

// Lock takes the exclusive lock and returns the current content. The lock is
// held until Write or Release is called on the returned handle.
func (f *LockedFile) Lock(ctx context.Context) (*Handle, []byte, error) {
	fl := flock.New(f.lockPath)
	if _, err := fl.TryLockContext(ctx, lockRetryDelay); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to lock %s: %w", ErrIO, f.lockPath, err)
	}
	h := &Handle{file: f, lock: fl}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || f.initial == nil {
			_ = h.Release()
			return nil, nil, fmt.Errorf("%w: failed to read %s: %w", ErrIO, f.path, err)
		}
		if _, err := writeAtomic(f.path, f.initial); err != nil {
			_ = h.Release()
			return nil, nil, err
		}
		data = bytes.Clone(f.initial)
	}
	return h, data, nil
}

// Handle is an exclusive lock on a LockedFile.
type Handle struct {
	file     *LockedFile
	lock     *flock.Flock
	released bool
}

// Write replaces the whole file content then releases the lock.
func (h *Handle) Write(data []byte) (int, error) {
	if h.released {
		return 0, errReleased
	}
	n, err := writeAtomic(h.file.path, data)
	if err2 := h.Release(); err == nil {
		err = err2
	}
	return n, err
}

// Release releases the lock without writing. It is safe to call more than
// once.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	if err := h.lock.Unlock(); err != nil {
		return fmt.Errorf("%w: failed to unlock %s: %w", ErrIO, h.file.lockPath, err)
	}
	return nil
}

// writeAtomic writes data to a temporary file next to path and renames it
// over path, so readers see either the old or the new content.
func writeAtomic(path string, data []byte) (int, error) {
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		if fi.Mode().Perm()&0o200 == 0 {
			return 0, fmt.Errorf("%w: %s is read-only", ErrPermission, path)
		}
		mode = fi.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return 0, fmt.Errorf("%w: %s: %w", ErrPermission, path, err)
		}
		return 0, fmt.Errorf("%w: failed to create temporary file for %s: %w", ErrIO, path, err)
	}
	name := tmp.Name()
	n, err := tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if err2 := tmp.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = os.Chmod(name, mode)
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		_ = os.Remove(name)
		if errors.Is(err, fs.ErrPermission) {
			return 0, fmt.Errorf("%w: %s: %w", ErrPermission, path, err)
		}
		return 0, fmt.Errorf("%w: failed to write %s: %w", ErrIO, path, err)
	}
	return n, nil
}
