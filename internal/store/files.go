// Package store centralizes low-level filesystem reads and writes.
//
// Writes to one path are serialized by a process-wide lock, and Update runs a
// read-modify-write cycle under that same lock so callers can build
// compare-and-delete style operations on top of plain files.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnchanged may be returned by an Update mutator to skip the write.
var ErrUnchanged = errors.New("content unchanged")

// locks hands out one mutex per cleaned path.
var locks struct {
	sync.Mutex
	byPath map[string]*sync.Mutex
}

// ReadFile reads a file and returns it as a string.
func ReadFile(path string) (string, error) {
	p, err := normalize(path)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WriteFile atomically replaces a file's contents.
func WriteFile(path string, data []byte) error {
	return withPathLock(path, func(p string) error {
		return replace(p, data)
	})
}

// Update reads the current contents (empty when the file is missing), passes
// them to mutate, and atomically writes the result. The whole cycle holds the
// path lock. A mutator returning ErrUnchanged leaves the file untouched and
// Update returns nil.
func Update(path string, mutate func(current string) ([]byte, error)) error {
	if mutate == nil {
		return errors.New("mutate func is required")
	}
	return withPathLock(path, func(p string) error {
		current, err := os.ReadFile(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %q: %w", p, err)
		}
		next, err := mutate(string(current))
		switch {
		case errors.Is(err, ErrUnchanged):
			return nil
		case err != nil:
			return err
		}
		return replace(p, next)
	})
}

// AppendFile appends bytes to a file, creating it and its directory if missing.
func AppendFile(path string, data []byte) error {
	return withPathLock(path, func(p string) error {
		if err := ensureDir(p); err != nil {
			return err
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open %q for append: %w", p, err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return fmt.Errorf("append to %q: %w", p, werr)
		}
		return cerr
	})
}

// replace writes data to a sibling temp file and renames it over p.
// Callers hold the path lock.
func replace(p string, data []byte) error {
	if err := ensureDir(p); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", p, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write temp for %q: %w", p, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("rename temp over %q: %w", p, err)
	}
	return nil
}

func ensureDir(p string) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

func withPathLock(path string, fn func(p string) error) error {
	p, err := normalize(path)
	if err != nil {
		return err
	}

	locks.Lock()
	if locks.byPath == nil {
		locks.byPath = make(map[string]*sync.Mutex)
	}
	mu, ok := locks.byPath[p]
	if !ok {
		mu = &sync.Mutex{}
		locks.byPath[p] = mu
	}
	locks.Unlock()

	mu.Lock()
	defer mu.Unlock()
	return fn(p)
}

func normalize(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is required")
	}
	return filepath.Clean(trimmed), nil
}
