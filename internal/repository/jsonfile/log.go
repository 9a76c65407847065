// Package jsonfile stores bounded, newest-first logs as flat JSON arrays
// on disk. The whole document is cached in memory and rewritten on every
// append.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jwalitptl/medbot-api/pkg/logger"
)

// Log is a capped list persisted to a single JSON file. Index 0 is the
// newest entry.
type Log[T any] struct {
	mu       sync.RWMutex
	path     string
	capacity int
	entries  []T
	clone    func(T) T
}

// OpenLog loads path, creating its directory when missing. A file that is
// not a JSON array is logged and replaced on the next append.
func OpenLog[T any](path string, capacity int, clone func(T) T, log *logger.Logger) (*Log[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be greater than 0")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	l := &Log[T]{path: path, capacity: capacity, clone: clone}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &l.entries); err != nil {
			if log != nil {
				log.Error(err, "Discarding unreadable store file", "path", path)
			}
			l.entries = nil
		}
	}
	if len(l.entries) > capacity {
		l.entries = l.entries[:capacity]
	}
	return l, nil
}

// All returns a copy of every entry, newest first.
func (l *Log[T]) All() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		out[i] = l.copy(e)
	}
	return out
}

// First returns the newest entry.
func (l *Log[T]) First() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var zero T
	if len(l.entries) == 0 {
		return zero, false
	}
	return l.copy(l.entries[0]), true
}

// Find returns the newest entry matching fn.
func (l *Log[T]) Find(fn func(T) bool) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if fn(e) {
			return l.copy(e), true
		}
	}
	var zero T
	return zero, false
}

// Prepend adds entry at the front, drops whatever exceeds the capacity and
// persists the result. The in-memory list is only replaced once the file
// has been written.
func (l *Log[T]) Prepend(entry T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries) + 1
	if n > l.capacity {
		n = l.capacity
	}
	next := make([]T, 0, n)
	next = append(next, l.copy(entry))
	next = append(next, l.entries[:n-1]...)

	if err := l.write(next); err != nil {
		return err
	}
	l.entries = next
	return nil
}

func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Path returns the backing file.
func (l *Log[T]) Path() string {
	return l.path
}

func (l *Log[T]) copy(e T) T {
	if l.clone == nil {
		return e
	}
	return l.clone(e)
}

func (l *Log[T]) write(entries []T) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}
