// Package storage provides durable state for the relay pipeline: the
// dedup ledger plus the atomic-write and file-lock primitives behind it.
package storage

import (
	"bufio"
	"errors"
	"os"
	"sync"
	"time"
)

const ledgerLockTimeout = 5 * time.Second

// Ledger is an append-only set of dedup keys for already-processed videos.
// The backing file holds one key per line. The full set is loaded into
// memory on open; every Add appends a line and syncs it to disk before
// returning, so a key that Add reported as stored survives a crash.
//
// All methods are safe for concurrent use; writes are serialized through
// a single mutex so concurrent workers cannot lose updates.
type Ledger struct {
	path string
	lock *FileLock

	mu    sync.Mutex
	keys  map[string]struct{}
	order []string
	file  *os.File
}

// OpenLedger opens the ledger at path, creating it if missing.
// A missing backing file yields an empty ledger, not an error.
// The ledger holds an advisory file lock until Close is called.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path: path,
		lock: NewFileLock(path),
		keys: make(map[string]struct{}),
	}

	if err := l.lock.Lock(ledgerLockTimeout); err != nil {
		return nil, err
	}

	if err := l.load(); err != nil {
		l.lock.Unlock()
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.lock.Unlock()
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}
	l.file = file

	return l, nil
}

// load reads the backing file into the in-memory set.
func (l *Ledger) load() error {
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &StorageError{Op: "load", Path: l.path, Err: err}
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key := scanner.Text()
		if key == "" {
			continue
		}
		if _, seen := l.keys[key]; seen {
			continue
		}
		l.keys[key] = struct{}{}
		l.order = append(l.order, key)
	}
	if err := scanner.Err(); err != nil {
		return &StorageError{Op: "load", Path: l.path, Err: ErrLedgerCorrupt}
	}
	return nil
}

// Contains reports whether key has been recorded. Comparison is exact
// string, case-sensitive.
func (l *Ledger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[key]
	return ok
}

// Add records key in the ledger. The append is synced to disk before Add
// returns. Adding a key that is already present is a no-op.
func (l *Ledger) Add(key string) error {
	if key == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return &StorageError{Op: "append", Path: l.path, Err: ErrLedgerClosed}
	}
	if _, ok := l.keys[key]; ok {
		return nil
	}

	if _, err := l.file.WriteString(key + "\n"); err != nil {
		return &StorageError{Op: "append", Path: l.path, Err: err}
	}
	if err := l.file.Sync(); err != nil {
		return &StorageError{Op: "append", Path: l.path, Err: err}
	}

	l.keys[key] = struct{}{}
	l.order = append(l.order, key)
	return nil
}

// Persist rewrites the backing file from the in-memory set, dropping any
// duplicate or blank lines accumulated by older writers. The rewrite is
// atomic; the append handle is reopened on the new file afterwards.
func (l *Ledger) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return &StorageError{Op: "persist", Path: l.path, Err: ErrLedgerClosed}
	}

	writer, err := NewAtomicWriter(l.path)
	if err != nil {
		return &StorageError{Op: "persist", Path: l.path, Err: err}
	}
	for _, key := range l.order {
		if _, err := writer.Write([]byte(key + "\n")); err != nil {
			writer.Abort()
			return &StorageError{Op: "persist", Path: l.path, Err: err}
		}
	}
	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "persist", Path: l.path, Err: err}
	}

	// The rename replaced the inode the append handle points at.
	l.file.Close()
	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.file = nil
		return &StorageError{Op: "persist", Path: l.path, Err: err}
	}
	l.file = file
	return nil
}

// Len returns the number of recorded keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// Close releases the append handle and the file lock.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	return l.lock.Unlock()
}
