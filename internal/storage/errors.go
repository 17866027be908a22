package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrLedgerCorrupt indicates the ledger file could not be read.
	ErrLedgerCorrupt = errors.New("storage: ledger corrupt")
	// ErrLedgerClosed indicates an operation on a closed ledger.
	ErrLedgerClosed = errors.New("storage: ledger closed")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock timeout")
)

// StorageError wraps errors from storage operations with context.
// Ledger failures are fatal to a cycle's bookkeeping: a silently lost
// ledger write causes duplicate downloads and deliveries on later runs.
type StorageError struct {
	Op   string // Operation: "load", "append", "lock"
	Path string // Backing file path
	Err  error  // Underlying error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
