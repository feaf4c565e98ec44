package pipeline

import "fmt"

// StoreOperationError is a failed fetch, write or delete against one of the stores.
type StoreOperationError struct {
	Op    string // "fetch", "archive", "purge"
	ID    string // record ID, empty for batch fetches
	Cause error
}

// Error implements the error interface.
func (e *StoreOperationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store operation %s failed for record %s: %v", e.Op, e.ID, e.Cause)
	}
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreOperationError) Unwrap() error {
	return e.Cause
}

// ArchiveWriteError means the destination object was not written.
type ArchiveWriteError struct {
	Key   string
	Cause error
}

// Error implements the error interface.
func (e *ArchiveWriteError) Error() string {
	return fmt.Sprintf("archive write to %s failed: %v", e.Key, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ArchiveWriteError) Unwrap() error {
	return e.Cause
}
