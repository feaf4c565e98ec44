package pipeline

import (
	"context"
	"errors"
)

// RecordDeleter removes at most one record by ID and reports how many were
// deleted. A missing record yields 0 and no error.
type RecordDeleter interface {
	DeleteRecord(ctx context.Context, id string) (int, error)
}

// Purger deletes archived records from the source store.
type Purger struct {
	store RecordDeleter
}

// NewPurger creates a Purger over the source store.
func NewPurger(store RecordDeleter) *Purger {
	return &Purger{store: store}
}

// Purge deletes the record named by an archive receipt. A count of 0 means the
// record was already gone and is not an error.
func (p *Purger) Purge(ctx context.Context, receipt Receipt) (int, error) {
	if receipt.id == "" {
		return 0, &StoreOperationError{Op: "purge", Cause: errors.New("receipt does not name an archived record")}
	}
	n, err := p.store.DeleteRecord(ctx, receipt.id)
	if err != nil {
		return 0, &StoreOperationError{Op: "purge", ID: receipt.id, Cause: err}
	}
	return n, nil
}
