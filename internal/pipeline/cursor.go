package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lllllllleong/recordarchiver/internal/models"
	"google.golang.org/api/iterator"
)

// DefaultBatchSize is the number of records requested per fetch.
const DefaultBatchSize = 20

// BatchFetcher reads one page of matching records, ordered by timestamp then ID,
// starting strictly after the given record (or from the beginning when after is nil).
type BatchFetcher interface {
	FetchBatch(ctx context.Context, p Predicate, after *models.Record, limit int) ([]models.Record, error)
}

// BatchCursor streams matching records one at a time while holding at most one
// batch in memory. The next batch is requested only once the current one has
// been handed out. A cursor is not restartable: once it reports iterator.Done
// or an error it keeps returning that result.
type BatchCursor struct {
	fetcher   BatchFetcher
	predicate Predicate
	batchSize int

	batch     []models.Record
	pos       int
	last      *models.Record
	exhausted bool
	err       error
	fetches   int
}

// OpenCursor prepares a cursor over all records matching p. No request is made
// until the first call to Next.
func OpenCursor(fetcher BatchFetcher, p Predicate, batchSize int) (*BatchCursor, error) {
	if fetcher == nil {
		return nil, errors.New("cursor requires a batch fetcher")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &BatchCursor{
		fetcher:   fetcher,
		predicate: p,
		batchSize: batchSize,
	}, nil
}

// Next returns the next record, iterator.Done when the result set is exhausted,
// or the fetch error wrapped in a StoreOperationError. Fetch errors are not
// retried here.
func (c *BatchCursor) Next(ctx context.Context) (*models.Record, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.pos >= len(c.batch) {
		if c.exhausted {
			return nil, iterator.Done
		}
		if err := c.fetch(ctx); err != nil {
			c.err = err
			return nil, err
		}
		if len(c.batch) == 0 {
			return nil, iterator.Done
		}
	}

	rec := &c.batch[c.pos]
	c.pos++
	c.last = rec
	return rec, nil
}

// Fetches returns how many batches have been requested so far.
func (c *BatchCursor) Fetches() int {
	return c.fetches
}

func (c *BatchCursor) fetch(ctx context.Context) error {
	var after *models.Record
	if c.last != nil {
		// Copy so the previous batch can be released.
		prev := *c.last
		after = &prev
	}

	batch, err := c.fetcher.FetchBatch(ctx, c.predicate, after, c.batchSize)
	c.fetches++
	if err != nil {
		return &StoreOperationError{Op: "fetch", Cause: err}
	}
	if len(batch) > c.batchSize {
		return &StoreOperationError{
			Op:    "fetch",
			Cause: fmt.Errorf("store returned %d records for a batch of %d", len(batch), c.batchSize),
		}
	}

	c.batch = batch
	c.pos = 0
	if len(batch) < c.batchSize {
		c.exhausted = true
	}
	return nil
}
