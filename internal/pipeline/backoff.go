package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Default backoff window after a throttled request.
const (
	DefaultBackoffMin = 1500 * time.Millisecond
	DefaultBackoffMax = 3 * time.Second
)

// RandSource is the subset of *rand.Rand the backoff draws from.
type RandSource interface {
	Int63n(n int64) int64
}

// Backoff yields delays uniformly distributed in [Min, Max].
type Backoff struct {
	min  time.Duration
	max  time.Duration
	rand RandSource
}

// NewBackoff creates a Backoff. A nil source falls back to a time-seeded one.
func NewBackoff(min, max time.Duration, src RandSource) (*Backoff, error) {
	if min <= 0 {
		return nil, fmt.Errorf("backoff minimum must be positive, got %s", min)
	}
	if max < min {
		return nil, fmt.Errorf("backoff maximum %s is below minimum %s", max, min)
	}
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Backoff{min: min, max: max, rand: src}, nil
}

// Next returns the next delay.
func (b *Backoff) Next() time.Duration {
	span := int64(b.max - b.min)
	return b.min + time.Duration(b.rand.Int63n(span+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
