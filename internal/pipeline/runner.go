package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/models"
	"google.golang.org/api/iterator"
)

// Observer receives progress notifications from a run.
type Observer interface {
	RecordArchived(key string)
	RecordPurged(deleted int)
	Throttled(delay time.Duration)
}

type noopObserver struct{}

func (noopObserver) RecordArchived(string)   {}
func (noopObserver) RecordPurged(int)        {}
func (noopObserver) Throttled(time.Duration) {}

// RunnerConfig holds the fixed parameters of every run.
type RunnerConfig struct {
	Collection     string
	TimestampField string
	Retention      time.Duration
	BatchSize      int
}

// Runner drives one export-and-purge pass: it streams eligible records and,
// for each one in turn, archives it and then purges it. Throttling failures
// put the run to sleep for a random backoff and re-open the cursor with the
// same predicate; records purged before the pause no longer match, and a
// record interrupted between archive and purge is archived again with
// identical content. Every other failure ends the run.
type Runner struct {
	fetcher    BatchFetcher
	archiver   *Archiver
	purger     *Purger
	classifier Classifier
	backoff    *Backoff
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	collection string
	field      string
	retention  time.Duration
	batchSize  int
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClassifier replaces the default throttling classifier.
func WithClassifier(c Classifier) Option {
	return func(r *Runner) { r.classifier = c }
}

// WithBackoff replaces the default 1.5s-3s backoff.
func WithBackoff(b *Backoff) Option {
	return func(r *Runner) { r.backoff = b }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithClock sets the wall clock read once at the start of each run.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSleep replaces the function used to wait out a backoff.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// NewRunner creates a Runner over the given source and destination stores.
func NewRunner(source BatchFetcher, dest ObjectWriter, deleter RecordDeleter, cfg RunnerConfig, opts ...Option) (*Runner, error) {
	if source == nil || dest == nil || deleter == nil {
		return nil, errors.New("runner requires a source, a destination and a deleter")
	}
	if cfg.Collection == "" {
		return nil, errors.New("runner requires a collection name")
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("retention window must not be negative, got %s", cfg.Retention)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.TimestampField == "" {
		cfg.TimestampField = DefaultTimestampField
	}

	r := &Runner{
		fetcher:    source,
		archiver:   NewArchiver(dest, cfg.Collection),
		purger:     NewPurger(deleter),
		classifier: MessageClassifier{Fragment: DefaultThrottleFragment},
		observer:   noopObserver{},
		logger:     slog.Default().With("component", "pipeline.runner"),
		now:        time.Now,
		sleep:      sleepContext,
		collection: cfg.Collection,
		field:      cfg.TimestampField,
		retention:  cfg.Retention,
		batchSize:  cfg.BatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.observer == nil {
		r.observer = noopObserver{}
	}
	if r.backoff == nil {
		b, err := NewBackoff(DefaultBackoffMin, DefaultBackoffMax, nil)
		if err != nil {
			return nil, err
		}
		r.backoff = b
	}
	return r, nil
}

// Run performs one pass and fills in summary as it goes, so a failed run still
// reports how far it got. It returns nil once the cursor is exhausted, the
// context error if the run was interrupted, or the first non-throttling error.
func (r *Runner) Run(ctx context.Context, summary *models.RunSummary) error {
	if summary == nil {
		summary = &models.RunSummary{}
	}
	start := r.now()
	summary.StartedAt = start
	defer func() { summary.FinishedAt = r.now() }()

	pred, err := BuildFilter(r.field, r.retention, start)
	if err != nil {
		return fmt.Errorf("failed to build eligibility filter: %w", err)
	}
	summary.Cutoff = pred.Before
	r.logger.Info("Starting export-and-purge run.",
		"collection", r.collection,
		"cutoff", pred.Before.Format(time.RFC3339),
		"batchSize", r.batchSize,
	)

	for {
		err := r.stream(ctx, pred, summary)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("run interrupted: %w: %w", ctx.Err(), err)
		}
		if !r.classifier.IsRetryable(err) {
			return err
		}

		summary.Throttled++
		delay := r.backoff.Next()
		r.observer.Throttled(delay)
		r.logger.Warn("Store is throttling requests. Backing off before re-opening the cursor.",
			"delay", delay.String(),
			"throttled", summary.Throttled,
			"error", err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("run interrupted during backoff: %w", err)
		}
	}
}

// stream opens a fresh cursor and processes records until it is exhausted or
// a step fails.
func (r *Runner) stream(ctx context.Context, pred Predicate, summary *models.RunSummary) error {
	cursor, err := OpenCursor(r.fetcher, pred, r.batchSize)
	if err != nil {
		return err
	}
	for {
		rec, err := cursor.Next(ctx)
		if errors.Is(err, iterator.Done) {
			r.logger.Debug("Cursor exhausted.", "fetches", cursor.Fetches())
			return nil
		}
		if err != nil {
			return err
		}
		summary.Visited++
		if err := r.process(ctx, pred, rec, summary); err != nil {
			return err
		}
	}
}

// process archives one record and, only once that write has completed, purges it.
func (r *Runner) process(ctx context.Context, pred Predicate, rec *models.Record, summary *models.RunSummary) error {
	if !pred.Matches(rec.CreatedAt) {
		return &StoreOperationError{
			Op:    "fetch",
			ID:    rec.ID,
			Cause: fmt.Errorf("record %s at %s is not before the cutoff %s", pred.Field, rec.CreatedAt.Format(time.RFC3339), pred.Before.Format(time.RFC3339)),
		}
	}

	receipt, err := r.archiver.Archive(ctx, rec)
	if err != nil {
		return err
	}
	summary.Archived++
	r.observer.RecordArchived(receipt.Key())

	deleted, err := r.purger.Purge(ctx, receipt)
	if err != nil {
		return err
	}
	if deleted == 0 {
		summary.Absent++
		r.logger.Debug("Record already absent from source.", "recordId", rec.ID)
	} else {
		summary.Purged += deleted
	}
	r.observer.RecordPurged(deleted)
	return nil
}
