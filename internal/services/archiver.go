package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/recordarchiver/internal/config"
	"github.com/Lllllllleong/recordarchiver/internal/gcp"
	"github.com/Lllllllleong/recordarchiver/internal/metrics"
	"github.com/Lllllllleong/recordarchiver/internal/models"
	"github.com/Lllllllleong/recordarchiver/internal/pipeline"
	"github.com/google/uuid"
)

// ArchiverFunction holds dependencies for the export-and-purge job.
type ArchiverFunction struct {
	firestoreClient *firestore.Client
	storageClient   *storage.Client

	source  pipeline.BatchFetcher
	dest    pipeline.ObjectWriter
	deleter pipeline.RecordDeleter

	metrics *metrics.Collector
	config  config.Config
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	rand    pipeline.RandSource
}

// NewArchiverFunction creates the Firestore and Cloud Storage clients named by
// cfg and wires them into an ArchiverFunction. collector may be nil.
func NewArchiverFunction(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*ArchiverFunction, error) {
	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.Source.ProjectID, cfg.Source.Database)
	if err != nil {
		return nil, err
	}

	storageClient, err := gcp.NewStorageClient(ctx, cfg.Destination.Endpoint)
	if err != nil {
		firestoreClient.Close()
		return nil, err
	}

	source := gcp.NewFirestoreSource(firestoreClient, cfg.Source.Collection)
	f := newArchiverFunction(source, gcp.NewBucketStore(storageClient, cfg.Destination.Bucket), source, cfg, collector)
	f.firestoreClient = firestoreClient
	f.storageClient = storageClient
	return f, nil
}

func newArchiverFunction(source pipeline.BatchFetcher, dest pipeline.ObjectWriter, deleter pipeline.RecordDeleter, cfg config.Config, collector *metrics.Collector) *ArchiverFunction {
	return &ArchiverFunction{
		source:  source,
		dest:    dest,
		deleter: deleter,
		metrics: collector,
		config:  cfg,
		logger:  slog.Default().With("component", "services.archiver"),
		now:     time.Now,
	}
}

// Process performs one export-and-purge run. The returned summary is non-nil
// whenever the run started, including when it failed part way.
func (f *ArchiverFunction) Process(ctx context.Context, trigger models.RunTrigger) (*models.RunSummary, error) {
	runID := uuid.NewString()
	summary := &models.RunSummary{RunID: runID, Trigger: trigger.Source}
	logCtx := f.logger.With(
		"runId", runID,
		"trigger", trigger.Source,
		"messageId", trigger.MessageID,
		"collection", f.config.Source.Collection,
	)

	runner, err := f.newRunner(logCtx)
	if err != nil {
		logCtx.Error("Failed to set up run", "error", err)
		return nil, err
	}

	runErr := runner.Run(ctx, summary)
	duration := summary.FinishedAt.Sub(summary.StartedAt)
	outcome := runOutcome(runErr)
	if f.metrics != nil {
		f.metrics.RunFinished(outcome, duration, summary.FinishedAt)
	}

	attrs := []any{
		"outcome", outcome,
		"cutoff", summary.Cutoff.Format(time.RFC3339),
		"visited", summary.Visited,
		"archived", summary.Archived,
		"purged", summary.Purged,
		"absent", summary.Absent,
		"throttled", summary.Throttled,
		"duration", duration.String(),
	}
	if runErr != nil {
		logCtx.Error("Export-and-purge run failed", append(attrs, "error", runErr)...)
		return summary, fmt.Errorf("run %s: %w", runID, runErr)
	}
	logCtx.Info("Export-and-purge run complete.", attrs...)
	return summary, nil
}

func (f *ArchiverFunction) newRunner(logger *slog.Logger) (*pipeline.Runner, error) {
	backoff, err := pipeline.NewBackoff(f.config.Run.BackoffMin, f.config.Run.BackoffMax, f.rand)
	if err != nil {
		return nil, fmt.Errorf("invalid backoff settings: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithClassifier(pipeline.AnyOf(
			pipeline.MessageClassifier{Fragment: f.config.Run.ThrottleFragment},
			gcp.StatusClassifier{},
		)),
		pipeline.WithBackoff(backoff),
		pipeline.WithLogger(logger),
		pipeline.WithClock(f.now),
	}
	if f.metrics != nil {
		opts = append(opts, pipeline.WithObserver(f.metrics))
	}
	if f.sleep != nil {
		opts = append(opts, pipeline.WithSleep(f.sleep))
	}
	return pipeline.NewRunner(f.source, f.dest, f.deleter, f.config.RunnerConfig(), opts...)
}

func runOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeInterrupted
	default:
		return metrics.OutcomeFailure
	}
}

// Close releases the store clients.
func (f *ArchiverFunction) Close() error {
	var errs []error
	if f.firestoreClient != nil {
		if err := f.firestoreClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close firestore client: %w", err))
		}
	}
	if f.storageClient != nil {
		if err := f.storageClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage client: %w", err))
		}
	}
	return errors.Join(errs...)
}
