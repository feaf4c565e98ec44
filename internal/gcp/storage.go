package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// NewStorageClient creates a Cloud Storage client. A non-empty endpoint points
// the client at an alternative server such as a local emulator.
func NewStorageClient(ctx context.Context, endpoint string) (*storage.Client, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// BucketStore writes archive objects into a single bucket.
type BucketStore struct {
	bucket *storage.BucketHandle
	name   string
}

// NewBucketStore creates a store over the named bucket.
func NewBucketStore(client *storage.Client, bucketName string) *BucketStore {
	return &BucketStore{bucket: client.Bucket(bucketName), name: bucketName}
}

// WriteObject uploads data as one object, replacing any existing object with
// the same name. The object only becomes visible once the upload is finalized
// by Close, so a failed write never leaves a partial object behind.
func (s *BucketStore) WriteObject(ctx context.Context, key, contentType string, data []byte) error {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := s.bucket.Object(key).NewWriter(writeCtx)
	writer.ContentType = contentType
	// Single request upload: the payload is already in memory.
	writer.ChunkSize = 0

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		_ = writer.Close()
		slog.Error("Failed to copy content to GCS object", "bucket", s.name, "object", key, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		slog.Error("Failed to close GCS writer", "bucket", s.name, "object", key, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}
