// Package pipeline implements the export-and-purge run: selecting aged records,
// streaming them in bounded batches, archiving each one to object storage and
// deleting it from the source only after the archive write has completed.
//
// The pipeline talks to its stores through small interfaces (BatchFetcher,
// ObjectWriter, RecordDeleter) so the Firestore and Cloud Storage adapters in
// internal/gcp can be swapped for in-memory fakes in tests.
package pipeline
