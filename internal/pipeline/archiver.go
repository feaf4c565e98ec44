package pipeline

import (
	"context"
	"fmt"
	"path"

	"github.com/Lllllllleong/recordarchiver/internal/models"
)

// ArchiveKeyTimeLayout formats the record timestamp in archive keys (yyyyMMddHHmmss, UTC).
const ArchiveKeyTimeLayout = "20060102150405"

// ArchiveContentType is the content type of every archived object.
const ArchiveContentType = "application/json"

// ObjectWriter stores a complete object under key. Readers must observe either
// no object or the whole payload; an existing object is replaced.
type ObjectWriter interface {
	WriteObject(ctx context.Context, key, contentType string, data []byte) error
}

// Receipt proves that a record's archive write completed. Only Archiver can
// issue one, and Purger only deletes records it holds a receipt for.
type Receipt struct {
	id  string
	key string
}

// ID returns the archived record's ID.
func (r Receipt) ID() string { return r.id }

// Key returns the object key the record was written to.
func (r Receipt) Key() string { return r.key }

// Archiver writes records to the destination store under deterministic keys.
type Archiver struct {
	store      ObjectWriter
	collection string
}

// NewArchiver creates an Archiver writing under the collection's prefix.
func NewArchiver(store ObjectWriter, collection string) *Archiver {
	return &Archiver{store: store, collection: collection}
}

// ArchiveKey returns {collection}/{createdAt:yyyyMMddHHmmss}_{id}.json.
func ArchiveKey(collection string, rec *models.Record) string {
	name := fmt.Sprintf("%s_%s.json", rec.CreatedAt.UTC().Format(ArchiveKeyTimeLayout), rec.ID)
	return path.Join(collection, name)
}

// ArchiveDocument returns the exact bytes Archive writes for rec: the record's
// document ID alongside its fields, which are kept verbatim.
func ArchiveDocument(rec *models.Record) ([]byte, error) {
	return EncodeArchive(rec.ID, rec.Fields)
}

// Archive serializes rec and writes it as a single object. Archiving the same
// record again overwrites the object with identical bytes.
func (a *Archiver) Archive(ctx context.Context, rec *models.Record) (Receipt, error) {
	key := ArchiveKey(a.collection, rec)

	data, err := ArchiveDocument(rec)
	if err != nil {
		return Receipt{}, &ArchiveWriteError{Key: key, Cause: fmt.Errorf("failed to encode record %s: %w", rec.ID, err)}
	}

	if err := a.store.WriteObject(ctx, key, ArchiveContentType, data); err != nil {
		return Receipt{}, &ArchiveWriteError{Key: key, Cause: err}
	}
	return Receipt{id: rec.ID, key: key}, nil
}
