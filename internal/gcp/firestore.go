package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/recordarchiver/internal/models"
	"github.com/Lllllllleong/recordarchiver/internal/pipeline"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewFirestoreClient creates a Firestore client for the given project and database.
// An empty database ID selects the project's default database.
func NewFirestoreClient(ctx context.Context, projectID, databaseID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreSource reads and deletes records in one Firestore collection.
type FirestoreSource struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreSource creates a source over the named collection.
func NewFirestoreSource(client *firestore.Client, collection string) *FirestoreSource {
	return &FirestoreSource{client: client, collection: collection}
}

// FetchBatch runs one page of the range query p.Field < p.Before, ordered by
// the timestamp and then document ID so StartAfter resumes deterministically
// even after earlier documents have been deleted.
func (s *FirestoreSource) FetchBatch(ctx context.Context, p pipeline.Predicate, after *models.Record, limit int) ([]models.Record, error) {
	q := s.client.Collection(s.collection).
		Where(p.Field, "<", p.Before).
		OrderBy(p.Field, firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(limit)
	if after != nil {
		q = q.StartAfter(after.CreatedAt, after.ID)
	}

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.collection, err)
	}

	records := make([]models.Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := recordFromData(doc.Ref.ID, p.Field, doc.Data())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DeleteRecord deletes the document with the given ID. A document that no
// longer exists counts as zero deletions.
func (s *FirestoreSource) DeleteRecord(ctx context.Context, id string) (int, error) {
	_, err := s.client.Collection(s.collection).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s/%s: %w", s.collection, id, err)
	}
	return 1, nil
}

// recordFromData converts a document's data into a Record, replacing the
// Firestore-specific value types with their model equivalents.
func recordFromData(id, timestampField string, data map[string]interface{}) (models.Record, error) {
	createdAt, ok := data[timestampField].(time.Time)
	if !ok {
		return models.Record{}, fmt.Errorf("document %s: field %q is %T, want a timestamp", id, timestampField, data[timestampField])
	}
	fields, ok := toNative(data).(map[string]interface{})
	if !ok {
		return models.Record{}, fmt.Errorf("document %s: unexpected data shape", id)
	}
	return models.Record{ID: id, CreatedAt: createdAt, Fields: fields}, nil
}

func toNative(v interface{}) interface{} {
	switch val := v.(type) {
	case *latlng.LatLng:
		if val == nil {
			return nil
		}
		return models.GeoPoint{Latitude: val.GetLatitude(), Longitude: val.GetLongitude()}
	case *firestore.DocumentRef:
		if val == nil {
			return nil
		}
		return models.Reference{Path: val.Path}
	case firestore.Vector64:
		return append(models.Vector(nil), val...)
	case firestore.Vector32:
		out := make(models.Vector, len(val))
		for i, f := range val {
			out[i] = float64(f)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, elem := range val {
			out[i] = toNative(elem)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, elem := range val {
			out[k] = toNative(elem)
		}
		return out
	default:
		return v
	}
}
