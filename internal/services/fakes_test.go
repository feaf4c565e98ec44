package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/config"
	"github.com/Lllllllleong/recordarchiver/internal/models"
	"github.com/Lllllllleong/recordarchiver/internal/pipeline"
)

// memStore is an in-memory collection and bucket.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]models.Record
	objects   map[string][]byte
	fetchErrs []error
}

func newMemStore(records ...models.Record) *memStore {
	s := &memStore{docs: map[string]models.Record{}, objects: map[string][]byte{}}
	for _, rec := range records {
		s.docs[rec.ID] = rec
	}
	return s
}

func (s *memStore) FetchBatch(_ context.Context, p pipeline.Predicate, after *models.Record, limit int) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.fetchErrs) > 0 {
		err := s.fetchErrs[0]
		s.fetchErrs = s.fetchErrs[1:]
		return nil, err
	}

	var out []models.Record
	for _, rec := range s.docs {
		if !p.Matches(rec.CreatedAt) {
			continue
		}
		if after != nil && !less(*after, rec) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func less(a, b models.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *memStore) DeleteRecord(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return 0, nil
	}
	delete(s.docs, id)
	return 1, nil
}

func (s *memStore) WriteObject(_ context.Context, key, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *memStore) object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

func testConfig() config.Config {
	cfg := *config.Defaults()
	cfg.RetentionDays = 30
	cfg.Source.ProjectID = "proj"
	cfg.Source.Database = "(default)"
	cfg.Source.Collection = "events"
	cfg.Destination.Bucket = "archive"
	return cfg
}

// zeroRand always picks the shortest backoff.
type zeroRand struct{}

func (zeroRand) Int63n(int64) int64 { return 0 }

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
