package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/models"
)

// journal records store calls in the order they were issued.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(event string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

// memSource is an in-memory document collection implementing BatchFetcher and RecordDeleter.
type memSource struct {
	mu      sync.Mutex
	docs    map[string]models.Record
	journal *journal

	fetches    int
	fetchErrs  map[int]error
	deleteErrs map[string][]error
}

func newMemSource(j *journal, records ...models.Record) *memSource {
	s := &memSource{
		docs:       make(map[string]models.Record),
		journal:    j,
		fetchErrs:  make(map[int]error),
		deleteErrs: make(map[string][]error),
	}
	for _, rec := range records {
		s.docs[rec.ID] = rec
	}
	return s
}

func (s *memSource) FetchBatch(_ context.Context, p Predicate, after *models.Record, limit int) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++
	if s.journal != nil {
		s.journal.add("fetch")
	}
	if err, ok := s.fetchErrs[s.fetches]; ok {
		return nil, err
	}

	var matches []models.Record
	for _, rec := range s.docs {
		if !p.Matches(rec.CreatedAt) {
			continue
		}
		if after != nil && !isAfter(rec, *after) {
			continue
		}
		matches = append(matches, rec)
	}
	sort.Slice(matches, func(i, j int) bool { return isAfter(matches[j], matches[i]) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func isAfter(rec, pivot models.Record) bool {
	if rec.CreatedAt.Equal(pivot.CreatedAt) {
		return rec.ID > pivot.ID
	}
	return rec.CreatedAt.After(pivot.CreatedAt)
}

func (s *memSource) DeleteRecord(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal != nil {
		s.journal.add("purge:" + id)
	}
	if errs := s.deleteErrs[id]; len(errs) > 0 {
		s.deleteErrs[id] = errs[1:]
		return 0, errs[0]
	}
	if _, ok := s.docs[id]; !ok {
		return 0, nil
	}
	delete(s.docs, id)
	return 1, nil
}

func (s *memSource) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// memBucket is an in-memory object store implementing ObjectWriter.
type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	journal *journal

	writes    int
	writeErrs map[string][]error
}

func newMemBucket(j *journal) *memBucket {
	return &memBucket{
		objects:   make(map[string][]byte),
		types:     make(map[string]string),
		journal:   j,
		writeErrs: make(map[string][]error),
	}
}

func (b *memBucket) WriteObject(_ context.Context, key, contentType string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.writes++
	if b.journal != nil {
		b.journal.add("archive:" + key)
	}
	if errs := b.writeErrs[key]; len(errs) > 0 {
		b.writeErrs[key] = errs[1:]
		return errs[0]
	}
	b.objects[key] = append([]byte(nil), data...)
	b.types[key] = contentType
	return nil
}

func (b *memBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fixedRand always returns the same fraction of the requested range.
type fixedRand struct {
	numerator, denominator int64
	calls                  []int64
}

func (r *fixedRand) Int63n(n int64) int64 {
	r.calls = append(r.calls, n)
	return (n - 1) * r.numerator / r.denominator
}

// recordingSleep captures backoff delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// archivedID extracts the record ID from an archive key.
func archivedID(key string) string {
	name := key[strings.LastIndex(key, "/")+1:]
	name = strings.TrimSuffix(name, ".json")
	return name[strings.Index(name, "_")+1:]
}

// countingObserver tallies runner notifications.
type countingObserver struct {
	archived  []string
	purged    []int
	throttled []time.Duration
}

func (o *countingObserver) RecordArchived(key string) { o.archived = append(o.archived, key) }
func (o *countingObserver) RecordPurged(n int) { o.purged = append(o.purged, n) }
func (o *countingObserver) Throttled(delay time.Duration) { o.throttled = append(o.throttled, delay) }
