package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

func agedRecords(n int, base time.Time) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		createdAt := base.Add(time.Duration(i) * time.Minute)
		records[i] = models.Record{
			ID:        fmt.Sprintf("rec-%03d", i),
			CreatedAt: createdAt,
			Fields:    map[string]interface{}{"createdAt": createdAt, "n": int64(i)},
		}
	}
	return records
}

func drain(t *testing.T, c *BatchCursor) []string {
	t.Helper()
	var ids []string
	for {
		rec, err := c.Next(context.Background())
		if errors.Is(err, iterator.Done) {
			return ids
		}
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
}

func TestBatchCursor_BatchBoundaries(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	pred := Predicate{Field: "createdAt", Before: now}

	tests := []struct {
		name        string
		records     int
		batchSize   int
		wantFetches int
	}{
		{name: "45 records in batches of 20", records: 45, batchSize: 20, wantFetches: 3},
		{name: "exact multiple needs a final empty fetch", records: 40, batchSize: 20, wantFetches: 3},
		{name: "single short batch", records: 5, batchSize: 20, wantFetches: 1},
		{name: "empty result", records: 0, batchSize: 20, wantFetches: 1},
		{name: "batch of one", records: 3, batchSize: 1, wantFetches: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := agedRecords(tt.records, now.Add(-48*time.Hour))
			src := newMemSource(nil, records...)

			c, err := OpenCursor(src, pred, tt.batchSize)
			require.NoError(t, err)
			assert.Equal(t, 0, src.fetches, "opening does not fetch")

			ids := drain(t, c)
			require.Len(t, ids, tt.records)
			for i, id := range ids {
				assert.Equal(t, records[i].ID, id, "records are yielded in store order")
			}
			assert.Equal(t, tt.wantFetches, src.fetches)
			assert.Equal(t, tt.wantFetches, c.Fetches())
		})
	}
}

func TestBatchCursor_FetchesLazily(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	src := newMemSource(nil, agedRecords(45, now.Add(-time.Hour*48))...)
	c, err := OpenCursor(src, Predicate{Field: "createdAt", Before: now}, 20)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.fetches, "second batch not requested until the first is consumed")

	_, err = c.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetches)
}

func TestBatchCursor_SkipsIneligible(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := models.Record{ID: "old", CreatedAt: now.Add(-time.Hour)}
	young := models.Record{ID: "young", CreatedAt: now.Add(time.Hour)}
	src := newMemSource(nil, old, young)

	c, err := OpenCursor(src, Predicate{Field: "createdAt", Before: now}, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, drain(t, c))
}

func TestBatchCursor_NotRestartable(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	src := newMemSource(nil, agedRecords(2, now.Add(-time.Hour*48))...)
	c, err := OpenCursor(src, Predicate{Field: "createdAt", Before: now}, 20)
	require.NoError(t, err)

	drain(t, c)
	_, err = c.Next(context.Background())
	assert.ErrorIs(t, err, iterator.Done)
	assert.Equal(t, 1, src.fetches, "no fetch after exhaustion")
}

func TestBatchCursor_FetchErrorIsTerminal(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	src := newMemSource(nil, agedRecords(30, now.Add(-time.Hour*48))...)
	boom := errors.New("backend unavailable")
	src.fetchErrs[2] = boom

	c, err := OpenCursor(src, Predicate{Field: "createdAt", Before: now}, 20)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := c.Next(context.Background())
		require.NoError(t, err)
	}

	_, err = c.Next(context.Background())
	require.ErrorIs(t, err, boom)
	var opErr *StoreOperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "fetch", opErr.Op)

	_, again := c.Next(context.Background())
	assert.Equal(t, err, again)
	assert.Equal(t, 2, src.fetches, "cursor does not retry a failed fetch")
}

func TestOpenCursor_Validation(t *testing.T) {
	src := newMemSource(nil)
	_, err := OpenCursor(src, Predicate{}, 0)
	assert.Error(t, err)
	_, err = OpenCursor(nil, Predicate{}, 20)
	assert.Error(t, err)
}
