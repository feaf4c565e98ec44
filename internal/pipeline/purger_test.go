package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurger_Purge(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := models.Record{ID: "a", CreatedAt: created}
	src := newMemSource(nil, rec)
	archiver := NewArchiver(newMemBucket(nil), "c")
	purger := NewPurger(src)

	receipt, err := archiver.Archive(context.Background(), &rec)
	require.NoError(t, err)

	n, err := purger.Purge(context.Background(), receipt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, src.ids())

	n, err = purger.Purge(context.Background(), receipt)
	require.NoError(t, err, "purging an absent record is not an error")
	assert.Equal(t, 0, n)
}

func TestPurger_RequiresReceipt(t *testing.T) {
	src := newMemSource(nil, models.Record{ID: "a"})
	_, err := NewPurger(src).Purge(context.Background(), Receipt{})
	assert.Error(t, err)
	assert.Equal(t, []string{"a"}, src.ids())
}

func TestPurger_DeleteFailure(t *testing.T) {
	rec := models.Record{ID: "a"}
	src := newMemSource(nil, rec)
	boom := errors.New("permission denied")
	src.deleteErrs["a"] = []error{boom}

	_, err := NewPurger(src).Purge(context.Background(), Receipt{id: "a", key: "c/x_a.json"})
	assert.ErrorIs(t, err, boom)
	var opErr *StoreOperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "purge", opErr.Op)
	assert.Equal(t, "a", opErr.ID)
}
