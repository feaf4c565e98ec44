package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/recordarchiver/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ pipeline.Observer = (*Collector)(nil)

func TestCollector_RecordProgress(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordArchived("c/20240101000000_a.json")
	c.RecordArchived("c/20240101000000_b.json")
	c.RecordPurged(1)
	c.RecordPurged(0)
	c.Throttled(2 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.archived))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.purged))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.absent))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.throttles))
}

func TestCollector_RunFinished(t *testing.T) {
	c := NewCollector(nil)
	finished := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.RunFinished(OutcomeFailure, time.Second, finished)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.lastSuccess), "failures do not move the success timestamp")

	c.RunFinished(OutcomeSuccess, 2*time.Second, finished)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(c.lastSuccess))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.RecordArchived("k")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "record_archiver_records_archived_total 1"), body)
}
