package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.CategoryFinished("club_data", "completed", 200*time.Millisecond)
	r.CategoryFinished("club_data", "completed", time.Second)
	r.CategoryFinished("matches_data", "failed", time.Second)
	r.MarketValue("fallback")
	r.UpstreamError("/clubs")
	r.UpstreamError("/clubs")
	r.RateLimited()
	r.BreakerTripped()
	r.SessionStarted()
	r.SessionStarted()
	r.SessionEnded()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.categoryRuns.WithLabelValues("club_data", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.categoryRuns.WithLabelValues("matches_data", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.marketValues.WithLabelValues("fallback")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.upstreamErrors.WithLabelValues("/clubs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.breakerTrips))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activeSessions))
	assert.Equal(t, 2, testutil.CollectAndCount(r.categoryDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.CategoryFinished("club_data", "completed", time.Second)
		r.MarketValue("comparables")
		r.UpstreamError("/clubs")
		r.RateLimited()
		r.BreakerTripped()
		r.SessionStarted()
		r.SessionEnded()
	})
}
