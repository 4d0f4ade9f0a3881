package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	t.Run("RecordVenue", func(t *testing.T) {
		before := testutil.ToFloat64(VenueSyncsTotal.WithLabelValues("test-venue", "failed"))
		RecordVenue("test-venue", "failed")
		RecordVenue("test-venue", "failed")

		after := testutil.ToFloat64(VenueSyncsTotal.WithLabelValues("test-venue", "failed"))
		if after-before != 2 {
			t.Errorf("expected 2 increments, got %v", after-before)
		}
	})

	t.Run("SetRunInProgress", func(t *testing.T) {
		SetRunInProgress(true)
		if v := testutil.ToFloat64(RunInProgress); v != 1 {
			t.Errorf("expected 1, got %v", v)
		}

		SetRunInProgress(false)
		if v := testutil.ToFloat64(RunInProgress); v != 0 {
			t.Errorf("expected 0, got %v", v)
		}
	})

	t.Run("RecordRun", func(t *testing.T) {
		before := testutil.ToFloat64(RunsTotal.WithLabelValues("test"))
		RecordRun("test", 3*time.Second)

		if v := testutil.ToFloat64(RunsTotal.WithLabelValues("test")); v-before != 1 {
			t.Errorf("expected one run recorded, got %v", v-before)
		}
	})

	t.Run("SetVenueTracks", func(t *testing.T) {
		SetVenueTracks("test-venue", 42)
		if v := testutil.ToFloat64(VenueTracks.WithLabelValues("test-venue")); v != 42 {
			t.Errorf("expected 42, got %v", v)
		}
	})
}
