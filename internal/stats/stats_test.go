package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAccumulatesCounters(t *testing.T) {
	t.Parallel()

	s := New(false)
	s.Record(Downloaded, 1024)
	s.Record(Downloaded, 2048)
	s.Record(Skipped, 0)
	s.Record(Failed, 0)

	snap := s.Snapshot()
	assert.Equal(t, int64(4), snap.Processed)
	assert.Equal(t, int64(2), snap.Downloaded)
	assert.Equal(t, int64(1), snap.Skipped)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(3072), snap.Bytes)
}

func TestRecordFailureDoesNotAffectCounters(t *testing.T) {
	t.Parallel()

	s := New(false)
	s.Record(Failed, 0)
	s.RecordFailure(Failure{Phase: "download", Message: "boom"})

	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(1), snap.Processed)
}

func TestOnRecordFiresForEveryOutcome(t *testing.T) {
	t.Parallel()

	s := New(false)

	var got []Outcome
	s.OnRecord(func(o Outcome) { got = append(got, o) })

	s.Record(Downloaded, 10)
	s.Record(Skipped, 0)
	s.Record(Failed, 0)

	assert.Equal(t, []Outcome{Downloaded, Skipped, Failed}, got)
}

func TestPrintSummaryNoopWhenNothingProcessed(t *testing.T) {
	t.Parallel()

	s := New(false)
	assert.NotPanics(t, func() { s.PrintSummary(context.Background()) })
}

func TestPrintSummaryWithTrafficDoesNotPanic(t *testing.T) {
	t.Parallel()

	s := New(true)
	s.Record(Downloaded, 4096)
	s.Record(Skipped, 0)
	s.Record(Failed, 0)
	s.RecordFailure(Failure{Phase: "tag", Message: "bad frame"})
	s.Stop()

	assert.NotPanics(t, func() { s.PrintSummary(context.Background()) })
}

func TestFormatDurationBuckets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "500ms", formatDuration(500*time.Millisecond))
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(2*time.Minute+5*time.Second))
	assert.Equal(t, "1h 0m 5s", formatDuration(time.Hour+5*time.Second))
}
