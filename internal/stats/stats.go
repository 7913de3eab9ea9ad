// Package stats accumulates a download session's outcome counters and
// renders the human-readable summary spec.md §6 describes, grounded on
// zvuk-grabber's statistics.go.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"streamgrab/internal/logger"
	"streamgrab/internal/model"
)

// Outcome classifies how a single DownloadTask ended. internal/queue
// reports one per task; the lifecycle's finer-grained reasons (already
// downloaded vs. already failed vs. filtered) are logged at the point
// they're decided and collapse to Skipped here, since Resolve returns
// only (nil, nil) for all of them -- the queue has no reason code to
// pass along.
type Outcome uint8

const (
	// Downloaded is a track whose full Preprocess/Download/Postprocess
	// lifecycle completed with no error.
	Downloaded Outcome = iota
	// Skipped is a track Resolve decided needed no work: already
	// downloaded, already failed terminally, not streamable, or
	// dropped by a discography filter.
	Skipped
	// Failed is a track that exhausted its retries or hit a
	// non-retryable error after resolution.
	Failed
)

// Failure records one task's terminal error for the error-details
// section of the summary, mirroring the teacher's DownloadError.
type Failure struct {
	Ref     model.Reference
	Phase   string
	Message string
}

// Stats accumulates counters across a run. The zero value is ready to
// use. Safe for concurrent use by every queue worker.
type Stats struct {
	mu sync.Mutex

	startTime time.Time
	endTime   time.Time
	dryRun    bool

	processed  int64
	downloaded int64
	skipped    int64
	failed     int64
	bytes      int64

	failures []Failure

	onRecord func(Outcome)
}

// New starts a Stats clock. dryRun controls only the summary's header
// and wording, matching the teacher's IsDryRun flag.
func New(dryRun bool) *Stats {
	return &Stats{startTime: time.Now(), dryRun: dryRun}
}

// OnRecord installs fn to be called, outside the counter lock, after
// every Record call. internal/app uses it to advance a progress bar
// without Stats needing to know progressbar exists.
func (s *Stats) OnRecord(fn func(Outcome)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onRecord = fn
}

// Record books one task's outcome. bytesWritten is ignored for
// non-Downloaded outcomes.
func (s *Stats) Record(outcome Outcome, bytesWritten int64) {
	s.mu.Lock()

	s.processed++

	switch outcome {
	case Downloaded:
		s.downloaded++
		s.bytes += bytesWritten
	case Skipped:
		s.skipped++
	case Failed:
		s.failed++
	}

	onRecord := s.onRecord

	s.mu.Unlock()

	if onRecord != nil {
		onRecord(outcome)
	}
}

// RecordFailure appends a Failure to the error-details list, in
// addition to whatever Record call already booked the Failed outcome.
func (s *Stats) RecordFailure(f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures = append(s.failures, f)
}

// Snapshot is a point-in-time, read-only copy of the accumulated
// counters.
type Snapshot struct {
	Processed  int64
	Downloaded int64
	Skipped    int64
	Failed     int64
	Bytes      int64
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Processed:  s.processed,
		Downloaded: s.downloaded,
		Skipped:    s.skipped,
		Failed:     s.failed,
		Bytes:      s.bytes,
	}
}

// Stop freezes the end time used for the duration/average-speed lines.
// Call once, after every worker has exited.
func (s *Stats) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endTime = time.Now()
}

// formatDuration renders d the way the teacher's summary does:
// collapsing to the coarsest non-zero unit.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// PrintSummary prints the session's totals, data-transfer figures, and
// any failures, in the teacher's banner-and-sections layout. A no-op
// when nothing was ever processed.
func (s *Stats) PrintSummary(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processed == 0 {
		return
	}

	s.printHeader(ctx)
	s.printTrackCounts(ctx)
	s.printDataTransfer(ctx)
	s.printFooter(ctx)
	s.printFailures(ctx)
	s.printCompletionLine(ctx)
}

func (s *Stats) printHeader(ctx context.Context) {
	logger.Info(ctx, "")
	logger.Info(ctx, "═══════════════════════════════════════════════")

	if s.dryRun {
		logger.Info(ctx, "                DRY-RUN PREVIEW")
	} else {
		logger.Info(ctx, "                DOWNLOAD SUMMARY")
	}

	logger.Info(ctx, "═══════════════════════════════════════════════")
}

func (s *Stats) printTrackCounts(ctx context.Context) {
	verb := "Downloaded"
	if s.dryRun {
		verb = "Would download"
	}

	logger.Infof(ctx, "Tracks:      %d total processed", s.processed)

	if s.downloaded > 0 {
		logger.Infof(ctx, "  %s: %d", verb, s.downloaded)
	}

	if s.skipped > 0 {
		logger.Infof(ctx, "  Skipped:   %d", s.skipped)
	}

	if s.failed > 0 {
		logger.Infof(ctx, "  Failed:    %d", s.failed)
	}

	successCount := s.downloaded + s.skipped
	logger.Infof(ctx, "  Success rate: %.1f%%", float64(successCount)/float64(s.processed)*100)
}

func (s *Stats) printDataTransfer(ctx context.Context) {
	if s.bytes == 0 {
		return
	}

	logger.Info(ctx, "")

	label := "Data downloaded"
	if s.dryRun {
		label = "Estimated size"
	}

	//nolint:gosec // bytes is a monotonically increasing counter of successful writes, never negative.
	logger.Infof(ctx, "%s: %s", label, humanize.Bytes(uint64(s.bytes)))

	if s.dryRun || s.startTime.IsZero() || s.endTime.IsZero() {
		return
	}

	duration := s.endTime.Sub(s.startTime)
	if duration <= 100*time.Millisecond {
		return
	}

	logger.Infof(ctx, "Duration: %s", formatDuration(duration))

	//nolint:gosec // bytes is never negative; duration.Seconds() > 0 here.
	bytesPerSecond := float64(s.bytes) / duration.Seconds()
	logger.Infof(ctx, "Average speed: %s/s", humanize.Bytes(uint64(bytesPerSecond)))
}

func (s *Stats) printFooter(ctx context.Context) {
	logger.Info(ctx, "═══════════════════════════════════════════════")
}

func (s *Stats) printFailures(ctx context.Context) {
	if len(s.failures) == 0 {
		return
	}

	logger.Info(ctx, "")
	logger.Errorf(ctx, "ERRORS ENCOUNTERED: %d", len(s.failures))

	for i, f := range s.failures {
		logger.Errorf(ctx, "  [%d] %s (%s): %s", i+1, f.Ref, f.Phase, f.Message)
	}
}

// printCompletionLine emits spec §7's mandated shutdown line when any
// item failed, kept as the final line PrintSummary ever prints so it
// remains the reliable "did this run have failures" signal regardless
// of how much other banner text precedes it.
func (s *Stats) printCompletionLine(ctx context.Context) {
	if s.failed == 0 {
		return
	}

	logger.Infof(ctx, "Download completed with %d failed items out of %d", s.failed, s.processed)
}
