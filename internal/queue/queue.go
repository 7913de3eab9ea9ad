// Package queue implements spec.md §4.4: a bounded pool of workers
// draining a stream of model.DownloadTask, retrying transient failures
// with backoff, and detecting -- per album -- the moment every sibling
// task has terminated so the ledger's release-complete entry is
// written exactly once. Grounded on zvuk-grabber's track.go
// (downloadTracksConcurrently's semaphore/WaitGroup worker pool) and
// error_handler.go (centralized failure recording), generalized from a
// fixed track-ID slice to a live channel and from a single collection
// to per-album completion tracking.
package queue

import (
	"context"
	"sync"
	"time"

	"streamgrab/internal/ledger"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/stats"
)

// Queue drains a Streamer's output channel with a bounded pool of
// workers, per spec §4.4's "N = config.max_connections workers".
// Per-provider and global-download concurrency are already enforced
// one layer down, inside trackMedia.Download and enrichAlbum (spec §5)
// -- Queue's own worker count only bounds how many tasks are actively
// being resolved/ripped at once, not the provider-facing I/O itself.
type Queue struct {
	ledger     *ledger.Ledger
	stats      *stats.Stats
	workers    int
	maxRetries int

	albumsMu sync.Mutex
	albums   map[model.Reference]*albumProgress
}

// albumProgress tracks, for one album reference, how many of its
// sibling tasks have terminated (and how many of those succeeded)
// against how many the Streamer originally enumerated.
type albumProgress struct {
	total     int
	done      int
	succeeded int
}

// New builds a Queue. workers and maxRetries normally come straight
// from config.Config.MaxConnections / RetryAttemptsCount. statsCollector
// may be nil to disable summary bookkeeping entirely.
func New(l *ledger.Ledger, statsCollector *stats.Stats, workers, maxRetries int) *Queue {
	if workers < 1 {
		workers = 1
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Queue{
		ledger:     l,
		stats:      statsCollector,
		workers:    workers,
		maxRetries: maxRetries,
		albums:     make(map[model.Reference]*albumProgress),
	}
}

// Run drains in with Queue's worker pool until in is closed and every
// task -- including ones still waiting out a retry backoff -- has
// terminated, or ctx is canceled. It blocks until both conditions hold.
func (q *Queue) Run(ctx context.Context, in <-chan model.DownloadTask) {
	work := make(chan model.DownloadTask, q.workers)

	var pending sync.WaitGroup

	pending.Add(1) // held by the forwarder until `in` is drained

	go func() {
		defer pending.Done()

		for task := range in {
			pending.Add(1)

			select {
			case work <- task:
			case <-ctx.Done():
				pending.Done()
			}
		}
	}()

	go func() {
		pending.Wait()
		close(work)
	}()

	var workers sync.WaitGroup

	for range q.workers {
		workers.Add(1)

		go func() {
			defer workers.Done()

			for task := range work {
				q.process(ctx, task, &pending, work)
			}
		}()
	}

	workers.Wait()
}

// process resolves and rips a single task, then either finalizes it
// (success, skip, or exhausted-retries failure) or schedules a retry.
// Exactly one of pending.Done() (now) or a later pending.Done() (after
// a retry resolves) fires for every task this func is called with.
func (q *Queue) process(ctx context.Context, task model.DownloadTask, pending *sync.WaitGroup, work chan<- model.DownloadTask) {
	select {
	case <-ctx.Done():
		pending.Done()

		return
	default:
	}

	media, err := task.Track.Resolve(ctx)

	switch {
	case err == nil && media == nil:
		q.recordOutcome(stats.Skipped, 0)
		q.finishAlbumTask(ctx, task, q.trackAlreadyDownloaded(ctx, task))
		pending.Done()

		return
	case err != nil:
		q.retryOrGiveUp(ctx, task, work, pending, err)

		return
	}

	var written int64

	if ripErr := model.Rip(ctx, media, func(n int64) { written = n }); ripErr != nil {
		q.retryOrGiveUp(ctx, task, work, pending, ripErr)

		return
	}

	q.recordOutcome(stats.Downloaded, written)
	q.finishAlbumTask(ctx, task, true)
	pending.Done()
}

// trackAlreadyDownloaded distinguishes, for album-completion purposes,
// a skip that represents success (the track was already downloaded on
// an earlier run) from a skip that represents a terminal failure or a
// filter drop. Resolve's (nil, nil) result carries no reason code, so
// this re-checks the one fact that actually matters: the downloads
// table entry Resolve itself would have consulted.
func (q *Queue) trackAlreadyDownloaded(ctx context.Context, task model.DownloadTask) bool {
	ref := task.Track.Reference()

	done, err := q.ledger.Downloaded(ctx, ref.Source, ref.ID)
	if err != nil {
		logger.WarnKV(ctx, "queue: check downloaded failed", "ref", ref, "error", err)

		return false
	}

	return done
}

// retryOrGiveUp implements spec §4.4's retry policy: retryCount is
// incremented and the task is re-queued after a sleep of
// retryCount×2 seconds; once the task has been attempted maxRetries
// times it is marked failed in the ledger and discarded.
func (q *Queue) retryOrGiveUp(
	ctx context.Context,
	task model.DownloadTask,
	work chan<- model.DownloadTask,
	pending *sync.WaitGroup,
	cause error,
) {
	ref := task.Track.Reference()
	attempt := task.RetryCount + 1

	if attempt >= q.maxRetries {
		q.giveUp(ctx, ref, cause)
		q.finishAlbumTask(ctx, task, false)
		pending.Done()

		return
	}

	task.RetryCount++
	backoff := time.Duration(task.RetryCount) * 2 * time.Second

	logger.InfoKV(ctx, "queue: task failed, scheduling retry",
		"ref", ref, "attempt", attempt, "backoff", backoff, "error", cause)

	go func() {
		timer := time.NewTimer(backoff)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			pending.Done()

			return
		}

		select {
		case work <- task:
		case <-ctx.Done():
			pending.Done()
		}
	}()
}

// giveUp records a task's final, non-retryable failure: logged, marked
// in the ledger (idempotent even if an earlier stage already marked
// it), and booked against the summary.
func (q *Queue) giveUp(ctx context.Context, ref model.Reference, cause error) {
	logger.ErrorKV(ctx, "queue: task failed terminally, giving up", "ref", ref, "error", cause)

	if err := q.ledger.MarkFailed(ctx, ref.Source, ref.Kind, ref.ID, cause.Error()); err != nil {
		logger.WarnKV(ctx, "queue: mark failed write failed", "ref", ref, "error", err)
	}

	q.recordOutcome(stats.Failed, 0)

	if q.stats != nil {
		q.stats.RecordFailure(stats.Failure{Ref: ref, Phase: "download", Message: cause.Error()})
	}
}

func (q *Queue) recordOutcome(outcome stats.Outcome, bytesWritten int64) {
	if q.stats != nil {
		q.stats.Record(outcome, bytesWritten)
	}
}

// finishAlbumTask books task's termination against its album's sibling
// count (spec §4.4's "ordering guarantee": the completion check runs
// strictly after all of an album's tracks have terminated). Per spec
// §4.4's completion rule, the release row is written only when every
// sibling actually ended up downloaded -- a single permanent failure
// withholds the album's release row entirely, so a later run retries
// just the missing tracks instead of trusting a partial album. A
// no-op for standalone tracks and playlist entries, which carry no
// AlbumRef.
func (q *Queue) finishAlbumTask(ctx context.Context, task model.DownloadTask, succeeded bool) {
	if task.AlbumRef == nil {
		return
	}

	ref := *task.AlbumRef

	q.albumsMu.Lock()

	progress, ok := q.albums[ref]
	if !ok {
		progress = &albumProgress{total: task.AlbumChildCount}
		q.albums[ref] = progress
	}

	progress.done++

	if succeeded {
		progress.succeeded++
	}

	done, total, allSucceeded := progress.done, progress.total, progress.succeeded == progress.total

	if total > 0 && done >= total {
		delete(q.albums, ref)
	}

	q.albumsMu.Unlock()

	if total == 0 || done < total || !allSucceeded {
		return
	}

	if err := q.ledger.MarkReleaseComplete(ctx, ref.Source, ref.Kind, ref.ID, total); err != nil {
		logger.WarnKV(ctx, "queue: mark release complete failed", "album", ref, "error", err)
	}
}
