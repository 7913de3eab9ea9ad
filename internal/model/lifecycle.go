package model

import "context"

// Pending is a deferred fetch of metadata, polymorphic over Kind.
// Concrete implementations (internal/discovery) close over whatever
// collaborators they need (provider client, config, ledger); this
// package only names the contract so internal/queue and
// internal/discovery can depend on it without depending on each other.
//
// Resolve is idempotent and total: it never panics, and returns either
// a Media to continue ripping or (nil, nil) for every terminal "no work
// to do" outcome (already downloaded, not streamable, filtered out).
type Pending interface {
	Reference() Reference
	Resolve(ctx context.Context) (Media, error)
}

// Media is the per-item lifecycle; internal/discovery's track media is
// its only implementation, since containers are expanded into track
// tasks before they reach the queue. Rip composes the three lifecycle
// hooks in order; the semaphores for enrichment and byte-transfer are
// acquired inside the hooks themselves.
type Media interface {
	Reference() Reference
	Preprocess(ctx context.Context) error
	Download(ctx context.Context, onProgress func(bytesWritten int64)) error
	Postprocess(ctx context.Context) error
}

// Rip runs a Media's full lifecycle in order, stopping at the first
// error. internal/queue calls it for every resolved task and handles
// retry bookkeeping around the returned error.
func Rip(ctx context.Context, m Media, onProgress func(int64)) error {
	if err := m.Preprocess(ctx); err != nil {
		return err
	}

	if err := m.Download(ctx, onProgress); err != nil {
		return err
	}

	return m.Postprocess(ctx)
}

// Downloadable is the opaque handle a provider client produces for a
// chosen quality tier: enough to stream bytes to disk without the
// caller knowing anything about the provider's wire protocol.
type Downloadable interface {
	Size() int64
	Download(ctx context.Context, path string, onProgress func(bytesWritten int64)) error
	Extension() string
	Source() Source
}

// TaskType distinguishes the handful of shapes DownloadTask can take in
// the queue (currently only tracks are enqueued as leaf work; albums
// and other containers stay in the discovery stream and enqueue their
// children).
type TaskType uint8

const (
	// TaskTypeTrack is a single track ripped end-to-end by one worker.
	TaskTypeTrack TaskType = iota
)

// DownloadTask is the queue's unit of work. It is created by the
// discovery stream when it emits a track, owned by the queue while
// in-flight, and consumed exactly once per successful completion (or
// dropped after RetryCount exceeds the configured maximum).
type DownloadTask struct {
	Track      Pending
	AlbumRef   *Reference
	RetryCount int
	Type       TaskType

	// AlbumChildCount is the number of sibling tracks the Streamer
	// enumerated for AlbumRef at enqueue time (zero when AlbumRef is
	// nil). It lets internal/queue recognize, without any further
	// provider calls, the moment every task belonging to one album has
	// terminated so it can write the release-complete ledger entry
	// exactly once.
	AlbumChildCount int
}
