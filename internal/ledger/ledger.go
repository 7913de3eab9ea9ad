// Package ledger is the durable idempotency store spec.md §4.8
// describes: three tables (downloads, failures, releases) keyed by
// provider-namespaced IDs, backed by an embedded sqlite database so the
// engine survives process restarts without an external dependency.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"streamgrab/internal/logger"
	"streamgrab/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	source TEXT NOT NULL,
	track_id TEXT NOT NULL,
	downloaded_at DATETIME NOT NULL,
	PRIMARY KEY (source, track_id)
);

CREATE TABLE IF NOT EXISTS failures (
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	reason TEXT,
	failed_at DATETIME NOT NULL,
	PRIMARY KEY (source, kind, id)
);

CREATE TABLE IF NOT EXISTS releases (
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	child_count INTEGER NOT NULL,
	completed_at DATETIME NOT NULL,
	PRIMARY KEY (source, kind, id)
);
`

// Release describes a completed container, as returned by Release.
type Release struct {
	ChildCount  int
	CompletedAt time.Time
}

// Ledger is a handle on the sqlite-backed store. One *sql.DB is shared
// by every caller; sqlite serializes writes internally so no
// additional locking is needed at this layer (spec §4.8: "transactions
// are not required because each row is updated by at most one task at
// a time and rows are independent").
type Ledger struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the sqlite database at path,
// applying the schema idempotently.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	// sqlite only tolerates one writer at a time; a single connection
	// avoids SQLITE_BUSY errors under concurrent worker access.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Downloaded reports whether trackID from source was already
// successfully downloaded and tagged.
func (l *Ledger) Downloaded(ctx context.Context, source model.Source, trackID string) (bool, error) {
	var count int

	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM downloads WHERE source = ? AND track_id = ?`,
		string(source), trackID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("ledger: query downloads: %w", err)
	}

	return count > 0, nil
}

// MarkDownloaded records that trackID's bytes and tags were written
// successfully. Safe to call more than once for the same track.
func (l *Ledger) MarkDownloaded(ctx context.Context, source model.Source, trackID string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO downloads (source, track_id, downloaded_at) VALUES (?, ?, ?)
		 ON CONFLICT (source, track_id) DO NOTHING`,
		string(source), trackID, now(),
	)
	if err != nil {
		return fmt.Errorf("ledger: mark downloaded: %w", err)
	}

	logger.DebugKV(ctx, "ledger: marked downloaded", "source", source, "trackID", trackID)

	return nil
}

// Failed reports whether (source, kind, id) already has a terminal
// failure recorded.
func (l *Ledger) Failed(ctx context.Context, source model.Source, kind model.Kind, id string) (bool, error) {
	var count int

	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM failures WHERE source = ? AND kind = ? AND id = ?`,
		string(source), kind.String(), id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("ledger: query failures: %w", err)
	}

	return count > 0, nil
}

// MarkFailed records a terminal failure for (source, kind, id) with an
// optional human-readable reason.
func (l *Ledger) MarkFailed(ctx context.Context, source model.Source, kind model.Kind, id, reason string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO failures (source, kind, id, reason, failed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (source, kind, id) DO UPDATE SET reason = excluded.reason, failed_at = excluded.failed_at`,
		string(source), kind.String(), id, reason, now(),
	)
	if err != nil {
		return fmt.Errorf("ledger: mark failed: %w", err)
	}

	logger.WarnKV(ctx, "ledger: marked failed", "source", source, "kind", kind, "id", id, "reason", reason)

	return nil
}

// ErrNoSuchRelease is returned by Release when the container has not
// been marked complete.
var ErrNoSuchRelease = errors.New("ledger: no release recorded")

// Release looks up a completed container's record.
func (l *Ledger) Release(ctx context.Context, source model.Source, kind model.Kind, id string) (Release, error) {
	var (
		childCount  int
		completedAt time.Time
	)

	err := l.db.QueryRowContext(ctx,
		`SELECT child_count, completed_at FROM releases WHERE source = ? AND kind = ? AND id = ?`,
		string(source), kind.String(), id,
	).Scan(&childCount, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Release{}, ErrNoSuchRelease
	}

	if err != nil {
		return Release{}, fmt.Errorf("ledger: query releases: %w", err)
	}

	return Release{ChildCount: childCount, CompletedAt: completedAt}, nil
}

// MarkReleaseComplete records that a container (album/artist/label) was
// fully processed, with the number of children it had at completion
// time.
func (l *Ledger) MarkReleaseComplete(ctx context.Context, source model.Source, kind model.Kind, id string, childCount int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO releases (source, kind, id, child_count, completed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (source, kind, id) DO UPDATE SET child_count = excluded.child_count, completed_at = excluded.completed_at`,
		string(source), kind.String(), id, childCount, now(),
	)
	if err != nil {
		return fmt.Errorf("ledger: mark release complete: %w", err)
	}

	logger.InfoKV(ctx, "ledger: release complete", "source", source, "kind", kind, "id", id, "childCount", childCount)

	return nil
}

func now() time.Time { return time.Now().UTC() }
