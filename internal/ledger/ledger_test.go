package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/model"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l
}

func TestDownloadedRoundtrip(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	ok, err := l.Downloaded(ctx, "qobuzstream", "123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.MarkDownloaded(ctx, "qobuzstream", "123"))

	ok, err = l.Downloaded(ctx, "qobuzstream", "123")
	require.NoError(t, err)
	assert.True(t, ok)

	// Marking twice must not error (idempotent).
	require.NoError(t, l.MarkDownloaded(ctx, "qobuzstream", "123"))
}

func TestDownloadedIsNamespacedBySource(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.MarkDownloaded(ctx, "qobuzstream", "42"))

	ok, err := l.Downloaded(ctx, "tidalflow", "42")
	require.NoError(t, err)
	assert.False(t, ok, "same numeric id from a different provider must not count as downloaded")
}

func TestFailedRoundtrip(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	ok, err := l.Failed(ctx, "deezerbeam", model.KindTrack, "99")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.MarkFailed(ctx, "deezerbeam", model.KindTrack, "99", "not streamable"))

	ok, err = l.Failed(ctx, "deezerbeam", model.KindTrack, "99")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseRoundtrip(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	_, err := l.Release(ctx, "tidalflow", model.KindAlbum, "album-1")
	assert.ErrorIs(t, err, ErrNoSuchRelease)

	require.NoError(t, l.MarkReleaseComplete(ctx, "tidalflow", model.KindAlbum, "album-1", 12))

	rel, err := l.Release(ctx, "tidalflow", model.KindAlbum, "album-1")
	require.NoError(t, err)
	assert.Equal(t, 12, rel.ChildCount)
	assert.False(t, rel.CompletedAt.IsZero())
}
