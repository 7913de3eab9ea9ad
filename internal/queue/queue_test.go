package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/ledger"
	"streamgrab/internal/model"
	"streamgrab/internal/stats"
)

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()

	l, err := ledger.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l
}

// fakeTask is a model.Pending whose Resolve behavior is scripted per
// call index, letting tests simulate a transient failure followed by a
// later success without any real provider or ledger interaction.
type fakeTask struct {
	ref     model.Reference
	resolve func(attempt int) (model.Media, error)
	calls   int
}

func (f *fakeTask) Reference() model.Reference { return f.ref }

func (f *fakeTask) Resolve(_ context.Context) (model.Media, error) {
	attempt := f.calls
	f.calls++

	return f.resolve(attempt)
}

type fakeMedia struct {
	ref     model.Reference
	bytes   int64
	downErr error
}

func (m *fakeMedia) Reference() model.Reference          { return m.ref }
func (m *fakeMedia) Preprocess(_ context.Context) error  { return nil }
func (m *fakeMedia) Postprocess(_ context.Context) error { return nil }
func (m *fakeMedia) Download(_ context.Context, onProgress func(int64)) error {
	if onProgress != nil {
		onProgress(m.bytes)
	}

	return m.downErr
}

func runQueue(t *testing.T, ctx context.Context, q *Queue, in chan model.DownloadTask) {
	t.Helper()

	done := make(chan struct{})

	go func() {
		q.Run(ctx, in)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not finish in time")
	}
}

func TestQueueDownloadsSuccessfully(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ref := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}

	task := &fakeTask{ref: ref, resolve: func(int) (model.Media, error) {
		return &fakeMedia{ref: ref, bytes: 2048}, nil
	}}

	st := stats.New(false)
	q := New(l, st, 2, 3)

	in := make(chan model.DownloadTask, 1)
	in <- model.DownloadTask{Track: task, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, context.Background(), q, in)

	snap := st.Snapshot()
	assert.Equal(t, int64(1), snap.Downloaded)
	assert.Equal(t, int64(2048), snap.Bytes)
}

func TestQueueSkipsWhenResolveReturnsNothingToDo(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ref := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}

	task := &fakeTask{ref: ref, resolve: func(int) (model.Media, error) { return nil, nil }}

	st := stats.New(false)
	q := New(l, st, 1, 3)

	in := make(chan model.DownloadTask, 1)
	in <- model.DownloadTask{Track: task, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, context.Background(), q, in)

	snap := st.Snapshot()
	assert.Equal(t, int64(1), snap.Skipped)
	assert.Equal(t, int64(0), snap.Downloaded)
}

func TestQueueRetriesTransientFailureThenSucceeds(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ref := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}

	task := &fakeTask{ref: ref, resolve: func(attempt int) (model.Media, error) {
		if attempt == 0 {
			return nil, errors.New("transient fetch failure")
		}

		return &fakeMedia{ref: ref, bytes: 10}, nil
	}}

	st := stats.New(false)
	q := New(l, st, 1, 3)

	in := make(chan model.DownloadTask, 1)
	in <- model.DownloadTask{Track: task, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, context.Background(), q, in)

	snap := st.Snapshot()
	assert.Equal(t, int64(1), snap.Downloaded)
	assert.Equal(t, int64(0), snap.Failed)
	assert.Equal(t, 2, task.calls, "first attempt fails, second succeeds")

	failed, err := l.Failed(context.Background(), "fake", model.KindTrack, "t1")
	require.NoError(t, err)
	assert.False(t, failed, "a task that eventually succeeds must never be marked failed")
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ref := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}

	task := &fakeTask{ref: ref, resolve: func(int) (model.Media, error) {
		return nil, errors.New("always fails")
	}}

	st := stats.New(false)
	q := New(l, st, 1, 2)

	in := make(chan model.DownloadTask, 1)
	in <- model.DownloadTask{Track: task, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, context.Background(), q, in)

	snap := st.Snapshot()
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, 2, task.calls, "exactly maxRetries attempts, no more")

	failed, err := l.Failed(context.Background(), "fake", model.KindTrack, "t1")
	require.NoError(t, err)
	assert.True(t, failed)
}

func TestQueueMarksAlbumCompleteOnceAllChildrenSucceed(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	albumRef := model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"}

	ref1 := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}
	ref2 := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t2"}

	task1 := &fakeTask{ref: ref1, resolve: func(int) (model.Media, error) { return &fakeMedia{ref: ref1}, nil }}
	task2 := &fakeTask{ref: ref2, resolve: func(int) (model.Media, error) { return &fakeMedia{ref: ref2}, nil }}

	st := stats.New(false)
	q := New(l, st, 2, 3)

	in := make(chan model.DownloadTask, 2)
	in <- model.DownloadTask{Track: task1, AlbumRef: &albumRef, AlbumChildCount: 2, Type: model.TaskTypeTrack}
	in <- model.DownloadTask{Track: task2, AlbumRef: &albumRef, AlbumChildCount: 2, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, context.Background(), q, in)

	release, err := l.Release(context.Background(), "fake", model.KindAlbum, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, release.ChildCount)
}

func TestQueueWithholdsAlbumCompletionWhenASiblingFails(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	albumRef := model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"}

	ref1 := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}
	ref2 := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t2"}

	task1 := &fakeTask{ref: ref1, resolve: func(int) (model.Media, error) { return &fakeMedia{ref: ref1}, nil }}
	task2 := &fakeTask{ref: ref2, resolve: func(int) (model.Media, error) {
		return nil, errors.New("permanently broken")
	}}

	st := stats.New(false)
	// maxRetries=1 so the failing sibling gives up on its first attempt,
	// keeping this test fast.
	q := New(l, st, 2, 1)

	in := make(chan model.DownloadTask, 2)
	in <- model.DownloadTask{Track: task1, AlbumRef: &albumRef, AlbumChildCount: 2, Type: model.TaskTypeTrack}
	in <- model.DownloadTask{Track: task2, AlbumRef: &albumRef, AlbumChildCount: 2, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, context.Background(), q, in)

	_, err := l.Release(context.Background(), "fake", model.KindAlbum, "a1")
	assert.ErrorIs(t, err, ledger.ErrNoSuchRelease, "a permanently broken sibling must withhold the album's release row")

	snap := st.Snapshot()
	assert.Equal(t, int64(1), snap.Downloaded)
	assert.Equal(t, int64(1), snap.Failed)
}

func TestQueueMarksAlbumCompleteWhenSkippedSiblingWasAlreadyDownloaded(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	albumRef := model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"}

	ref1 := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}
	ref2 := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t2"}

	require.NoError(t, l.MarkDownloaded(context.Background(), "fake", "t2"))

	task1 := &fakeTask{ref: ref1, resolve: func(int) (model.Media, error) { return &fakeMedia{ref: ref1}, nil }}
	task2 := &fakeTask{ref: ref2, resolve: func(int) (model.Media, error) { return nil, nil }}

	st := stats.New(false)
	q := New(l, st, 2, 3)

	in := make(chan model.DownloadTask, 2)
	in <- model.DownloadTask{Track: task1, AlbumRef: &albumRef, AlbumChildCount: 2, Type: model.TaskTypeTrack}
	in <- model.DownloadTask{Track: task2, AlbumRef: &albumRef, AlbumChildCount: 2, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, context.Background(), q, in)

	release, err := l.Release(context.Background(), "fake", model.KindAlbum, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, release.ChildCount)
}

func TestQueueStopsQuicklyWhenContextCanceled(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ref := model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}
	task := &fakeTask{ref: ref, resolve: func(int) (model.Media, error) { return nil, nil }}

	q := New(l, nil, 2, 3)

	in := make(chan model.DownloadTask, 1)
	in <- model.DownloadTask{Track: task, Type: model.TaskTypeTrack}
	close(in)

	runQueue(t, ctx, q, in)
}
