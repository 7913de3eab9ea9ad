package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/config"
	"streamgrab/internal/ledger"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
)

func drain(t *testing.T, ch <-chan model.DownloadTask) []model.DownloadTask {
	t.Helper()

	var tasks []model.DownloadTask

	for {
		select {
		case task, ok := <-ch:
			if !ok {
				return tasks
			}
			tasks = append(tasks, task)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for Stream to close its channel")
		}
	}
}

func TestStreamTrackEmitsSingleTask(t *testing.T) {
	t.Parallel()

	client := &fakeClient{source: "fake"}
	deps := testDeps(t, client, MapperPair{}, nil)
	s := NewStreamer(deps)

	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindTrack, ID: "t1"}))

	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].Track.Reference().ID)
	assert.Nil(t, tasks[0].AlbumRef)
}

func TestStreamAlbumExpandsIntoTracks(t *testing.T) {
	t.Parallel()

	album := testAlbum()
	client := &fakeClient{
		source:       "fake",
		metadataByID: map[string]any{"a1": "raw-album"},
		children:     []string{"t1", "t2", "t3"},
	}
	mappers := MapperPair{Album: fakeAlbumMapper{album: album}}
	deps := testDeps(t, client, mappers, nil)
	s := NewStreamer(deps)

	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"}))

	require.Len(t, tasks, 3)
	for i, id := range []string{"t1", "t2", "t3"} {
		assert.Equal(t, id, tasks[i].Track.Reference().ID)
		require.NotNil(t, tasks[i].AlbumRef)
		assert.Equal(t, "a1", tasks[i].AlbumRef.ID)
	}
}

func TestStreamAlbumNotStreamableEmitsNothing(t *testing.T) {
	t.Parallel()

	client := &fakeClient{source: "fake", metadataByID: map[string]any{"a1": "raw-album"}}
	mappers := MapperPair{Album: fakeAlbumMapper{err: model.ErrNotStreamable}}
	deps := testDeps(t, client, mappers, nil)
	s := NewStreamer(deps)

	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"}))
	assert.Empty(t, tasks)
}

func TestExpandAlbumTracksSkipsWhenReleaseAlreadyComplete(t *testing.T) {
	t.Parallel()

	album := testAlbum()
	client := &fakeClient{
		source:       "fake",
		metadataByID: map[string]any{"a1": "raw-album"},
		children:     []string{"t1", "t2"},
	}
	mappers := MapperPair{Album: fakeAlbumMapper{album: album}}
	deps := testDeps(t, client, mappers, nil)

	require.NoError(t, deps.Ledger.MarkReleaseComplete(context.Background(), "fake", model.KindAlbum, "a1", 2))

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"}))
	assert.Empty(t, tasks, "a release marked complete with the same child count must be skipped")
}

func TestExpandAlbumTracksReemitsWhenAlbumGrew(t *testing.T) {
	t.Parallel()

	album := testAlbum()
	client := &fakeClient{
		source:       "fake",
		metadataByID: map[string]any{"a1": "raw-album"},
		children:     []string{"t1", "t2", "t3"},
	}
	mappers := MapperPair{Album: fakeAlbumMapper{album: album}}
	deps := testDeps(t, client, mappers, nil)

	require.NoError(t, deps.Ledger.MarkReleaseComplete(context.Background(), "fake", model.KindAlbum, "a1", 2))

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"}))
	assert.Len(t, tasks, 3, "a grown album must re-walk all children, relying on per-track ledger checks")
}

func TestStreamArtistIncrementalAppliesPerAlbumFilter(t *testing.T) {
	t.Parallel()

	studio := testAlbum()
	studio.ID, studio.SourceAlbumID = "studio", "studio"
	studio.Title = "Studio Album"
	studio.MediaType = "album"

	live := testAlbum()
	live.ID, live.SourceAlbumID = "live", "live"
	live.Title = "Live at the Arena"
	live.MediaType = "album"

	client := &fakeClient{
		source: "fake",
		metadataByID: map[string]any{
			"studio": "raw-studio",
			"live":   "raw-live",
		},
		children: []string{"studio", "live"},
	}

	mapperByRaw := map[any]*model.AlbumMetadata{"raw-studio": studio, "raw-live": live}
	mappers := MapperPair{Album: dispatchingAlbumMapper{byRaw: mapperByRaw}}
	cfg := &config.Config{Filters: config.FilterConfig{Extras: true}}
	deps := testDeps(t, client, mappers, cfg)

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindArtist, ID: "artist1"}))

	var albumIDs []string
	for _, task := range tasks {
		albumIDs = append(albumIDs, task.AlbumRef.ID)
	}

	assert.Contains(t, albumIDs, "studio")
	assert.NotContains(t, albumIDs, "live", "extras filter should drop the live album")
}

func TestStreamArtistOrLabelKindUnsupportedEmitsNothing(t *testing.T) {
	t.Parallel()

	client := &fakeClient{source: "fake", childrenErr: provider.ErrKindUnsupported}
	deps := testDeps(t, client, MapperPair{}, nil)

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindLabel, ID: "l1"}))
	assert.Empty(t, tasks)
}

func TestStreamPlaylistEmitsStandaloneTracks(t *testing.T) {
	t.Parallel()

	client := &fakeClient{source: "fake", children: []string{"t1", "t2"}}
	deps := testDeps(t, client, MapperPair{}, nil)

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindPlaylist, ID: "p1"}))

	require.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Nil(t, task.AlbumRef, "playlist tracks carry no album reference")
	}
}

func TestStreamFavoritesDispatchesByItemKind(t *testing.T) {
	t.Parallel()

	album := testAlbum()
	client := &fakeClient{
		source: "fake",
		favorites: provider.FavoritesResponse{Items: []provider.FavoriteItem{
			{ID: "a1", Kind: model.KindAlbum},
			{ID: "t9", Kind: model.KindTrack},
		}},
		metadataByID: map[string]any{"a1": "raw-album"},
		children:     []string{"t1"},
	}
	mappers := MapperPair{Album: fakeAlbumMapper{album: album}}
	deps := testDeps(t, client, mappers, nil)

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindFavorites, FavoritesOf: "tracks", ID: "u1"}))

	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.Track.Reference().ID)
	}
	assert.Contains(t, ids, "t1", "the favorited album should expand into its track")
	assert.Contains(t, ids, "t9", "the favorited track should be emitted directly")
}

func TestStreamFavoriteTrackExpandsFullAlbumWhenConfigured(t *testing.T) {
	t.Parallel()

	album := testAlbum()
	client := &fakeClient{
		source: "fake",
		favorites: provider.FavoritesResponse{Items: []provider.FavoriteItem{
			{ID: "t9", Kind: model.KindTrack},
		}},
		metadataByID: map[string]any{
			"t9": "raw-liked-track",
			"a1": "raw-album",
		},
		children: []string{"t1", "t2"},
	}
	mappers := MapperPair{
		Album: fakeAlbumMapper{album: album},
		Track: fakeTrackMapper{albumID: "a1"},
	}
	cfg := &config.Config{DownloadFullAlbumForLikedTracks: true}
	deps := testDeps(t, client, mappers, cfg)

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindFavorites, FavoritesOf: "tracks", ID: "u1"}))

	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.Track.Reference().ID)
	}
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids, "liked track should expand into its whole album")
}

func TestStreamFavoritesDedupesSharedAlbumAcrossLikedTracks(t *testing.T) {
	t.Parallel()

	album := testAlbum()
	client := &fakeClient{
		source: "fake",
		favorites: provider.FavoritesResponse{Items: []provider.FavoriteItem{
			{ID: "t9", Kind: model.KindTrack},
			{ID: "t10", Kind: model.KindTrack},
		}},
		metadataByID: map[string]any{
			"t9":  "raw-liked-track-1",
			"t10": "raw-liked-track-2",
			"a1":  "raw-album",
		},
		children: []string{"t1", "t2"},
	}
	mappers := MapperPair{
		Album: fakeAlbumMapper{album: album},
		Track: fakeTrackMapper{albumID: "a1"},
	}
	cfg := &config.Config{DownloadFullAlbumForLikedTracks: true}
	deps := testDeps(t, client, mappers, cfg)

	s := NewStreamer(deps)
	tasks := drain(t, s.Stream(context.Background(), model.Reference{Source: "fake", Kind: model.KindFavorites, FavoritesOf: "tracks", ID: "u1"}))

	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.Track.Reference().ID)
	}
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids, "the shared album should expand exactly once even though both liked tracks belong to it")
}

func TestCheckContainerCompleteWritesOnlyWhenEveryAlbumIsReleased(t *testing.T) {
	t.Parallel()

	studio := testAlbum()
	studio.ID, studio.SourceAlbumID = "studio", "studio"

	live := testAlbum()
	live.ID, live.SourceAlbumID = "live", "live"

	client := &fakeClient{
		source: "fake",
		metadataByID: map[string]any{
			"studio": "raw-studio",
			"live":   "raw-live",
		},
		children: []string{"studio", "live"},
	}

	mapperByRaw := map[any]*model.AlbumMetadata{"raw-studio": studio, "raw-live": live}
	mappers := MapperPair{Album: dispatchingAlbumMapper{byRaw: mapperByRaw}}
	deps := testDeps(t, client, mappers, nil)

	ref := model.Reference{Source: "fake", Kind: model.KindArtist, ID: "artist1"}

	s := NewStreamer(deps)
	s.CheckContainerComplete(context.Background(), ref)

	_, err := deps.Ledger.Release(context.Background(), "fake", model.KindArtist, "artist1")
	assert.ErrorIs(t, err, ledger.ErrNoSuchRelease, "no album has a release row yet")

	require.NoError(t, deps.Ledger.MarkReleaseComplete(context.Background(), "fake", model.KindAlbum, "studio", 10))

	s.CheckContainerComplete(context.Background(), ref)
	_, err = deps.Ledger.Release(context.Background(), "fake", model.KindArtist, "artist1")
	assert.ErrorIs(t, err, ledger.ErrNoSuchRelease, "the live album still has no release row")

	require.NoError(t, deps.Ledger.MarkReleaseComplete(context.Background(), "fake", model.KindAlbum, "live", 8))

	s.CheckContainerComplete(context.Background(), ref)
	release, err := deps.Ledger.Release(context.Background(), "fake", model.KindArtist, "artist1")
	require.NoError(t, err)
	assert.Equal(t, 2, release.ChildCount)
}

func TestCheckContainerCompleteIgnoresFilteredOutAlbums(t *testing.T) {
	t.Parallel()

	studio := testAlbum()
	studio.ID, studio.SourceAlbumID = "studio", "studio"
	studio.Title = "Studio Album"
	studio.MediaType = "album"

	live := testAlbum()
	live.ID, live.SourceAlbumID = "live", "live"
	live.Title = "Live at the Arena"
	live.MediaType = "album"

	client := &fakeClient{
		source: "fake",
		metadataByID: map[string]any{
			"studio": "raw-studio",
			"live":   "raw-live",
		},
		children: []string{"studio", "live"},
	}

	mapperByRaw := map[any]*model.AlbumMetadata{"raw-studio": studio, "raw-live": live}
	mappers := MapperPair{Album: dispatchingAlbumMapper{byRaw: mapperByRaw}}
	cfg := &config.Config{Filters: config.FilterConfig{Extras: true}}
	deps := testDeps(t, client, mappers, cfg)

	ref := model.Reference{Source: "fake", Kind: model.KindArtist, ID: "artist1"}

	require.NoError(t, deps.Ledger.MarkReleaseComplete(context.Background(), "fake", model.KindAlbum, "studio", 10))

	s := NewStreamer(deps)
	s.CheckContainerComplete(context.Background(), ref)

	release, err := deps.Ledger.Release(context.Background(), "fake", model.KindArtist, "artist1")
	require.NoError(t, err)
	assert.Equal(t, 1, release.ChildCount, "only the surviving studio album should count toward completion")
}

func TestCheckContainerCompleteIgnoresNonArtistOrLabelRefs(t *testing.T) {
	t.Parallel()

	client := &fakeClient{source: "fake"}
	deps := testDeps(t, client, MapperPair{}, nil)

	s := NewStreamer(deps)
	assert.NotPanics(t, func() {
		s.CheckContainerComplete(context.Background(), model.Reference{Source: "fake", Kind: model.KindAlbum, ID: "a1"})
	})
}

// dispatchingAlbumMapper maps distinct raw payloads to distinct albums,
// needed where fakeAlbumMapper's single fixed return value can't tell
// two fetched albums apart.
type dispatchingAlbumMapper struct {
	byRaw map[any]*model.AlbumMetadata
}

func (d dispatchingAlbumMapper) MapAlbum(raw any) (*model.AlbumMetadata, error) {
	album, ok := d.byRaw[raw]
	if !ok {
		return nil, assertAlbumMapperErr
	}
	return album, nil
}

var assertAlbumMapperErr = errUnknownRawAlbum{}

type errUnknownRawAlbum struct{}

func (errUnknownRawAlbum) Error() string { return "discovery test: unknown raw album payload" }
