package deezerbeam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/model"
)

func TestMapAlbumAlwaysQuality1MP3(t *testing.T) {
	t.Parallel()

	m := Mapper{}
	album, err := m.MapAlbum(&albumPayload{ID: "a1", Readable: true, NbTracks: 5})

	require.NoError(t, err)
	assert.Equal(t, model.Quality1, album.Info.Quality)
	assert.Equal(t, model.ContainerMP3, album.Info.Container)
	assert.Equal(t, 5, album.TrackTotal)
}

func TestMapTrackWrongType(t *testing.T) {
	t.Parallel()

	m := Mapper{}
	_, err := m.MapTrack("nope", &model.AlbumMetadata{})
	assert.Error(t, err)
}

func TestAlbumIDRecoversAlbumID(t *testing.T) {
	t.Parallel()

	m := Mapper{}
	assert.Equal(t, "a1", m.AlbumID(&trackPayload{AlbumID: "a1"}))
	assert.Equal(t, "", m.AlbumID("nope"))
}
