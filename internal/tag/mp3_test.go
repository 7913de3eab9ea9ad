package tag

import (
	"testing"

	"github.com/oshokin/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/model"
)

func txxxValue(t *testing.T, f *id3v2.Tag, name string) string {
	t.Helper()

	frames := f.GetFrames("TXXX:" + name)
	require.NotEmpty(t, frames, "expected a TXXX:%s frame", name)

	frame, ok := frames[0].(id3v2.TextFrame)
	require.True(t, ok)

	return frame.Text
}

func sampleMP3Track() *model.TrackMetadata {
	track := sampleTrack()
	track.SourcePlatform = model.SourceQobuzStream
	track.SourceTrackID = "track-1"
	track.SourceAlbumID = "album-1"
	track.SourceArtistID = "artist-1"

	return track
}

func TestAddMP3TagsSetsCoreFrames(t *testing.T) {
	t.Parallel()

	f := id3v2.NewEmptyTag()
	f.SetDefaultEncoding(id3v2.EncodingUTF8)

	addMP3Tags(f, &Request{Track: sampleMP3Track()})

	assert.Equal(t, "Roygbiv", f.Title())
	assert.Equal(t, "Music Has the Right to Children", f.Album())
	assert.Equal(t, "Boards of Canada", f.Artist())
	assert.Equal(t, "IDM, Ambient", f.Genre())
}

func TestAddMP3TagsSourceIDsUseUppercasedPlatformPrefix(t *testing.T) {
	t.Parallel()

	f := id3v2.NewEmptyTag()
	f.SetDefaultEncoding(id3v2.EncodingUTF8)

	addMP3Tags(f, &Request{Track: sampleMP3Track()})

	assert.Equal(t, "track-1", txxxValue(t, f, "QOBUZSTREAM_TRACK_ID"))
	assert.Equal(t, "album-1", txxxValue(t, f, "QOBUZSTREAM_ALBUM_ID"))
	assert.Equal(t, "artist-1", txxxValue(t, f, "QOBUZSTREAM_ARTIST_ID"))
}

func TestAddMP3TagsOmitsEmptyArtistID(t *testing.T) {
	t.Parallel()

	track := sampleMP3Track()
	track.SourceArtistID = ""

	f := id3v2.NewEmptyTag()
	f.SetDefaultEncoding(id3v2.EncodingUTF8)

	addMP3Tags(f, &Request{Track: track})

	assert.Empty(t, f.GetFrames("TXXX:QOBUZSTREAM_ARTIST_ID"))
}

func TestAddTXXXSkipsEmptyValue(t *testing.T) {
	t.Parallel()

	f := id3v2.NewEmptyTag()
	f.SetDefaultEncoding(id3v2.EncodingUTF8)

	addTXXX(f, "EMPTY", "")
	assert.Empty(t, f.GetFrames("TXXX:EMPTY"))

	addTXXX(f, "PRESENT", "value")
	assert.Equal(t, "value", txxxValue(t, f, "PRESENT"))
}
