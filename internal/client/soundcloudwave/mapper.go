package soundcloudwave

import (
	"fmt"

	"streamgrab/internal/metadata"
	"streamgrab/internal/model"
)

// Mapper implements metadata.AlbumMapper and metadata.TrackMapper for the
// scraped renderedTrack shape. This provider exposes no dedicated album
// payload: a "set" is just a track whose AlbumID names the set itself, so
// MapAlbum is driven from the same renderedTrack the track page scrapes.
type Mapper struct{}

var (
	_ metadata.AlbumMapper = Mapper{}
	_ metadata.TrackMapper = Mapper{}
)

// streamQuality is this provider's single fixed web-player delivery
// tier: 128kbps AAC in an MP4 container. There is no per-release
// quality negotiation to scrape.
const streamQuality = model.Quality0

// MapAlbum builds album-level metadata from a set's lead track.
func (Mapper) MapAlbum(raw any) (*model.AlbumMetadata, error) {
	track, ok := raw.(*renderedTrack)
	if !ok {
		return nil, fmt.Errorf("soundcloudwave: expected *renderedTrack, got %T", raw)
	}

	return &model.AlbumMetadata{
		ID:             track.AlbumID,
		Title:          track.Title,
		AlbumArtist:    track.ArtistName,
		TrackTotal:     1,
		SourcePlatform: model.SourceSoundcloudWave,
		SourceAlbumID:  track.AlbumID,
		Info: model.AlbumInfo{
			Quality:    streamQuality,
			Container:  model.ContainerMP4,
			Streamable: track.Streamable,
		},
	}, nil
}

// AlbumID recovers the set id a raw renderedTrack belongs to.
func (Mapper) AlbumID(raw any) string {
	track, ok := raw.(*renderedTrack)
	if !ok {
		return ""
	}

	return track.AlbumID
}

// MapTrack converts a *renderedTrack into model.TrackMetadata, inheriting
// quality and container from the parent album since this provider has
// nothing finer-grained than its one web-player tier.
func (Mapper) MapTrack(raw any, album *model.AlbumMetadata) (*model.TrackMetadata, error) {
	track, ok := raw.(*renderedTrack)
	if !ok {
		return nil, fmt.Errorf("soundcloudwave: expected *renderedTrack, got %T", raw)
	}

	return &model.TrackMetadata{
		Title:          track.Title,
		Album:          album,
		Artist:         track.ArtistName,
		Artists:        []string{track.ArtistName},
		TrackNumber:    track.Position,
		SourcePlatform: model.SourceSoundcloudWave,
		SourceTrackID:  track.ID,
		SourceAlbumID:  track.AlbumID,
		Info: model.TrackInfo{
			Quality:    album.Info.Quality,
			Streamable: track.Streamable,
			Container:  album.Info.Container,
		},
	}, nil
}
