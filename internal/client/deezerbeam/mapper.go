package deezerbeam

import (
	"fmt"

	"streamgrab/internal/metadata"
	"streamgrab/internal/model"
)

// Mapper implements metadata.AlbumMapper and metadata.TrackMapper
// against deezerbeam's raw track/album payloads. This provider only
// advertises one delivery tier (320kbps MP3), so every mapped record
// is Quality1/ContainerMP3 regardless of the caller's requested tier;
// internal/metadata.ResolveQuality handles the downgrade.
type Mapper struct{}

var (
	_ metadata.AlbumMapper = Mapper{}
	_ metadata.TrackMapper = Mapper{}
)

// MapAlbum converts a *albumPayload into model.AlbumMetadata.
func (Mapper) MapAlbum(raw any) (*model.AlbumMetadata, error) {
	album, ok := raw.(*albumPayload)
	if !ok {
		return nil, fmt.Errorf("deezerbeam: expected *albumPayload, got %T", raw)
	}

	return &model.AlbumMetadata{
		ID:             album.ID,
		Title:          album.Title,
		AlbumArtist:    album.ArtistName,
		Year:           album.Year,
		Genres:         album.Genres,
		TrackTotal:     album.NbTracks,
		Label:          album.Label,
		SourcePlatform: model.SourceDeezerBeam,
		SourceAlbumID:  album.ID,
		Info: model.AlbumInfo{
			Quality:    model.Quality1,
			Container:  model.ContainerMP3,
			Streamable: album.Readable,
		},
	}, nil
}

// AlbumID recovers the album id a raw trackPayload belongs to.
func (Mapper) AlbumID(raw any) string {
	track, ok := raw.(*trackPayload)
	if !ok {
		return ""
	}

	return track.AlbumID
}

// MapTrack converts a *trackPayload into model.TrackMetadata.
func (Mapper) MapTrack(raw any, album *model.AlbumMetadata) (*model.TrackMetadata, error) {
	track, ok := raw.(*trackPayload)
	if !ok {
		return nil, fmt.Errorf("deezerbeam: expected *trackPayload, got %T", raw)
	}

	return &model.TrackMetadata{
		Title:          track.Title,
		Album:          album,
		Artist:         track.ArtistName,
		Artists:        []string{track.ArtistName},
		TrackNumber:    track.TrackPos,
		SourcePlatform: model.SourceDeezerBeam,
		SourceTrackID:  track.ID,
		SourceAlbumID:  track.AlbumID,
		Info: model.TrackInfo{
			Quality:    model.Quality1,
			Streamable: track.Readable,
			Explicit:   track.Explicit,
			Container:  model.ContainerMP3,
		},
	}, nil
}
