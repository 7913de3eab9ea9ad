package qobuzstream

import (
	"fmt"

	"streamgrab/internal/metadata"
	"streamgrab/internal/model"
)

// Mapper implements metadata.AlbumMapper and metadata.TrackMapper
// against qobuzstream's raw release/track payloads.
type Mapper struct{}

var (
	_ metadata.AlbumMapper = Mapper{}
	_ metadata.TrackMapper = Mapper{}
)

// MapAlbum converts a *releasePayload into model.AlbumMetadata.
func (Mapper) MapAlbum(raw any) (*model.AlbumMetadata, error) {
	release, ok := raw.(*releasePayload)
	if !ok {
		return nil, fmt.Errorf("qobuzstream: expected *releasePayload, got %T", raw)
	}

	quality, _ := model.ParseQuality(fmt.Sprintf("%d", release.HighestQuali))

	container := quality.ExpectedContainer()
	if container == "" {
		// Lossy tiers permit either MP3 or MP4; qobuzstream's lossy
		// delivery format is MP3.
		container = model.ContainerMP3
	}

	return &model.AlbumMetadata{
		ID:             release.ID,
		Title:          release.Title,
		AlbumArtist:    release.ArtistName,
		Year:           release.Year,
		Genres:         release.Genres,
		TrackTotal:     len(release.TrackIDs),
		Label:          release.Label,
		SourcePlatform: model.SourceQobuzStream,
		SourceAlbumID:  release.ID,
		Info: model.AlbumInfo{
			Quality:    quality,
			Container:  container,
			BitDepth:   quality.ExpectedBitDepth(),
			Streamable: release.Streamable,
		},
	}, nil
}

// AlbumID recovers the release id a raw trackPayload belongs to.
func (Mapper) AlbumID(raw any) string {
	track, ok := raw.(*trackPayload)
	if !ok {
		return ""
	}

	return track.ReleaseID
}

// MapTrack converts a *trackPayload into model.TrackMetadata.
func (Mapper) MapTrack(raw any, album *model.AlbumMetadata) (*model.TrackMetadata, error) {
	track, ok := raw.(*trackPayload)
	if !ok {
		return nil, fmt.Errorf("qobuzstream: expected *trackPayload, got %T", raw)
	}

	return &model.TrackMetadata{
		Title:          track.Title,
		Album:          album,
		Artist:         track.ArtistName,
		Artists:        []string{track.ArtistName},
		TrackNumber:    track.Position,
		SourcePlatform: model.SourceQobuzStream,
		SourceTrackID:  track.ID,
		SourceAlbumID:  track.ReleaseID,
		Info: model.TrackInfo{
			Quality:    album.Info.Quality,
			Streamable: track.Availabiliy,
			BitDepth:   album.Info.BitDepth,
			Explicit:   track.Explicit,
			Container:  album.Info.Container,
		},
	}, nil
}
