package tidalflow

import (
	"fmt"

	"streamgrab/internal/metadata"
	"streamgrab/internal/model"
)

// Mapper implements metadata.AlbumMapper and metadata.TrackMapper
// against tidalflow's raw album/track resources.
type Mapper struct{}

var (
	_ metadata.AlbumMapper = Mapper{}
	_ metadata.TrackMapper = Mapper{}
)

func qualityFromAudioQuality(s string) model.Quality {
	switch s {
	case "HI_RES_LOSSLESS":
		return model.Quality3
	case "LOSSLESS":
		return model.Quality2
	case "HIGH":
		return model.Quality1
	default:
		return model.Quality0
	}
}

// MapAlbum converts a *albumResource into model.AlbumMetadata.
func (Mapper) MapAlbum(raw any) (*model.AlbumMetadata, error) {
	album, ok := raw.(*albumResource)
	if !ok {
		return nil, fmt.Errorf("tidalflow: expected *albumResource, got %T", raw)
	}

	quality := qualityFromAudioQuality(album.AudioQuali)

	container := quality.ExpectedContainer()
	if container == "" {
		container = model.ContainerMP4
	}

	return &model.AlbumMetadata{
		ID:             album.ID,
		Title:          album.Title,
		AlbumArtist:    album.ArtistName,
		Year:           album.ReleaseYear,
		Genres:         album.Genres,
		TrackTotal:     album.NumberTr,
		SourcePlatform: model.SourceTidalFlow,
		SourceAlbumID:  album.ID,
		Info: model.AlbumInfo{
			Quality:    quality,
			Container:  container,
			BitDepth:   quality.ExpectedBitDepth(),
			Streamable: album.Streamable,
		},
	}, nil
}

// AlbumID recovers the album id a raw trackResource belongs to.
func (Mapper) AlbumID(raw any) string {
	track, ok := raw.(*trackResource)
	if !ok {
		return ""
	}

	return track.AlbumID
}

// MapTrack converts a *trackResource into model.TrackMetadata.
func (Mapper) MapTrack(raw any, album *model.AlbumMetadata) (*model.TrackMetadata, error) {
	track, ok := raw.(*trackResource)
	if !ok {
		return nil, fmt.Errorf("tidalflow: expected *trackResource, got %T", raw)
	}

	return &model.TrackMetadata{
		Title:          track.Title,
		Album:          album,
		Artist:         track.ArtistName,
		Artists:        []string{track.ArtistName},
		TrackNumber:    track.TrackNum,
		SourcePlatform: model.SourceTidalFlow,
		SourceTrackID:  track.ID,
		SourceAlbumID:  track.AlbumID,
		Info: model.TrackInfo{
			Quality:    album.Info.Quality,
			Streamable: track.Streamable,
			BitDepth:   album.Info.BitDepth,
			Explicit:   track.Explicit,
			Container:  album.Info.Container,
		},
	}, nil
}
