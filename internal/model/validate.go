package model

import "errors"

// Sentinel errors returned by ValidateAlbum / ValidateTrack. Callers in
// internal/metadata treat these, except ErrNotStreamable (which is
// passed through as a not-streamable outcome), as "cannot interpret" failures: logged
// at error severity, no ledger failure written (spec distinguishes
// malformed payloads from confirmed not-streamable ones).
var (
	ErrQualityContainerMismatch = errors.New("model: quality tier requires a different container")
	ErrQualityBitDepthMismatch  = errors.New("model: quality tier requires a different bit depth")
	ErrNotStreamable            = errors.New("model: album is not streamable")
	ErrArtistsMismatch          = errors.New("model: artist must equal artists[0] when artists is non-empty")
	ErrQualityExceedsAlbum      = errors.New("model: track quality exceeds album's advertised maximum")
)

// ValidateAlbum checks the §3 invariants that relate AlbumInfo.Quality
// to its container and bit depth, and rejects non-streamable albums
// outright (the caller terminates the pipeline for this album).
func ValidateAlbum(m *AlbumMetadata) error {
	info := m.Info

	switch info.Quality {
	case Quality3:
		if info.Container != ContainerFLAC {
			return ErrQualityContainerMismatch
		}

		if info.BitDepth != 24 {
			return ErrQualityBitDepthMismatch
		}
	case Quality2:
		if info.Container != ContainerFLAC {
			return ErrQualityContainerMismatch
		}

		if info.BitDepth != 16 {
			return ErrQualityBitDepthMismatch
		}
	case Quality0, Quality1:
		if info.Container != ContainerMP3 && info.Container != ContainerMP4 {
			return ErrQualityContainerMismatch
		}
	}

	if !info.Streamable {
		return ErrNotStreamable
	}

	return nil
}

// ValidateTrack checks the §3 invariants scoped to a track: the primary
// artist/artists[0] agreement, and that the resolved quality never
// exceeds the album's advertised maximum.
func ValidateTrack(t *TrackMetadata) error {
	if len(t.Artists) > 0 && t.Artist != t.Artists[0] {
		return ErrArtistsMismatch
	}

	if t.Album != nil && t.Info.Quality > t.Album.Info.Quality {
		return ErrQualityExceedsAlbum
	}

	return nil
}
