package metadata

import (
	"errors"
	"fmt"

	"streamgrab/internal/model"
)

// ErrMalformedPayload is returned by a Mapper when the provider payload
// cannot be interpreted at all -- distinct from ErrQualityUnavailable
// or a not-streamable result, per spec §4.2 step 3: "if it cannot,
// return null, log at error severity, do not write failure".
var ErrMalformedPayload = errors.New("metadata: malformed provider payload")

// AlbumMapper builds a model.AlbumMetadata from a provider's raw
// payload. Each provider package in internal/client implements this
// against its own wire types; this package only defines the contract
// and the shared validation every mapper's output must pass.
type AlbumMapper interface {
	MapAlbum(raw any) (*model.AlbumMetadata, error)
}

// TrackMapper builds a model.TrackMetadata from a provider's raw
// payload, given the already-mapped album it belongs to.
type TrackMapper interface {
	MapTrack(raw any, album *model.AlbumMetadata) (*model.TrackMetadata, error)

	// AlbumID recovers the provider's own album identifier from a raw
	// track payload, before that album has been fetched or mapped.
	// internal/discovery calls this first when resolving a standalone
	// track reference, so it knows which album to fetch before MapTrack
	// (which requires the album already built) can run.
	AlbumID(raw any) string
}

// NormalizeAlbum runs mapper and then validates the result against the
// §3 invariants, wrapping a validation failure as ErrMalformedPayload
// so callers treat it uniformly with a mapper-internal parse error.
func NormalizeAlbum(mapper AlbumMapper, raw any) (*model.AlbumMetadata, error) {
	album, err := mapper.MapAlbum(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if err := model.ValidateAlbum(album); err != nil {
		if errors.Is(err, model.ErrNotStreamable) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return album, nil
}

// NormalizeTrack runs mapper and then validates the result against the
// §3 invariants, same treatment as NormalizeAlbum.
func NormalizeTrack(mapper TrackMapper, raw any, album *model.AlbumMetadata) (*model.TrackMetadata, error) {
	track, err := mapper.MapTrack(raw, album)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if err := model.ValidateTrack(track); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return track, nil
}
