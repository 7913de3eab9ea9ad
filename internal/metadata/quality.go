// Package metadata implements the provider-agnostic half of spec.md
// §4.2/§4.5: quality resolution (step 4) and the pure AlbumMetadata/
// TrackMetadata validation every provider-specific mapper in
// internal/client/* must satisfy before its output is accepted.
package metadata

import (
	"context"
	"errors"

	"streamgrab/internal/logger"
	"streamgrab/internal/model"
)

// ErrQualityUnavailable is returned when the requested quality exceeds
// what the track advertises and the fallback policy forbids settling
// for less (spec §4.2 step 4, the "record failure" branch).
var ErrQualityUnavailable = errors.New("metadata: requested quality unavailable and fallback disabled")

// ResolveQuality implements spec §4.2 step 4's three-way rule: if the
// advertised maximum covers the request, use it; else fall back with a
// warning if allowed; else fail.
func ResolveQuality(ctx context.Context, requested, advertisedMax model.Quality, allowLower bool) (model.Quality, error) {
	if advertisedMax >= requested {
		return requested, nil
	}

	if allowLower {
		logger.WarnKV(ctx, "metadata: falling back to lower quality",
			"requested", requested, "available", advertisedMax)

		return advertisedMax, nil
	}

	return 0, ErrQualityUnavailable
}

// ReconcileContainer sets TrackInfo.Container to the Downloadable's
// actual file extension once the byte transfer begins, since container
// reality may differ from what the advertised quality tier implied
// (spec §4.2 step 4, final sentence).
func ReconcileContainer(info *model.TrackInfo, downloadable model.Downloadable) {
	switch downloadable.Extension() {
	case ".flac":
		info.Container = model.ContainerFLAC
	case ".m4a", ".mp4":
		info.Container = model.ContainerMP4
	case ".mp3":
		info.Container = model.ContainerMP3
	}
}
