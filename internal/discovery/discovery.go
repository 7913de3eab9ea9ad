// Package discovery implements spec.md §4.2/§4.3: turning a resolved
// model.Reference into a stream of model.DownloadTask values ready for
// internal/queue, and the Pending/Media lifecycle each individual
// track goes through on its way to disk.
//
// Two shapes do the work. Streamer walks a container reference (album,
// artist, label, playlist, favorites) and never itself implements
// Pending -- it fetches, filters, and enriches container metadata, then
// emits one DownloadTask per leaf track. PendingTrack is the only
// Pending/Media pair in the package: every track, whether it arrived
// via a Streamer or as a standalone reference, resolves and rips
// through the same code path.
package discovery

import (
	"context"

	"streamgrab/internal/config"
	"streamgrab/internal/enrich"
	"streamgrab/internal/ledger"
	"streamgrab/internal/logger"
	"streamgrab/internal/metadata"
	"streamgrab/internal/model"
	"streamgrab/internal/naming"
	"streamgrab/internal/provider"
	"streamgrab/internal/ratelimit"
	"streamgrab/internal/validate"
)

// MapperPair bundles the two mapper interfaces a provider package
// implements on a single Mapper value (every adapter's Mapper type
// satisfies both).
type MapperPair struct {
	Album metadata.AlbumMapper
	Track metadata.TrackMapper
}

// Deps collects every collaborator PendingTrack, trackMedia, and
// Streamer need. Built once at startup and shared by every discovery
// value in a run; nothing in this package mutates it.
type Deps struct {
	Providers  *provider.Registry
	Mappers    map[model.Source]MapperPair
	Ledger     *ledger.Ledger
	RateLimits *ratelimit.Registry
	Naming     *naming.Manager
	Enrich     *enrich.Client
	Validator  *validate.Validator
	Config     *config.Config
}

// mapperFor looks up the mapper pair registered for source. Callers
// treat a missing entry as a wiring bug (every enabled provider must
// register its mapper during startup), not a runtime condition.
func (d *Deps) mapperFor(source model.Source) MapperPair {
	return d.Mappers[source]
}

// enrichAlbum runs the enrichment lookup for album and applies its
// result in place, exactly once, before any track tied to it is
// enqueued. A nil Enrich client or a disabled EnrichmentConfig makes
// this a no-op, matching spec §4.5's "enrichment is entirely optional"
// framing.
func enrichAlbum(ctx context.Context, deps *Deps, album *model.AlbumMetadata) {
	if deps.Enrich == nil || !deps.Config.Enrichment.Enabled {
		return
	}

	if err := deps.RateLimits.Enrichment.Acquire(ctx); err != nil {
		return
	}
	defer deps.RateLimits.Enrichment.Release()

	lookup, err := deps.Enrich.Lookup(ctx, album.AlbumArtist, album.Title, album.Year, album.ReleaseType)
	if err != nil {
		logger.WarnKV(ctx, "discovery: enrichment lookup failed", "album", album.Title, "error", err)

		return
	}

	enrich.Enrich(ctx, album, lookup, deps.Config.GenreMode)
}
