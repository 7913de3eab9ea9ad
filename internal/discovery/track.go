package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"streamgrab/internal/config"
	"streamgrab/internal/constants"
	"streamgrab/internal/logger"
	"streamgrab/internal/metadata"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
	"streamgrab/internal/tag"
)

var (
	_ model.Pending = (*PendingTrack)(nil)
	_ model.Media   = (*trackMedia)(nil)
)

// PendingTrack is the only model.Pending implementation in the
// engine: every container kind a Streamer walks bottoms out in one of
// these per track. Album may be pre-supplied by the Streamer (the
// album's already been fetched, filtered, and enriched as part of
// walking its parent container); when it is nil, Resolve recovers and
// fetches the album itself, the standalone-track CLI/URL case.
type PendingTrack struct {
	deps  *Deps
	ref   model.Reference
	album *model.AlbumMetadata
}

// NewPendingTrack builds a PendingTrack for ref, optionally carrying an
// already-resolved album. Exported so a Streamer in this package and
// the standalone-track resolution path in internal/app construct it
// the same way.
func NewPendingTrack(deps *Deps, ref model.Reference, album *model.AlbumMetadata) *PendingTrack {
	return &PendingTrack{deps: deps, ref: ref, album: album}
}

// Reference returns the track's identity.
func (p *PendingTrack) Reference() model.Reference {
	return p.ref
}

// Resolve implements spec §4.2 steps 1-4: ledger idempotency checks,
// provider lookup, album recovery, track normalization, and quality
// resolution. A nil, nil result means there is nothing left to do for
// this track (already downloaded, already failed, not streamable, or
// filtered out by quality policy); any other error is returned to the
// caller, whose retry loop decides whether to try again.
func (p *PendingTrack) Resolve(ctx context.Context) (model.Media, error) {
	cfg := p.deps.Config
	source := p.ref.Source

	if !cfg.ReplaceTracks {
		done, err := p.deps.Ledger.Downloaded(ctx, source, p.ref.ID)
		if err != nil {
			return nil, fmt.Errorf("discovery: check downloaded: %w", err)
		}

		if done {
			logger.DebugKV(ctx, "discovery: track already downloaded, skipping", "ref", p.ref)

			return nil, nil
		}
	}

	failed, err := p.deps.Ledger.Failed(ctx, source, model.KindTrack, p.ref.ID)
	if err != nil {
		return nil, fmt.Errorf("discovery: check failed: %w", err)
	}

	if failed {
		logger.DebugKV(ctx, "discovery: track previously failed terminally, skipping", "ref", p.ref)

		return nil, nil
	}

	client, err := p.deps.Providers.Get(source)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	mappers := p.deps.mapperFor(source)

	album := p.album
	var rawTrack any

	if album == nil {
		album, rawTrack, err = p.resolveStandaloneAlbum(ctx, client, mappers)
		if err != nil {
			return p.terminal(ctx, source, err)
		}
	} else {
		err = p.deps.RateLimits.WithProviderLimiter(ctx, string(source), func() error {
			var fetchErr error
			rawTrack, fetchErr = client.GetMetadata(ctx, p.ref.ID, model.KindTrack)

			return fetchErr
		})
		if err != nil {
			return p.terminal(ctx, source, err)
		}
	}

	track, err := metadata.NormalizeTrack(mappers.Track, rawTrack, album)
	if err != nil {
		return p.terminal(ctx, source, err)
	}

	requested := model.Quality(cfg.ProviderQuality(config.Source(source)))

	quality, err := metadata.ResolveQuality(ctx, requested, track.Info.Quality, cfg.LowerQualityIfNotAvailable)
	if err != nil {
		return p.terminal(ctx, source, err)
	}

	track.Info.Quality = quality

	return &trackMedia{deps: p.deps, ref: p.ref, track: track, client: client, quality: quality}, nil
}

// resolveStandaloneAlbum recovers and builds the album a standalone
// track reference belongs to, since mappers.Track.MapTrack requires an
// already-built album. Enrichment runs here too, since this path never
// passes through a Streamer's per-album enrichment point.
func (p *PendingTrack) resolveStandaloneAlbum(
	ctx context.Context,
	client provider.Client,
	mappers MapperPair,
) (*model.AlbumMetadata, any, error) {
	source := string(p.ref.Source)

	var probeRaw any

	err := p.deps.RateLimits.WithProviderLimiter(ctx, source, func() error {
		var fetchErr error
		probeRaw, fetchErr = client.GetMetadata(ctx, p.ref.ID, model.KindTrack)

		return fetchErr
	})
	if err != nil {
		return nil, nil, err
	}

	albumID := mappers.Track.AlbumID(probeRaw)
	if albumID == "" {
		return nil, nil, fmt.Errorf("%w: provider returned no album id for track %s", metadata.ErrMalformedPayload, p.ref.ID)
	}

	var rawAlbum any

	err = p.deps.RateLimits.WithProviderLimiter(ctx, source, func() error {
		var fetchErr error
		rawAlbum, fetchErr = client.GetMetadata(ctx, albumID, model.KindAlbum)

		return fetchErr
	})
	if err != nil {
		return nil, nil, err
	}

	album, err := metadata.NormalizeAlbum(mappers.Album, rawAlbum)
	if err != nil {
		return nil, nil, err
	}

	enrichAlbum(ctx, p.deps, album)

	return album, probeRaw, nil
}

// terminal classifies an error from the fetch/normalize phase per spec
// §4.2 step 3: not-streamable is a confirmed terminal outcome (ledger
// records it), a malformed payload is logged and dropped with no
// ledger write, and anything else propagates so the caller (eventually
// internal/queue's retry loop) can decide whether to retry.
func (p *PendingTrack) terminal(ctx context.Context, source model.Source, cause error) (model.Media, error) {
	if errors.Is(cause, model.ErrNotStreamable) || errors.Is(cause, provider.ErrNotStreamable) {
		if err := p.deps.Ledger.MarkFailed(ctx, source, model.KindTrack, p.ref.ID, cause.Error()); err != nil {
			return nil, fmt.Errorf("discovery: mark failed: %w", err)
		}

		return nil, nil
	}

	if errors.Is(cause, metadata.ErrMalformedPayload) {
		logger.ErrorKV(ctx, "discovery: malformed provider payload, skipping track", "ref", p.ref, "error", cause)

		return nil, nil
	}

	if errors.Is(cause, metadata.ErrQualityUnavailable) {
		if err := p.deps.Ledger.MarkFailed(ctx, source, model.KindTrack, p.ref.ID, cause.Error()); err != nil {
			return nil, fmt.Errorf("discovery: mark failed: %w", err)
		}

		return nil, nil
	}

	return nil, fmt.Errorf("discovery: resolve track %s: %w", p.ref, cause)
}

// trackMedia implements model.Media for a single resolved track. Its
// three lifecycle hooks mirror spec §4.4/§4.6: Preprocess computes and
// creates the album directory, Download streams bytes to a .part file
// under the per-provider and global semaphores, and Postprocess tags,
// optionally validates, atomically publishes the file, and records the
// ledger entry.
type trackMedia struct {
	deps    *Deps
	ref     model.Reference
	track   *model.TrackMetadata
	client  provider.Client
	quality model.Quality

	dir       string
	baseName  string
	trackPath string
	partPath  string
}

// Reference returns the track's identity.
func (m *trackMedia) Reference() model.Reference {
	return m.ref
}

// Preprocess computes the album directory and track base filename and
// creates the directory, per spec §4.6's naming rules. Skipped under
// dry-run, which previews the pipeline without touching the
// filesystem.
func (m *trackMedia) Preprocess(ctx context.Context) error {
	cfg := m.deps.Config

	dir := cfg.OutputPath
	if cfg.SourceSubdirectories {
		dir = filepath.Join(dir, string(m.ref.Source))
	}

	dir = filepath.Join(dir, m.deps.Naming.AlbumFolderName(m.track.Album))

	if cfg.DiscSubdirectories && m.track.Album.DiscTotal > 1 {
		dir = filepath.Join(dir, fmt.Sprintf("Disc %d", m.track.DiscNumber))
	}

	m.dir = dir
	m.baseName = m.deps.Naming.TrackFilename(m.track)

	if cfg.DryRun {
		logger.InfoKV(ctx, "discovery: dry run, would create directory", "dir", dir)

		return nil
	}

	if err := os.MkdirAll(dir, constants.DefaultFolderPermissions); err != nil {
		return fmt.Errorf("discovery: create album directory %s: %w", dir, err)
	}

	return nil
}

// Download resolves a Downloadable at m.quality and streams it to a
// .part file, under both the per-provider rate limiter and the global
// download semaphore (spec §5 (1)-(3)).
func (m *trackMedia) Download(ctx context.Context, onProgress func(int64)) error {
	cfg := m.deps.Config

	if cfg.DryRun {
		logger.InfoKV(ctx, "discovery: dry run, would download track", "ref", m.ref, "quality", m.quality)

		return nil
	}

	if err := m.deps.RateLimits.Downloads.Acquire(ctx); err != nil {
		return fmt.Errorf("discovery: acquire download semaphore: %w", err)
	}
	defer m.deps.RateLimits.Downloads.Release()

	var downloadable model.Downloadable

	err := m.deps.RateLimits.WithProviderLimiter(ctx, string(m.ref.Source), func() error {
		var fetchErr error
		downloadable, fetchErr = m.client.GetDownloadable(ctx, m.ref.ID, m.quality, false)

		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("discovery: get downloadable: %w", err)
	}

	metadata.ReconcileContainer(&m.track.Info, downloadable)

	m.trackPath = filepath.Join(m.dir, m.baseName+downloadable.Extension())
	m.partPath = m.trackPath + ".part"

	progress := throttledProgress(ctx, cfg.ParsedDownloadSpeedLimit, onProgress)

	if err := downloadable.Download(ctx, m.partPath, progress); err != nil {
		return fmt.Errorf("discovery: download: %w", err)
	}

	return nil
}

// Postprocess tags the still-.part file, optionally validates it,
// atomically renames it into place, writes a lyrics companion file
// when requested, and records the ledger entry (spec §4.6, §4.8).
//
//nolint:cyclop // sequential post-download steps, each short; splitting would scatter state across more methods than it would save.
func (m *trackMedia) Postprocess(ctx context.Context) error {
	cfg := m.deps.Config

	if cfg.DryRun {
		logger.InfoKV(ctx, "discovery: dry run, would tag and publish track", "ref", m.ref)

		return nil
	}

	coverPath := m.fetchCoverArt(ctx)

	if err := tag.Write(ctx, &tag.Request{TrackPath: m.partPath, CoverPath: coverPath, Track: m.track}); err != nil {
		if markErr := m.deps.Ledger.MarkFailed(ctx, m.ref.Source, model.KindTrack, m.ref.ID, err.Error()); markErr != nil {
			return fmt.Errorf("discovery: mark failed after tagging error: %w", markErr)
		}

		return fmt.Errorf("discovery: tag: %w", err)
	}

	if m.deps.Validator != nil && cfg.ValidateAudio {
		result := m.deps.Validator.Validate(ctx, m.partPath)
		if !result.OK {
			if cfg.DeleteInvalidFiles {
				os.Remove(m.partPath) //nolint:errcheck // best-effort cleanup; the failure itself is already being reported
			}

			if cfg.RetryOnValidationFailure {
				return fmt.Errorf("discovery: %w", result.Err())
			}

			if err := m.deps.Ledger.MarkFailed(ctx, m.ref.Source, model.KindTrack, m.ref.ID, result.Reason); err != nil {
				return fmt.Errorf("discovery: mark failed after validation error: %w", err)
			}

			return fmt.Errorf("discovery: %w", result.Err())
		}
	}

	if err := os.Rename(m.partPath, m.trackPath); err != nil {
		return fmt.Errorf("discovery: publish %s: %w", m.trackPath, err)
	}

	if cfg.DownloadLyrics && m.track.Lyrics != "" {
		lyricsPath := trimExt(m.trackPath) + constants.ExtensionLyrics
		if err := os.WriteFile(lyricsPath, []byte(m.track.Lyrics), constants.DefaultFilePermissions); err != nil {
			logger.WarnKV(ctx, "discovery: failed to write lyrics file", "path", lyricsPath, "error", err)
		}
	}

	if err := m.deps.Ledger.MarkDownloaded(ctx, m.ref.Source, m.ref.ID); err != nil {
		return fmt.Errorf("discovery: mark downloaded: %w", err)
	}

	return nil
}

// fetchCoverArt downloads the album's best cover once per directory,
// reusing an already-fetched file across every track in the album. A
// failure here is non-fatal: tagging proceeds without embedded art.
func (m *trackMedia) fetchCoverArt(ctx context.Context) string {
	album := m.track.Album
	if len(album.Covers) == 0 {
		return ""
	}

	coverPath := filepath.Join(m.dir, "cover.jpg")

	if _, err := os.Stat(coverPath); err == nil {
		return coverPath
	}

	best := album.Covers[0]
	for _, c := range album.Covers[1:] {
		if c.Width > best.Width {
			best = c
		}
	}

	// Multiple workers can reach this point for the same album directory
	// concurrently (internal/queue has no per-album serialization), so
	// fetch to a unique temp name and rename into place rather than
	// writing cover.jpg directly; the rename is atomic, so whichever
	// worker finishes last wins instead of corrupting a shared file.
	tempPath := filepath.Join(m.dir, "cover_"+uuid.New().String()+".jpg")

	if err := fetchToFile(ctx, best.URL, tempPath); err != nil {
		logger.WarnKV(ctx, "discovery: cover art fetch failed", "album", album.Title, "error", err)

		return ""
	}

	if err := os.Rename(tempPath, coverPath); err != nil {
		logger.WarnKV(ctx, "discovery: cover art publish failed", "album", album.Title, "error", err)
		os.Remove(tempPath) //nolint:errcheck // best-effort cleanup of the orphaned temp file

		return ""
	}

	return coverPath
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}
