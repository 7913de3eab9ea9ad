// Package enrich implements the cultural-metadata decorator from
// spec.md §4.5: a lookup(artist, album, year?, type) call against an
// external service ("crate" here, standing in for the RYM-style
// catalog original_source/streamrip scrapes) that can contribute
// genres and free-text descriptors to an already-normalized
// model.AlbumMetadata.
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 1 * time.Second // crate asks clients to stay under 1req/s
	defaultBurst     = 2
)

// Lookup is the result of a crate query: zero or more genres and
// free-text descriptors, and an optional canonical URL for the release.
type Lookup struct {
	Genres      []string
	Descriptors []string
	URL         string
}

// Client queries the crate service, rate-limited the same way
// internal/ratelimit limits provider calls (spec §5 applies only to
// provider API calls; the enrichment semaphore, not this limiter,
// bounds concurrency — this is a courtesy limit to the crate service
// itself, analogous to dab-downloader's MusicBrainz client).
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	cache      *lru.Cache[string, *Lookup]
}

// NewClient builds a crate Client from EnrichmentConfig. A cache size
// below 1 still yields a one-entry cache; caching cannot be disabled.
func NewClient(cfg config.EnrichmentConfig) (*Client, error) {
	cache, err := lru.New[string, *Lookup](max(cfg.CacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("enrich: build cache: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    cfg.BaseURL,
		limiter:    rate.NewLimiter(rate.Every(defaultRateLimit), defaultBurst),
		cache:      cache,
	}, nil
}

// Lookup queries crate for artist/album/year/releaseType, returning nil
// (no error) when the service has no match — a miss is not a failure.
func (c *Client) Lookup(ctx context.Context, artist, album string, year int, releaseType string) (*Lookup, error) {
	key := fmt.Sprintf("%s|%s|%d|%s", artist, album, year, releaseType)

	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("enrich: rate limit wait: %w", err)
	}

	result, err := c.fetch(ctx, artist, album, year, releaseType)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, result)

	return result, nil
}

// fetch performs the actual HTTP round trip. Left small and separate
// from Lookup so the caching/rate-limiting wrapper is easy to reason
// about independently of wire format.
func (c *Client) fetch(ctx context.Context, artist, album string, year int, releaseType string) (*Lookup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/lookup", nil)
	if err != nil {
		return nil, fmt.Errorf("enrich: build request: %w", err)
	}

	q := req.URL.Query()
	q.Set("artist", artist)
	q.Set("album", album)

	if year > 0 {
		q.Set("year", fmt.Sprintf("%d", year))
	}

	if releaseType != "" {
		q.Set("type", releaseType)
	}

	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrich: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil //nolint:nilnil // a miss is a valid, non-error outcome
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrich: unexpected status %d", resp.StatusCode)
	}

	return decodeLookup(resp.Body)
}

// Enrich applies a Lookup result to album in place, per spec §4.5's
// genre policy and unconditional descriptor merge. Called exactly once
// per album, before any of its tracks are enqueued.
func Enrich(ctx context.Context, album *model.AlbumMetadata, result *Lookup, genreMode config.GenreMode) {
	if result == nil {
		return
	}

	if len(result.Genres) > 0 {
		switch genreMode {
		case config.GenreModeReplace:
			album.Genres = result.Genres
		case config.GenreModeAppend:
			album.Genres = dedupeAppend(album.Genres, result.Genres)
		}
	}

	if len(result.Descriptors) > 0 {
		album.RYMDescriptors = result.Descriptors
	}

	logger.DebugKV(ctx, "enrich: applied lookup", "album", album.Title, "genres", album.Genres)
}

func dedupeAppend(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))

	for _, g := range append(append([]string{}, base...), extra...) {
		if _, ok := seen[g]; ok {
			continue
		}

		seen[g] = struct{}{}

		out = append(out, g)
	}

	return out
}
