// Package soundcloudwave implements the provider.Client contract (and
// resolver.ShortLinkResolver) against a provider with no public REST
// API, only a web player: every call drives a headless, stealth-
// patched Chrome instance and scrapes the rendered page, grounded on
// the teacher's auth/service.go browser-automation session.
package soundcloudwave

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"streamgrab/internal/client/httpstream"
	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
	"streamgrab/internal/resolver"
)

const (
	homeURL          = "https://soundcloudwave.example/"
	loginURL         = "https://id.soundcloudwave.example/login?returnUrl=https://soundcloudwave.example/"
	avatarSelector   = `[class^="Header_triggerWrapper"]`
	loginPollTimeout = 10 * time.Minute
	loginPollEvery   = 1 * time.Second
	pageLoadDelay    = 2 * time.Second
)

// Client implements provider.Client and resolver.ShortLinkResolver
// against soundcloudwave's web player via a shared browser session.
type Client struct {
	cfg     *config.ProviderConfig
	browser *rod.Browser
	page    *rod.Page
}

// New builds a Client; the browser itself is launched lazily on the
// first Login call so a headless-browser binary is never required
// unless this provider is actually used.
func New(cfg *config.ProviderConfig) (*Client, error) {
	return &Client{cfg: cfg}, nil
}

// Source identifies this adapter.
func (c *Client) Source() model.Source { return model.SourceSoundcloudWave }

// Login launches a stealth-patched headless browser (once; later calls
// reuse it), opens a new stealth page, sets the session cookie from the
// configured credential, navigates to the home page, and checks that
// the logged-in avatar appears. Every call repeats the page, cookie,
// navigation and avatar check, so a second call succeeds again but is
// not a no-op.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.Credential == "" {
		return fmt.Errorf("soundcloudwave: %w", provider.ErrMissingCredentials)
	}

	if c.browser == nil {
		// Unlike the teacher's manual-login flow (a visible browser the
		// human authenticates in), this session restores a persisted
		// cookie non-interactively, so it runs headless.
		launcherURL := launcher.New().Headless(true).MustLaunch()
		c.browser = rod.New().Context(ctx).ControlURL(launcherURL).MustConnect()
	}

	page, err := stealth.Page(c.browser)
	if err != nil {
		return fmt.Errorf("soundcloudwave: %w: stealth page: %w", provider.ErrAuth, err)
	}

	if err := page.SetCookies([]*proto.NetworkCookieParam{{Name: "session", Value: c.cfg.Credential}}); err != nil {
		return fmt.Errorf("soundcloudwave: %w: set session cookie: %w", provider.ErrAuth, err)
	}

	if err := page.Navigate(homeURL); err != nil {
		return fmt.Errorf("soundcloudwave: %w: navigate: %w", provider.ErrAuth, err)
	}

	page.Timeout(loginPollTimeout).MustWaitStable()
	time.Sleep(pageLoadDelay)

	if _, err := page.Timeout(loginPollEvery).Element(avatarSelector); err != nil {
		return fmt.Errorf("soundcloudwave: %w: session cookie did not establish a logged-in session", provider.ErrAuth)
	}

	c.page = page

	return nil
}

// renderedTrack is what the track-page scrape produces: the player
// embeds a JSON blob in a script tag rather than exposing a REST
// endpoint.
type renderedTrack struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	AlbumID    string `json:"albumId"`
	Position   int    `json:"position"`
	StreamURL  string `json:"streamUrl"`
	Streamable bool   `json:"streamable"`
}

// GetMetadata navigates to the track or album page and scrapes the
// embedded player state.
func (c *Client) GetMetadata(ctx context.Context, id string, kind model.Kind) (any, error) {
	if c.page == nil {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	route := fmt.Sprintf("%s%s/%s", homeURL, kind.String(), id)
	if err := c.page.Context(ctx).Navigate(route); err != nil {
		return nil, fmt.Errorf("soundcloudwave: %w: %w", provider.ErrTransport, err)
	}

	c.page.MustWaitStable()

	raw, err := c.page.Eval(`() => document.querySelector('script#player-state').textContent`)
	if err != nil {
		return nil, fmt.Errorf("soundcloudwave: %w: scrape player state: %w", provider.ErrTransport, err)
	}

	var track renderedTrack
	if err := json.Unmarshal([]byte(raw.Value.Str()), &track); err != nil {
		return nil, fmt.Errorf("soundcloudwave: decode player state: %w", err)
	}

	if !track.Streamable {
		return nil, provider.ErrNotStreamable
	}

	return &track, nil
}

type downloadable struct {
	url  string
	size int64
}

func (d *downloadable) Size() int64          { return d.size }
func (d *downloadable) Extension() string    { return ".m4a" }
func (d *downloadable) Source() model.Source { return model.SourceSoundcloudWave }

func (d *downloadable) Download(ctx context.Context, path string, onProgress func(int64)) error {
	// The scraped stream URL is pre-signed and fetchable with a plain
	// HTTP client; no browser session is needed for the byte transfer
	// itself.
	return httpstream.ToFile(ctx, httpstream.DefaultClient(), d.url, path, onProgress)
}

// GetDownloadable re-scrapes the track page for its stream URL. This
// provider has no region-mirror fallback id, so a geo-restricted
// result on retry still fails.
func (c *Client) GetDownloadable(
	ctx context.Context,
	id string,
	quality model.Quality,
	isRetry bool,
) (model.Downloadable, error) {
	raw, err := c.GetMetadata(ctx, id, model.KindTrack)
	if err != nil {
		if isRetry {
			return nil, fmt.Errorf("soundcloudwave: %w", provider.ErrNotStreamable)
		}

		logger.WarnKV(ctx, "soundcloudwave: metadata scrape failed, retrying once", "id", id)

		return c.GetDownloadable(ctx, id, quality, true)
	}

	track := raw.(*renderedTrack)
	if track.StreamURL == "" {
		return nil, fmt.Errorf("soundcloudwave: %w", provider.ErrNotStreamable)
	}

	return &downloadable{url: track.StreamURL}, nil
}

// Search drives the in-page search box and scrapes the result list,
// since this provider has no query API.
func (c *Client) Search(ctx context.Context, kind model.Kind, query string, limit int) ([]provider.Page, error) {
	if c.page == nil {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	searchURL := fmt.Sprintf("%ssearch?q=%s&type=%s", homeURL, query, kind.String())
	if err := c.page.Context(ctx).Navigate(searchURL); err != nil {
		return nil, fmt.Errorf("soundcloudwave: %w: %w", provider.ErrTransport, err)
	}

	c.page.MustWaitStable()

	raw, err := c.page.Eval(`() => document.querySelector('script#search-results').textContent`)
	if err != nil {
		return nil, fmt.Errorf("soundcloudwave: %w: scrape search results: %w", provider.ErrTransport, err)
	}

	var results struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw.Value.Str()), &results); err != nil {
		return nil, fmt.Errorf("soundcloudwave: decode search results: %w", err)
	}

	items := make([]any, 0, len(results.Items))
	for i, item := range results.Items {
		if i >= limit {
			break
		}

		items = append(items, item)
	}

	return []provider.Page{{Items: items}}, nil
}

// GetUserFavorites navigates to the profile favorites page the
// resolver's favorites-path regex already points at and scrapes it.
func (c *Client) GetUserFavorites(ctx context.Context, kind model.Kind, userID string) (provider.FavoritesResponse, error) {
	if c.page == nil {
		if err := c.Login(ctx); err != nil {
			return provider.FavoritesResponse{}, err
		}
	}

	route := fmt.Sprintf("%sprofile/%s/%s", homeURL, userID, kind.String())
	if err := c.page.Context(ctx).Navigate(route); err != nil {
		return provider.FavoritesResponse{}, fmt.Errorf("soundcloudwave: %w: %w", provider.ErrTransport, err)
	}

	c.page.MustWaitStable()

	raw, err := c.page.Eval(`() => document.querySelector('script#favorites-state').textContent`)
	if err != nil {
		return provider.FavoritesResponse{}, fmt.Errorf("soundcloudwave: %w: scrape favorites: %w", provider.ErrTransport, err)
	}

	var payload struct {
		Items []struct {
			ID int64 `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw.Value.Str()), &payload); err != nil {
		return provider.FavoritesResponse{}, fmt.Errorf("soundcloudwave: decode favorites: %w", err)
	}

	items := make([]provider.FavoriteItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, provider.FavoriteItem{ID: strconv.FormatInt(item.ID, 10), Kind: kind})
	}

	return provider.FavoritesResponse{Items: items}, nil
}

// GetContainerChildren scrapes an album (set) or artist page for its
// embedded child-track-ID list, since this provider has no JSON API to
// call directly. This provider has no label catalog and no separate
// playlist concept distinct from an album/set.
func (c *Client) GetContainerChildren(ctx context.Context, id string, parentKind model.Kind) ([]string, error) {
	if parentKind != model.KindAlbum && parentKind != model.KindArtist && parentKind != model.KindPlaylist {
		return nil, fmt.Errorf("soundcloudwave: %w: %s", provider.ErrKindUnsupported, parentKind)
	}

	if c.page == nil {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	route := fmt.Sprintf("%s%s/%s", homeURL, parentKind.String(), id)
	if err := c.page.Context(ctx).Navigate(route); err != nil {
		return nil, fmt.Errorf("soundcloudwave: %w: %w", provider.ErrTransport, err)
	}

	c.page.MustWaitStable()

	raw, err := c.page.Eval(`() => document.querySelector('script#tracklist-state').textContent`)
	if err != nil {
		return nil, fmt.Errorf("soundcloudwave: %w: scrape tracklist: %w", provider.ErrTransport, err)
	}

	var payload struct {
		TrackIDs []string `json:"trackIds"`
	}
	if err := json.Unmarshal([]byte(raw.Value.Str()), &payload); err != nil {
		return nil, fmt.Errorf("soundcloudwave: decode tracklist: %w", err)
	}

	return payload.TrackIDs, nil
}

// ResolveShortLink follows a mobile short link's redirect chain by
// letting the browser navigate it, then reads back the canonical URL
// the player's router settled on. Satisfies resolver.ShortLinkResolver.
func (c *Client) ResolveShortLink(ctx context.Context, shortURL string) (model.Reference, error) {
	if c.page == nil {
		if err := c.Login(ctx); err != nil {
			return model.Reference{}, err
		}
	}

	if err := c.page.Context(ctx).Navigate(shortURL); err != nil {
		return model.Reference{}, fmt.Errorf("soundcloudwave: %w: follow short link: %w", provider.ErrTransport, err)
	}

	c.page.MustWaitStable()

	info := c.page.MustInfo()

	return resolver.ResolveCanonical(info.URL)
}

// Close releases the browser process. Callers should invoke this once
// per process shutdown, not per request: the session is reused across
// calls to avoid re-authenticating on every lookup.
func (c *Client) Close() error {
	if c.browser == nil {
		return nil
	}

	return c.browser.Close()
}
