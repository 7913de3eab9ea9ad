// Package tidalflow implements the provider.Client contract against an
// OAuth2 client-credentials-protected REST API, grounded on
// PrathxmOp-dab-downloader's spotify.go: a clientcredentials.Config
// exchanged once for a token, whose resulting http.Client is reused for
// every subsequent call (the oauth2 transport refreshes the token
// itself when it expires).
package tidalflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2/clientcredentials"

	"streamgrab/internal/client/httpstream"
	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
)

const (
	baseURL  = "https://api.tidalflow.example/v1/"
	tokenURL = "https://auth.tidalflow.example/oauth2/token"
)

// Client implements provider.Client against the tidalflow API.
type Client struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
	baseURL    string
	tokenURL   string
}

// New builds a Client; it does not perform the token exchange itself
// (that happens on Login, matching the spec's "login is idempotent,
// callable lazily" contract rather than failing construction).
func New(cfg *config.ProviderConfig) (*Client, error) {
	return &Client{cfg: cfg, baseURL: baseURL, tokenURL: tokenURL}, nil
}

// newWithURLs builds a Client against arbitrary API/token base URLs,
// used by tests to point both at an httptest server instead of the
// real tidalflow host.
func newWithURLs(cfg *config.ProviderConfig, base, token string) *Client {
	return &Client{cfg: cfg, baseURL: base, tokenURL: token}
}

// Source identifies this adapter.
func (c *Client) Source() model.Source { return model.SourceTidalFlow }

// Login exchanges the configured client credentials (AppID as client
// id, Credential as client secret) for an OAuth2 token and installs the
// resulting http.Client. Every call performs a fresh token exchange and
// replaces the installed client; between calls, the installed client's
// oauth2 transport re-exchanges on its own once its token expires.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.AppID == "" || c.cfg.Credential == "" {
		return fmt.Errorf("tidalflow: %w", provider.ErrMissingCredentials)
	}

	oauthCfg := &clientcredentials.Config{
		ClientID:     c.cfg.AppID,
		ClientSecret: c.cfg.Credential,
		TokenURL:     c.tokenURL,
	}

	if _, err := oauthCfg.Token(ctx); err != nil {
		return fmt.Errorf("tidalflow: %w: %w", provider.ErrAuth, err)
	}

	c.httpClient = oauthCfg.Client(ctx)

	return nil
}

type trackResource struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	AlbumID    string `json:"albumId"`
	TrackNum   int    `json:"trackNumber"`
	Explicit   bool   `json:"explicit"`
	Streamable bool   `json:"streamReady"`
}

type albumResource struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ArtistName  string   `json:"artist"`
	ReleaseYear int      `json:"releaseYear"`
	NumberTr    int      `json:"numberOfTracks"`
	AudioQuali  string   `json:"audioQuality"`
	Genres      []string `json:"genres"`
	Streamable  bool     `json:"streamReady"`
}

// GetMetadata fetches the raw payload for a track or album.
func (c *Client) GetMetadata(ctx context.Context, id string, kind model.Kind) (any, error) {
	var route string

	switch kind {
	case model.KindTrack:
		route = "tracks/" + id
	case model.KindAlbum:
		route = "albums/" + id
	default:
		return nil, fmt.Errorf("tidalflow: unsupported metadata kind %s", kind)
	}

	body, err := c.get(ctx, route, nil)
	if err != nil {
		return nil, err
	}

	if kind == model.KindTrack {
		var out trackResource
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("tidalflow: decode track: %w", err)
		}

		if !out.Streamable {
			return nil, provider.ErrNotStreamable
		}

		return &out, nil
	}

	var out albumResource
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("tidalflow: decode album: %w", err)
	}

	if !out.Streamable {
		return nil, provider.ErrNotStreamable
	}

	return &out, nil
}

type playbackResource struct {
	URL           string `json:"url"`
	Codec         string `json:"codec"`
	ContentLength int64  `json:"contentLength"`
}

type downloadable struct {
	client *Client
	url    string
	size   int64
	ext    string
}

func (d *downloadable) Size() int64          { return d.size }
func (d *downloadable) Extension() string    { return d.ext }
func (d *downloadable) Source() model.Source { return model.SourceTidalFlow }

func (d *downloadable) Download(ctx context.Context, path string, onProgress func(int64)) error {
	return httpstream.ToFile(ctx, d.client.httpClient, d.url, path, onProgress)
}

// GetDownloadable resolves id/quality to a playback URL, retrying once
// with the track's fallback region mirror id on a geo-restricted
// response (Tidal-style APIs commonly expose a "replacementId" in the
// 451 body for exactly this case).
func (c *Client) GetDownloadable(
	ctx context.Context,
	id string,
	quality model.Quality,
	isRetry bool,
) (model.Downloadable, error) {
	query := url.Values{}
	query.Set("quality", strconv.Itoa(int(quality)))

	body, err := c.get(ctx, "tracks/"+id+"/playbackinfo", query)
	if err != nil {
		var geoErr *geoRestrictedError
		if asGeoRestricted(err, &geoErr) && !isRetry && geoErr.ReplacementID != "" {
			logger.InfoKV(ctx, "tidalflow: geo-restricted, retrying with replacement id",
				"id", id, "replacement", geoErr.ReplacementID)

			return c.GetDownloadable(ctx, geoErr.ReplacementID, quality, true)
		}

		return nil, fmt.Errorf("tidalflow: %w", provider.ErrNotStreamable)
	}

	var out playbackResource
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("tidalflow: decode playback info: %w", err)
	}

	return &downloadable{client: c, url: out.URL, size: out.ContentLength, ext: extensionForCodec(out.Codec)}, nil
}

func extensionForCodec(codec string) string {
	switch codec {
	case "FLAC":
		return ".flac"
	case "MQA":
		return ".flac"
	default:
		return ".m4a"
	}
}

// Search runs a keyword search scoped to kind.
func (c *Client) Search(ctx context.Context, kind model.Kind, query string, limit int) ([]provider.Page, error) {
	values := url.Values{}
	values.Set("query", query)
	values.Set("type", kind.String())
	values.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "search", values)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("tidalflow: decode search: %w", err)
	}

	items := make([]any, 0, len(out.Items))
	for _, raw := range out.Items {
		items = append(items, raw)
	}

	return []provider.Page{{Items: items}}, nil
}

// GetUserFavorites fetches a user's saved collection.
func (c *Client) GetUserFavorites(ctx context.Context, kind model.Kind, userID string) (provider.FavoritesResponse, error) {
	body, err := c.get(ctx, "users/"+userID+"/favorites/"+kind.String(), nil)
	if err != nil {
		return provider.FavoritesResponse{}, err
	}

	var out struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return provider.FavoritesResponse{}, fmt.Errorf("tidalflow: decode favorites: %w", err)
	}

	items := make([]provider.FavoriteItem, 0, len(out.Items))
	for _, item := range out.Items {
		if item.ID != "" {
			items = append(items, provider.FavoriteItem{ID: item.ID, Kind: kind})
		}
	}

	return provider.FavoritesResponse{Items: items}, nil
}

// GetContainerChildren lists an album's or playlist's track IDs, or an
// artist's album IDs. This provider has no label catalog endpoint, so
// a label request returns ErrKindUnsupported.
func (c *Client) GetContainerChildren(ctx context.Context, id string, parentKind model.Kind) ([]string, error) {
	var route string

	switch parentKind {
	case model.KindAlbum:
		route = "albums/" + id + "/tracks"
	case model.KindArtist:
		route = "artists/" + id + "/albums"
	case model.KindPlaylist:
		route = "playlists/" + id + "/tracks"
	default:
		return nil, fmt.Errorf("tidalflow: %w: %s", provider.ErrKindUnsupported, parentKind)
	}

	body, err := c.get(ctx, route, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("tidalflow: decode container children: %w", err)
	}

	ids := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		if item.ID != "" {
			ids = append(ids, item.ID)
		}
	}

	return ids, nil
}

func (c *Client) get(ctx context.Context, route string, query url.Values) ([]byte, error) {
	if c.httpClient == nil {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	routeURL, err := url.JoinPath(c.baseURL, route)
	if err != nil {
		return nil, fmt.Errorf("tidalflow: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, routeURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("tidalflow: %w", err)
	}

	if query != nil {
		request.URL.RawQuery = query.Encode()
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("tidalflow: %w: %w", provider.ErrTransport, err)
	}
	defer response.Body.Close() //nolint:errcheck // response bodies are discarded after decode

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("tidalflow: read response: %w", err)
	}

	if response.StatusCode == http.StatusUnavailableForLegalReasons {
		var geo geoRestrictedError
		_ = json.Unmarshal(body, &geo)

		return nil, &geo
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tidalflow: unexpected HTTP status %d", response.StatusCode)
	}

	return body, nil
}

// geoRestrictedError is the shape a 451 response carries: a
// provider-suggested replacement track id available in the caller's
// region.
type geoRestrictedError struct {
	ReplacementID string `json:"replacementId"`
}

func (e *geoRestrictedError) Error() string {
	return "tidalflow: geo-restricted"
}

func asGeoRestricted(err error, target **geoRestrictedError) bool {
	geo, ok := err.(*geoRestrictedError) //nolint:errorlint // sentinel-free adapter-local type, not wrapped
	if !ok {
		return false
	}

	*target = geo

	return true
}
