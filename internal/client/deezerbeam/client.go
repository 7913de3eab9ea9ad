// Package deezerbeam implements the provider.Client contract against a
// plain REST API using resty, grounded on the retrieval pack's
// resty.New().R()... call chain (token fetch via SetBasicAuth/SetBody,
// authenticated GET via SetAuthToken/SetQueryParams).
package deezerbeam

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"streamgrab/internal/client/httpstream"
	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
)

const (
	baseURL  = "https://api.deezerbeam.example/v2"
	tokenURL = "https://auth.deezerbeam.example/token"
)

// Client implements provider.Client against the deezerbeam API.
type Client struct {
	cfg      *config.ProviderConfig
	rest     *resty.Client
	baseURL  string
	tokenURL string
	token    string
}

// New builds a Client; the auth token is fetched lazily on Login.
func New(cfg *config.ProviderConfig) (*Client, error) {
	return &Client{cfg: cfg, rest: resty.New(), baseURL: baseURL, tokenURL: tokenURL}, nil
}

func newWithURLs(cfg *config.ProviderConfig, base, token string) *Client {
	return &Client{cfg: cfg, rest: resty.New(), baseURL: base, tokenURL: token}
}

// Source identifies this adapter.
func (c *Client) Source() model.Source { return model.SourceDeezerBeam }

// Login exchanges the configured ARL-style credential for a bearer
// token. Idempotent: re-running it just re-fetches, which is cheap and
// side-effect-free on the server.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.Credential == "" {
		return fmt.Errorf("deezerbeam: %w", provider.ErrMissingCredentials)
	}

	response, err := c.rest.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.AppID, c.cfg.Credential).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("grant_type=client_credentials").
		Post(c.tokenURL)
	if err != nil {
		return fmt.Errorf("deezerbeam: %w: %w", provider.ErrAuth, err)
	}

	if response.IsError() {
		return fmt.Errorf("deezerbeam: %w: status %d", provider.ErrAuth, response.StatusCode())
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil || result.AccessToken == "" {
		return fmt.Errorf("deezerbeam: %w: no access_token in response", provider.ErrAuth)
	}

	c.token = result.AccessToken

	return nil
}

type trackPayload struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	AlbumID    string `json:"album_id"`
	TrackPos   int    `json:"track_position"`
	Explicit   bool   `json:"explicit_lyrics"`
	Readable   bool   `json:"readable"`
}

type albumPayload struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ArtistName string   `json:"artist_name"`
	Year       int      `json:"release_year"`
	NbTracks   int      `json:"nb_tracks"`
	Genres     []string `json:"genres"`
	Label      string   `json:"label"`
	Readable   bool     `json:"readable"`
}

// GetMetadata fetches the raw payload for a track or album.
func (c *Client) GetMetadata(ctx context.Context, id string, kind model.Kind) (any, error) {
	var route string

	switch kind {
	case model.KindTrack:
		route = "/track/" + id
	case model.KindAlbum:
		route = "/album/" + id
	default:
		return nil, fmt.Errorf("deezerbeam: unsupported metadata kind %s", kind)
	}

	response, err := c.authenticatedRequest(ctx).Get(c.baseURL + route)
	if err != nil {
		return nil, fmt.Errorf("deezerbeam: %w: %w", provider.ErrTransport, err)
	}

	if response.IsError() {
		return nil, fmt.Errorf("deezerbeam: unexpected HTTP status %d", response.StatusCode())
	}

	if kind == model.KindTrack {
		var out trackPayload
		if err := json.Unmarshal(response.Body(), &out); err != nil {
			return nil, fmt.Errorf("deezerbeam: decode track: %w", err)
		}

		if !out.Readable {
			return nil, provider.ErrNotStreamable
		}

		return &out, nil
	}

	var out albumPayload
	if err := json.Unmarshal(response.Body(), &out); err != nil {
		return nil, fmt.Errorf("deezerbeam: decode album: %w", err)
	}

	if !out.Readable {
		return nil, provider.ErrNotStreamable
	}

	return &out, nil
}

type downloadable struct {
	client *Client
	url    string
	size   int64
}

func (d *downloadable) Size() int64          { return d.size }
func (d *downloadable) Extension() string    { return ".mp3" }
func (d *downloadable) Source() model.Source { return model.SourceDeezerBeam }

func (d *downloadable) Download(ctx context.Context, path string, onProgress func(int64)) error {
	return httpstream.ToFile(ctx, d.client.rest.GetClient(), d.url, path, onProgress)
}

// GetDownloadable resolves id/quality to a streaming URL. On any
// transport error or error status it retries once against the same id,
// since this provider offers no region-mirror fallback.
func (c *Client) GetDownloadable(
	ctx context.Context,
	id string,
	quality model.Quality,
	isRetry bool,
) (model.Downloadable, error) {
	response, err := c.authenticatedRequest(ctx).
		SetQueryParam("quality", strconv.Itoa(int(quality))).
		Get(c.baseURL + "/track/" + id + "/stream")
	if err != nil || response.IsError() {
		if isRetry {
			return nil, fmt.Errorf("deezerbeam: %w", provider.ErrNotStreamable)
		}

		logger.InfoKV(ctx, "deezerbeam: stream lookup failed, retrying once", "id", id)

		return c.GetDownloadable(ctx, id, quality, true)
	}

	var out struct {
		URL  string `json:"url"`
		Size int64  `json:"filesize"`
	}
	if err := json.Unmarshal(response.Body(), &out); err != nil || out.URL == "" {
		return nil, fmt.Errorf("deezerbeam: %w", provider.ErrNotStreamable)
	}

	return &downloadable{client: c, url: out.URL, size: out.Size}, nil
}

// Search runs a keyword search scoped to kind.
func (c *Client) Search(ctx context.Context, kind model.Kind, query string, limit int) ([]provider.Page, error) {
	response, err := c.authenticatedRequest(ctx).
		SetQueryParams(map[string]string{"q": query, "type": kind.String(), "limit": strconv.Itoa(limit)}).
		Get(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("deezerbeam: %w: %w", provider.ErrTransport, err)
	}

	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &out); err != nil {
		return nil, fmt.Errorf("deezerbeam: decode search: %w", err)
	}

	items := make([]any, 0, len(out.Data))
	for _, raw := range out.Data {
		items = append(items, raw)
	}

	return []provider.Page{{Items: items}}, nil
}

// GetUserFavorites fetches a user's saved collection.
func (c *Client) GetUserFavorites(ctx context.Context, kind model.Kind, userID string) (provider.FavoritesResponse, error) {
	response, err := c.authenticatedRequest(ctx).Get(c.baseURL + "/user/" + userID + "/" + kind.String())
	if err != nil {
		return provider.FavoritesResponse{}, fmt.Errorf("deezerbeam: %w: %w", provider.ErrTransport, err)
	}

	var out struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &out); err != nil {
		return provider.FavoritesResponse{}, fmt.Errorf("deezerbeam: decode favorites: %w", err)
	}

	items := make([]provider.FavoriteItem, 0, len(out.Data))
	for _, item := range out.Data {
		items = append(items, provider.FavoriteItem{ID: strconv.FormatInt(item.ID, 10), Kind: kind})
	}

	return provider.FavoritesResponse{Items: items}, nil
}

// GetContainerChildren lists an album's or playlist's track IDs, or an
// artist's album IDs, matching Deezer's real /album/{id}/tracks,
// /artist/{id}/albums, and /playlist/{id}/tracks shapes. This provider
// has no label catalog endpoint.
func (c *Client) GetContainerChildren(ctx context.Context, id string, parentKind model.Kind) ([]string, error) {
	var route string

	switch parentKind {
	case model.KindAlbum:
		route = "/album/" + id + "/tracks"
	case model.KindArtist:
		route = "/artist/" + id + "/albums"
	case model.KindPlaylist:
		route = "/playlist/" + id + "/tracks"
	default:
		return nil, fmt.Errorf("deezerbeam: %w: %s", provider.ErrKindUnsupported, parentKind)
	}

	response, err := c.authenticatedRequest(ctx).Get(c.baseURL + route)
	if err != nil {
		return nil, fmt.Errorf("deezerbeam: %w: %w", provider.ErrTransport, err)
	}

	if response.IsError() {
		return nil, fmt.Errorf("deezerbeam: unexpected HTTP status %d", response.StatusCode())
	}

	var out struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(response.Body(), &out); err != nil {
		return nil, fmt.Errorf("deezerbeam: decode container children: %w", err)
	}

	ids := make([]string, 0, len(out.Data))
	for _, item := range out.Data {
		ids = append(ids, strconv.FormatInt(item.ID, 10))
	}

	return ids, nil
}

func (c *Client) authenticatedRequest(ctx context.Context) *resty.Request {
	return c.rest.R().SetContext(ctx).SetAuthToken(c.token)
}
