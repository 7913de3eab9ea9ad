// Package qobuzstream implements the provider.Client contract against
// a GraphQL-fronted streaming API, grounded on the teacher's Zvuk
// client: a cookie-jar-authenticated http.Client feeding both raw REST
// calls and a machinebox/graphql client for relational lookups (artist
// discography, label catalog) the REST surface doesn't expose flatly.
package qobuzstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/machinebox/graphql"

	"streamgrab/internal/client/httpstream"
	"streamgrab/internal/config"
	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
	httptransport "streamgrab/internal/transport/http"
	"streamgrab/internal/utils"
)

const (
	baseURL        = "https://api.qobuzstream.example/"
	graphQLURI     = "api/v1/graphql"
	trackURI       = "api/tiny/tracks"
	releaseURI     = "api/tiny/releases"
	labelURI       = "api/tiny/labels"
	playlistURI    = "api/tiny/playlists"
	streamURI      = "api/tiny/track/stream"
	favoritesURI   = "api/tiny/favorites"
	searchURI      = "api/tiny/search"
	authCookieName = "auth"
)

// ErrUnexpectedHTTPStatus mirrors the teacher's static error for any
// non-2xx REST response.
var ErrUnexpectedHTTPStatus = errors.New("qobuzstream: unexpected HTTP status")

// Client implements provider.Client against the qobuzstream API.
type Client struct {
	cfg           *config.ProviderConfig
	httpClient    *http.Client
	graphQLClient *graphql.Client
	baseURL       string
}

// New builds a Client from the provider's slice of config, wiring the
// same cookie-jar + user-agent-injecting transport the teacher uses.
func New(cfg *config.ProviderConfig) (*Client, error) {
	return newWithBaseURL(cfg, baseURL)
}

// newWithBaseURL builds a Client against an arbitrary base URL, used by
// New with the real API host and by tests with an httptest server.
func newWithBaseURL(cfg *config.ProviderConfig, base string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("qobuzstream: create cookie jar: %w", err)
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("qobuzstream: invalid base URL: %w", err)
	}

	jar.SetCookies(parsed, []*http.Cookie{{Name: authCookieName, Value: cfg.Credential}})

	httpClient := &http.Client{
		Transport: httptransport.NewUserAgentInjector(
			httptransport.NewLogTransport(http.DefaultTransport, 0),
			utils.NewSimpleUserAgentProvider(httptransport.DefaultUserAgent)),
		Jar:     jar,
		Timeout: httptransport.DefaultTimeout,
	}

	graphQLURL := parsed.JoinPath(graphQLURI)

	return &Client{
		cfg:           cfg,
		httpClient:    httpClient,
		graphQLClient: graphql.NewClient(graphQLURL.String(), graphql.WithHTTPClient(httpClient)),
		baseURL:       parsed.String(),
	}, nil
}

// Source identifies this adapter.
func (c *Client) Source() model.Source { return model.SourceQobuzStream }

// Login confirms the credential the cookie jar was seeded with at
// construction time by fetching the profile endpoint, wrapping any
// failure in ErrAuth. It is idempotent: calling it again repeats the
// same check.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.Credential == "" {
		return fmt.Errorf("qobuzstream: %w", provider.ErrMissingCredentials)
	}

	if _, _, err := c.fetchJSON(ctx, "api/v2/tiny/profile", nil); err != nil {
		return fmt.Errorf("qobuzstream: %w: %w", provider.ErrAuth, err)
	}

	return nil
}

// releasePayload is the raw shape a release metadata lookup returns;
// internal/client/qobuzstream's Mapper (mapper.go) turns this into
// model.AlbumMetadata.
type releasePayload struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	ArtistName   string   `json:"artist_name"`
	Year         int      `json:"release_date_year"`
	Genres       []string `json:"genres"`
	TrackIDs     []string `json:"track_ids"`
	Label        string   `json:"label"`
	HighestQuali int      `json:"highest_quality"`
	Streamable   bool     `json:"availability"`
}

type trackPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ArtistName  string `json:"artist_name"`
	ReleaseID   string `json:"release_id"`
	Position    int    `json:"position"`
	Explicit    bool   `json:"explicit"`
	Availabiliy bool   `json:"availability"`
}

// GetMetadata fetches the raw payload for a track or album; any other
// kind is an unsupported-kind error.
func (c *Client) GetMetadata(ctx context.Context, id string, kind model.Kind) (any, error) {
	switch kind {
	case model.KindTrack:
		var out trackPayload
		if err := c.fetchEntity(ctx, trackURI, id, &out); err != nil {
			return nil, err
		}

		return &out, nil
	case model.KindAlbum:
		var out releasePayload
		if err := c.fetchEntity(ctx, releaseURI, id, &out); err != nil {
			return nil, err
		}

		if !out.Streamable {
			return nil, provider.ErrNotStreamable
		}

		return &out, nil
	default:
		return nil, fmt.Errorf("qobuzstream: unsupported metadata kind %s", kind)
	}
}

type streamPayload struct {
	URL       string `json:"stream_url"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	Quality   int    `json:"quality"`
}

// downloadable adapts a streamPayload into model.Downloadable by
// streaming the URL over c.httpClient with a Range header, matching
// the teacher's FetchTrack pattern.
type downloadable struct {
	client *Client
	url    string
	size   int64
	ext    string
}

func (d *downloadable) Size() int64        { return d.size }
func (d *downloadable) Extension() string  { return d.ext }
func (d *downloadable) Source() model.Source { return model.SourceQobuzStream }

func (d *downloadable) Download(ctx context.Context, path string, onProgress func(int64)) error {
	return httpstream.ToFile(ctx, d.client.httpClient, d.url, path, onProgress)
}

// GetDownloadable resolves a track id to a streaming URL. When the
// lookup fails for any reason it retries itself once with isRetry=true
// against the same id (this adapter has no alternate track id to fall
// back to); a second failure, or an empty stream URL, is reported as
// ErrNotStreamable.
func (c *Client) GetDownloadable(
	ctx context.Context,
	id string,
	quality model.Quality,
	isRetry bool,
) (model.Downloadable, error) {
	query := url.Values{}
	query.Set("id", id)
	query.Set("quality", fmt.Sprintf("%d", quality))

	var out streamPayload
	if err := c.fetchJSONInto(ctx, streamURI, query, &out); err != nil {
		if isRetry {
			return nil, fmt.Errorf("qobuzstream: %w", provider.ErrNotStreamable)
		}

		logger.WarnKV(ctx, "qobuzstream: stream lookup failed, retrying once", "id", id, "error", err)

		return c.GetDownloadable(ctx, id, quality, true)
	}

	if out.URL == "" {
		return nil, fmt.Errorf("qobuzstream: %w", provider.ErrNotStreamable)
	}

	return &downloadable{client: c, url: out.URL, size: out.Size, ext: "." + strings.TrimPrefix(out.Extension, ".")}, nil
}

// Search runs a keyword search scoped to kind.
func (c *Client) Search(ctx context.Context, kind model.Kind, query string, limit int) ([]provider.Page, error) {
	values := url.Values{}
	values.Set("query", query)
	values.Set("type", kind.String())
	values.Set("limit", fmt.Sprintf("%d", limit))

	var out struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.fetchJSONInto(ctx, searchURI, values, &out); err != nil {
		return nil, err
	}

	items := make([]any, 0, len(out.Items))
	for _, raw := range out.Items {
		items = append(items, raw)
	}

	return []provider.Page{{Items: items}}, nil
}

// GetUserFavorites fetches a user's saved collection via the GraphQL
// endpoint, mirroring the teacher's GetArtistReleaseIDs navigation-by-
// untyped-map approach since the schema isn't codegen'd here.
func (c *Client) GetUserFavorites(ctx context.Context, kind model.Kind, userID string) (provider.FavoritesResponse, error) {
	request := graphql.NewRequest(`
		query getFavorites($userId: ID!, $kind: String!) {
			getUser(id: $userId) {
				favorites(kind: $kind) { id }
			}
		}
	`)
	request.Header.Add("X-Auth-Token", c.cfg.Credential)
	request.Var("userId", userID)
	request.Var("kind", kind.String())

	var response map[string]any
	if err := c.graphQLClient.Run(ctx, request, &response); err != nil {
		return provider.FavoritesResponse{}, fmt.Errorf("qobuzstream: %w: %w", provider.ErrTransport, err)
	}

	user, ok := response["getUser"].(map[string]any)
	if !ok {
		return provider.FavoritesResponse{}, fmt.Errorf("qobuzstream: unexpected favorites response shape")
	}

	favorites, _ := user["favorites"].([]any)
	items := make([]provider.FavoriteItem, 0, len(favorites))

	for _, f := range favorites {
		entry, ok := f.(map[string]any)
		if !ok {
			continue
		}

		if id, ok := entry["id"].(string); ok && id != "" {
			items = append(items, provider.FavoriteItem{ID: id, Kind: kind})
		}
	}

	return provider.FavoritesResponse{Items: items}, nil
}

// playlistPayload is the raw shape a playlist lookup returns: unlike a
// release, qobuzstream embeds its track listing directly since
// playlists are ordered by construction, not paginated.
type playlistPayload struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	TrackIDs []string `json:"track_ids"`
}

// GetContainerChildren lists an album's track IDs, an artist's or
// label's album IDs, or a playlist's track IDs. Albums and playlists
// are REST lookups with the child list embedded in the payload;
// artist and label discographies go through GraphQL the same way
// GetUserFavorites does, since the REST surface has no flat catalog
// endpoint for either.
func (c *Client) GetContainerChildren(ctx context.Context, id string, parentKind model.Kind) ([]string, error) {
	switch parentKind {
	case model.KindAlbum:
		var out releasePayload
		if err := c.fetchEntity(ctx, releaseURI, id, &out); err != nil {
			return nil, err
		}

		return out.TrackIDs, nil
	case model.KindPlaylist:
		var out playlistPayload
		if err := c.fetchEntity(ctx, playlistURI, id, &out); err != nil {
			return nil, err
		}

		return out.TrackIDs, nil
	case model.KindArtist, model.KindLabel:
		return c.fetchDiscography(ctx, id, parentKind)
	default:
		return nil, fmt.Errorf("qobuzstream: %w: %s", provider.ErrKindUnsupported, parentKind)
	}
}

// fetchDiscography mirrors the teacher's GetArtistReleaseIDs: a
// GraphQL query over an untyped response map, since this client has no
// codegen'd schema for either the artist or label catalog query.
func (c *Client) fetchDiscography(ctx context.Context, id string, parentKind model.Kind) ([]string, error) {
	request := graphql.NewRequest(`
		query getDiscography($id: ID!, $kind: String!) {
			getCatalog(id: $id, kind: $kind) {
				releases { id }
			}
		}
	`)
	request.Header.Add("X-Auth-Token", c.cfg.Credential)
	request.Var("id", id)
	request.Var("kind", parentKind.String())

	var response map[string]any
	if err := c.graphQLClient.Run(ctx, request, &response); err != nil {
		return nil, fmt.Errorf("qobuzstream: %w: %w", provider.ErrTransport, err)
	}

	catalog, ok := response["getCatalog"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("qobuzstream: unexpected discography response shape")
	}

	releases, _ := catalog["releases"].([]any)
	ids := make([]string, 0, len(releases))

	for _, r := range releases {
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}

		if rid, ok := entry["id"].(string); ok && rid != "" {
			ids = append(ids, rid)
		}
	}

	return ids, nil
}

func (c *Client) fetchEntity(ctx context.Context, uri, id string, out any) error {
	query := url.Values{}
	query.Set("ids", id)

	return c.fetchJSONInto(ctx, uri, query, out)
}

func (c *Client) fetchJSON(ctx context.Context, uri string, query url.Values) (*http.Response, int, error) {
	route, err := url.JoinPath(c.baseURL, uri)
	if err != nil {
		return nil, 0, fmt.Errorf("qobuzstream: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, route, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("qobuzstream: %w", err)
	}

	if query != nil {
		request.URL.RawQuery = query.Encode()
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, 0, fmt.Errorf("qobuzstream: %w: %w", provider.ErrTransport, err)
	}

	if response.StatusCode != http.StatusOK {
		defer response.Body.Close() //nolint:errcheck // best-effort close on the error path

		return nil, response.StatusCode, fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	return response, response.StatusCode, nil
}

func (c *Client) fetchJSONInto(ctx context.Context, uri string, query url.Values, out any) error {
	response, _, err := c.fetchJSON(ctx, uri, query)
	if err != nil {
		return err
	}

	defer response.Body.Close() //nolint:errcheck // response bodies are discarded after decode

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("qobuzstream: decode response: %w", err)
	}

	return nil
}
