// Package provider defines the capability contract every streaming
// backend adapter implements (spec.md §6). internal/client/qobuzstream,
// tidalflow, deezerbeam, and soundcloudwave each satisfy Client; the
// rest of the engine (resolver excepted) depends only on this
// interface, never on a concrete provider package.
package provider

import (
	"context"
	"errors"
	"fmt"

	"streamgrab/internal/model"
)

// Sentinel error kinds from spec §7's taxonomy. These classify a
// failure's handling, not its Go type: callers use errors.Is against
// these wrapped sentinels.
var (
	// ErrMissingCredentials is fatal: the process should exit 1.
	ErrMissingCredentials = errors.New("provider: missing credentials")
	// ErrAuth is fatal: the process should exit 1.
	ErrAuth = errors.New("provider: authentication failed")
	// ErrNotStreamable is per-item and terminal. It wraps
	// model.ErrNotStreamable so callers can match either the raw
	// provider-reported case or the mapper-validated case with a single
	// errors.Is(err, model.ErrNotStreamable).
	ErrNotStreamable = fmt.Errorf("provider: item is not streamable: %w", model.ErrNotStreamable)
	// ErrTransport is retryable by the queue's retry loop.
	ErrTransport = errors.New("provider: transport error")
	// ErrKindUnsupported is returned by GetContainerChildren when a
	// provider has no notion of the requested parent kind (e.g. a
	// provider with no label catalog asked for a label's children).
	// internal/discovery treats this the same as an empty child list.
	ErrKindUnsupported = errors.New("provider: kind not supported by this provider")
)

// Page is one page of search results; its Items are raw, not-yet-
// normalized provider payloads (internal/metadata mappers turn them
// into model types on demand, so a search result the user never
// selects never pays the normalization cost).
type Page struct {
	Items      []any
	NextCursor string
}

// FavoritesResponse is the uniform favorites-of-X envelope spec §6 / §4
// requires across every provider, regardless of what their native API
// actually returns.
type FavoritesResponse struct {
	Items []FavoriteItem
}

// FavoriteItem is one entry in a favorites collection: enough to build
// a Reference without a second round trip.
type FavoriteItem struct {
	ID   string
	Kind model.Kind
}

// Client is the capability contract spec §6 names. get_downloadable's
// one-retry-on-geo-error fallback is the adapter's own concern; Client
// only exposes the outward-facing call.
type Client interface {
	// Source identifies this adapter (e.g. "qobuzstream").
	Source() model.Source

	// Login establishes or refreshes credentials. Idempotent: calling
	// it when already authenticated re-checks or refreshes the
	// credentials and succeeds again; it is not an error.
	Login(ctx context.Context) error

	// GetMetadata fetches the raw payload for id/kind. Returns
	// ErrNotStreamable (wrapped) when the provider reports the item
	// cannot be streamed in the caller's region/tier.
	GetMetadata(ctx context.Context, id string, kind model.Kind) (any, error)

	// GetDownloadable resolves id at quality to a Downloadable handle.
	// isRetry is set by the adapter's own one-shot geo-fallback retry,
	// not by the caller's queue-level retry loop.
	GetDownloadable(ctx context.Context, id string, quality model.Quality, isRetry bool) (model.Downloadable, error)

	// Search runs a provider-native search and returns pages of raw
	// results for the given kind.
	Search(ctx context.Context, kind model.Kind, query string, limit int) ([]Page, error)

	// GetUserFavorites fetches a user's saved collection of the given
	// kind, normalized into the uniform envelope.
	GetUserFavorites(ctx context.Context, kind model.Kind, userID string) (FavoritesResponse, error)

	// GetContainerChildren lists the child IDs of a container reference:
	// an album's track IDs, an artist's or label's album IDs, or a
	// playlist's track IDs. parentKind names the container being
	// expanded (model.KindAlbum, KindArtist, KindLabel, or
	// KindPlaylist); the returned IDs are always one kind down spec
	// §4.2 step 5's containment chain. Returns ErrKindUnsupported if
	// this provider has no catalog for parentKind (e.g. no label
	// concept).
	GetContainerChildren(ctx context.Context, id string, parentKind model.Kind) ([]string, error)
}

// Registry maps a model.Source to its Client, built once at startup
// from the enabled providers in config.
type Registry struct {
	clients map[model.Source]Client
}

// NewRegistry builds an empty Registry; call Register for each enabled
// provider.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[model.Source]Client)}
}

// Register installs c under its own Source() key.
func (r *Registry) Register(c Client) {
	r.clients[c.Source()] = c
}

// ErrUnknownSource is returned by Get when no client is registered for
// the requested source.
var ErrUnknownSource = errors.New("provider: no client registered for source")

// Get looks up the client for source.
func (r *Registry) Get(source model.Source) (Client, error) {
	c, ok := r.clients[source]
	if !ok {
		return nil, ErrUnknownSource
	}

	return c, nil
}
