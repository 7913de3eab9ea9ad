// Package model holds the provider-agnostic data types shared by every
// package in streamgrab: references produced by the resolver, the
// Pending/Media lifecycle types the discovery pipeline drives, and the
// normalized metadata records the tag writer ultimately serializes.
package model

import "fmt"

// Source identifies which provider a Reference or piece of metadata
// originated from. Kept as a distinct type from config.Source so the
// data-model package has no dependency on config; the string values
// are identical and config.Source(ref.Source) round-trips cleanly.
type Source string

// The four supported providers, mirroring config.Source's values.
const (
	SourceQobuzStream    Source = "qobuzstream"
	SourceTidalFlow      Source = "tidalflow"
	SourceDeezerBeam     Source = "deezerbeam"
	SourceSoundcloudWave Source = "soundcloudwave"
)

// Kind enumerates the shapes a Reference or Pending can take.
type Kind uint8

const (
	// KindUnknown is the zero value; never produced by the resolver.
	KindUnknown Kind = iota
	// KindTrack is a single track.
	KindTrack
	// KindAlbum is a full album (container of tracks).
	KindAlbum
	// KindArtist is a discography (container of albums).
	KindArtist
	// KindLabel is a label's catalog (container of albums).
	KindLabel
	// KindPlaylist is a user-curated ordering of tracks.
	KindPlaylist
	// KindFavorites is a user's saved-items collection, itself typed by
	// what it contains (tracks or albums); see Reference.FavoritesOf.
	KindFavorites
)

// String renders a Kind for logging.
func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindAlbum:
		return "album"
	case KindArtist:
		return "artist"
	case KindLabel:
		return "label"
	case KindPlaylist:
		return "playlist"
	case KindFavorites:
		return "favorites"
	default:
		return "unknown"
	}
}

// Reference is an immutable pointer to a remote entity, produced by the
// URL/ID resolver and consumed to build a Pending. It carries no
// collaborators and does no I/O.
type Reference struct {
	Source Source
	Kind   Kind
	ID     string

	// FavoritesOf narrows a KindFavorites reference to the item type the
	// collection holds ("tracks" or "albums"); empty for every other Kind.
	FavoritesOf string
}

// String renders a Reference for logs and error messages.
func (r Reference) String() string {
	if r.Kind == KindFavorites && r.FavoritesOf != "" {
		return fmt.Sprintf("%s:favorites(%s):%s", r.Source, r.FavoritesOf, r.ID)
	}

	return fmt.Sprintf("%s:%s:%s", r.Source, r.Kind, r.ID)
}

// NamespacedID prefixes an ID with its source so ledger keys never
// collide between providers that reuse small integers as IDs.
func (r Reference) NamespacedID() string {
	return string(r.Source) + ":" + r.Kind.String() + ":" + r.ID
}
