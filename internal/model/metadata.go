package model

import "time"

// Cover is one resolution of an album's cover art, as advertised by the
// provider before any file is actually fetched.
type Cover struct {
	URL    string
	Width  int
	Height int
}

// AlbumInfo carries the quality/container facts that the §3 invariants
// constrain. It is nested in AlbumMetadata rather than flattened so a
// Track's resolved quality (which must be <= this) can reference it by
// value without duplicating every album field.
type AlbumInfo struct {
	Quality      Quality
	Container    Container
	BitDepth     uint8
	SamplingRate uint32
	Explicit     bool
	Streamable   bool
	Booklets     []string
}

// AlbumMetadata is the normalized, provider-agnostic album record every
// provider mapper (internal/client/*, behind internal/metadata's
// interface) produces. It is shared by reference
// between the Album aggregate and every Track it spawns; enrichment is
// the only step allowed to mutate it, and only before any track tied to
// it is enqueued.
type AlbumMetadata struct {
	ID             string
	Title          string
	AlbumArtist    string
	Year           int
	Date           time.Time
	Genres         []string
	Covers         []Cover
	TrackTotal     int
	DiscTotal      int
	Label          string
	Copyright      string
	Description    string
	Barcode        string
	ReleaseType    string
	MediaType      string
	OriginalDate   time.Time
	SourcePlatform Source
	SourceAlbumID  string
	SourceArtistID string
	RYMDescriptors []string

	Info AlbumInfo
}

// TrackInfo carries the per-track quality/container facts, mirroring
// AlbumInfo but scoped to a single track (whose resolved quality may be
// lower than the album's advertised maximum).
type TrackInfo struct {
	ID           string
	Quality      Quality
	Streamable   bool
	BitDepth     uint8
	SamplingRate uint32
	Explicit     bool
	Work         string
	Container    Container
}

// TrackMetadata is the normalized per-track record. Album is a pointer
// so every track in an album aggregate shares one AlbumMetadata
// instance; mutating it through enrichment is visible to all siblings.
type TrackMetadata struct {
	Info  TrackInfo
	Title string

	Album *AlbumMetadata

	Artist  string
	Artists []string

	TrackNumber int
	DiscNumber  int

	Composer []string
	Author   []string

	ISRC   string
	Lyrics string

	SourcePlatform Source
	SourceTrackID  string
	SourceAlbumID  string
	SourceArtistID string

	BPM             int
	ReplayGainTrack float64
	MediaType       string
}
