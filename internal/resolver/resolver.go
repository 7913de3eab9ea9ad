// Package resolver turns user-supplied strings (URLs, bare IDs, text
// files full of URLs) into model.Reference values, per spec.md §4.1.
// It never calls a provider's metadata API — that's internal/discovery's
// job — but the SoundCloud-style short link does require a live
// redirect-follow-and-scrape round trip, which this package delegates
// to an injected ShortLinkResolver so the regex table itself stays pure
// and independently testable.
package resolver

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"streamgrab/internal/logger"
	"streamgrab/internal/model"
	"streamgrab/internal/utils"
)

// ErrUnparseable is returned (and should only ever be logged, not
// propagated) when no rule matches an input string. Per spec §4.1 the
// caller reports and continues rather than aborting the whole run.
var ErrUnparseable = errors.New("resolver: unparseable input")

const textFileExtension = ".txt"

// rule pairs a regex against a model.Kind, capturing the entity ID in a
// named group "ID".
type rule struct {
	source  model.Source
	pattern *regexp.Regexp
	kind    model.Kind
}

//nolint:gochecknoglobals // immutable lookup table, mirrors the teacher's categoriesByPatterns
var rules = []rule{
	{"qobuzstream", regexp.MustCompile(`qobuzstream\.example/track/(?P<ID>[\w-]+)$`), model.KindTrack},
	{"qobuzstream", regexp.MustCompile(`qobuzstream\.example/album/(?P<ID>[\w-]+)$`), model.KindAlbum},
	{"qobuzstream", regexp.MustCompile(`qobuzstream\.example/artist/(?P<ID>[\w-]+)$`), model.KindArtist},
	{"qobuzstream", regexp.MustCompile(`qobuzstream\.example/label/(?P<ID>[\w-]+)$`), model.KindLabel},

	{"tidalflow", regexp.MustCompile(`tidalflow\.example/track/(?P<ID>\d+)$`), model.KindTrack},
	{"tidalflow", regexp.MustCompile(`tidalflow\.example/album/(?P<ID>\d+)$`), model.KindAlbum},
	{"tidalflow", regexp.MustCompile(`tidalflow\.example/artist/(?P<ID>\d+)$`), model.KindArtist},
	{"tidalflow", regexp.MustCompile(`tidalflow\.example/playlist/(?P<ID>[\w-]+)$`), model.KindPlaylist},

	{"deezerbeam", regexp.MustCompile(`deezerbeam\.example/track/(?P<ID>\d+)$`), model.KindTrack},
	{"deezerbeam", regexp.MustCompile(`deezerbeam\.example/album/(?P<ID>\d+)$`), model.KindAlbum},
	{"deezerbeam", regexp.MustCompile(`deezerbeam\.example/artist/(?P<ID>\d+)$`), model.KindArtist},
	{"deezerbeam", regexp.MustCompile(`deezerbeam\.example/playlist/(?P<ID>\d+)$`), model.KindPlaylist},

	{"soundcloudwave", regexp.MustCompile(`soundcloudwave\.example/[\w-]+/(?P<ID>[\w-]+)$`), model.KindTrack},
	{"soundcloudwave", regexp.MustCompile(`soundcloudwave\.example/[\w-]+/sets/(?P<ID>[\w-]+)$`), model.KindAlbum},
}

// favoritesPath matches /profile/{userId}/{tracks|albums|artists|playlists}.
var favoritesPath = regexp.MustCompile(`/profile/(?P<UserID>[\w-]+)/(?P<Collection>tracks|albums|artists|playlists)$`)

// shortLinkHost matches the handful of mobile short-link domains that
// require a redirect-follow before they carry a recognizable path.
var shortLinkHost = regexp.MustCompile(`^https?://(on\.soundcloudwave\.example|link\.tidalflow\.example)/`)

// ShortLinkResolver follows a mobile short link's HTTP redirect and
// scrapes the landing page for its canonical kind+id. Implemented by
// internal/client/soundcloudwave using a headless browser; resolver
// stays agnostic of how that happens.
type ShortLinkResolver interface {
	ResolveShortLink(ctx context.Context, url string) (model.Reference, error)
}

// Resolver parses input strings into References.
type Resolver struct {
	shortLinks ShortLinkResolver
}

// New builds a Resolver. shortLinks may be nil if the caller has no
// soundcloudwave provider enabled; short links then fall through to
// ErrUnparseable instead of panicking.
func New(shortLinks ShortLinkResolver) *Resolver {
	return &Resolver{shortLinks: shortLinks}
}

// Resolve parses a single input string into a Reference. It does not
// expand text files; call ExpandInputs first for a batch of CLI args.
func (r *Resolver) Resolve(ctx context.Context, input string) (model.Reference, error) {
	input = strings.TrimSpace(input)

	if shortLinkHost.MatchString(input) {
		if r.shortLinks == nil {
			return model.Reference{}, ErrUnparseable
		}

		ref, err := r.shortLinks.ResolveShortLink(ctx, input)
		if err != nil {
			logger.WarnKV(ctx, "resolver: short link resolution failed", "url", input, "error", err)

			return model.Reference{}, ErrUnparseable
		}

		return ref, nil
	}

	return ResolveCanonical(input)
}

// ResolveCanonical matches a non-short-link URL (or bare favorites
// path) against the regex rule table directly, with no short-link
// indirection. Exposed so internal/client/soundcloudwave can resolve
// the canonical URL its headless browser lands on after following a
// short link's redirect, reusing the same rule table Resolve uses.
func ResolveCanonical(input string) (model.Reference, error) {
	input = strings.TrimSpace(input)

	if m := favoritesPath.FindStringSubmatch(input); m != nil {
		userID := m[favoritesPath.SubexpIndex("UserID")]
		collection := m[favoritesPath.SubexpIndex("Collection")]
		source := sourceFromHost(input)

		return model.Reference{
			Source:      source,
			Kind:        model.KindFavorites,
			ID:          userID,
			FavoritesOf: collection,
		}, nil
	}

	for _, rl := range rules {
		if id := utils.ExtractNamedGroup(rl.pattern, "ID", input); id != "" {
			return model.Reference{Source: rl.source, Kind: rl.kind, ID: id}, nil
		}
	}

	return model.Reference{}, ErrUnparseable
}

// ExpandInputs flattens a CLI argument list, replacing any ".txt" entry
// with the unique, non-blank lines it contains (spec's "caller reports
// and continues" applies at the Resolve call site, not here).
func ExpandInputs(inputs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(inputs))

	var out []string

	for _, in := range inputs {
		if !strings.HasSuffix(in, textFileExtension) {
			if _, ok := seen[in]; ok {
				continue
			}

			seen[in] = struct{}{}

			out = append(out, in)

			continue
		}

		lines, err := utils.ReadUniqueLinesFromFile(in)
		if err != nil {
			return nil, err
		}

		for _, line := range lines {
			if _, ok := seen[line]; ok {
				continue
			}

			seen[line] = struct{}{}

			out = append(out, line)
		}
	}

	return out, nil
}

func sourceFromHost(url string) model.Source {
	switch {
	case strings.Contains(url, "qobuzstream"):
		return "qobuzstream"
	case strings.Contains(url, "tidalflow"):
		return "tidalflow"
	case strings.Contains(url, "deezerbeam"):
		return "deezerbeam"
	case strings.Contains(url, "soundcloudwave"):
		return "soundcloudwave"
	default:
		return ""
	}
}
