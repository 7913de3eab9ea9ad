// Package filter implements the discography filter engine from spec.md
// §4.7: Apply runs the predicates in §4.3 over a plain slice of albums
// and returns the survivors. The State constants below name the
// Pending → Resolved → {Kept | Dropped} positions but are not used by
// Apply or any other code. It is deliberately
// separated from internal/discovery so each predicate is testable
// against plain model.AlbumMetadata values, with no provider or ledger
// collaborator in the loop.
package filter

import (
	"regexp"
	"strings"

	"streamgrab/internal/config"
	"streamgrab/internal/model"
)

// State is an album's position in the filter state machine.
type State uint8

const (
	// StatePending has not yet been evaluated.
	StatePending State = iota
	// StateResolved has been fetched but not yet filtered.
	StateResolved
	// StateKept survived every active predicate.
	StateKept
	// StateDropped was rejected by at least one active predicate.
	StateDropped
)

var (
	titleEssence    = regexp.MustCompile(`^([^(\[]+)`)
	extrasPattern   = regexp.MustCompile(`(?i)(anniversary|deluxe|live|collector|demo|expanded|remix)`)
	remasterPattern = regexp.MustCompile(`(?i)(re)?master(ed)?`)

	variousArtists = "Various Artists"
)

// NormalizeTitle truncates title at its first "(" or "[" and discards
// everything from there on, then lowercases and trims the remainder,
// matching spec §4.3 and original_source's _essence_re/match.group(1):
// "Midnight (Deluxe) Bonus Tracks" normalizes to "midnight", not
// "midnight  bonus tracks".
func NormalizeTitle(title string) string {
	essence := title

	if m := titleEssence.FindStringSubmatch(title); m != nil {
		essence = m[1]
	}

	return strings.ToLower(strings.TrimSpace(essence))
}

// RequiresBatch reports whether cfg's active filter set needs the full
// sibling set resolved before any filtering can happen (spec §4.3: only
// "repeats" is closed-under-the-full-set).
func RequiresBatch(cfg config.FilterConfig) bool {
	return cfg.Repeats
}

// Apply runs every active predicate from cfg over albums (the full
// sibling set for a single artist/label discography) and returns the
// subset that survives. Ordering follows spec §4.7: repeats first (it
// needs the whole set), then the rest, which commute freely.
func Apply(cfg config.FilterConfig, artistName string, albums []*model.AlbumMetadata) []*model.AlbumMetadata {
	kept := albums

	if cfg.Repeats {
		kept = dropRepeats(kept)
	}

	if cfg.Extras {
		kept = dropExtras(kept)
	}

	if cfg.Features {
		kept = dropFeatures(kept, artistName)
	}

	if cfg.NonStudioAlbums {
		kept = dropNonStudio(kept, artistName)
	}

	if cfg.NonRemaster {
		kept = keepOnlyRemasters(kept)
	}

	return kept
}

// dropRepeats groups albums by NormalizeTitle and keeps, per group, the
// one ranked highest by (explicit desc, samplingRate desc, bitDepth desc).
func dropRepeats(albums []*model.AlbumMetadata) []*model.AlbumMetadata {
	groups := make(map[string][]*model.AlbumMetadata)
	order := make([]string, 0, len(albums))

	for _, a := range albums {
		key := NormalizeTitle(a.Title)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], a)
	}

	result := make([]*model.AlbumMetadata, 0, len(order))

	for _, key := range order {
		result = append(result, winner(groups[key]))
	}

	return result
}

// winner picks the best-ranked album in a repeat group: explicit
// versions beat clean, higher sampling rate beats lower, higher bit
// depth beats lower.
func winner(group []*model.AlbumMetadata) *model.AlbumMetadata {
	best := group[0]

	for _, candidate := range group[1:] {
		if ranksHigher(candidate, best) {
			best = candidate
		}
	}

	return best
}

func ranksHigher(a, b *model.AlbumMetadata) bool {
	if a.Info.Explicit != b.Info.Explicit {
		return a.Info.Explicit
	}

	if a.Info.SamplingRate != b.Info.SamplingRate {
		return a.Info.SamplingRate > b.Info.SamplingRate
	}

	return a.Info.BitDepth > b.Info.BitDepth
}

func dropExtras(albums []*model.AlbumMetadata) []*model.AlbumMetadata {
	return keepWhere(albums, func(a *model.AlbumMetadata) bool {
		return !extrasPattern.MatchString(a.Title)
	})
}

func dropFeatures(albums []*model.AlbumMetadata, artistName string) []*model.AlbumMetadata {
	return keepWhere(albums, func(a *model.AlbumMetadata) bool {
		return a.AlbumArtist == artistName
	})
}

func dropNonStudio(albums []*model.AlbumMetadata, _ string) []*model.AlbumMetadata {
	return keepWhere(albums, func(a *model.AlbumMetadata) bool {
		isExtra := extrasPattern.MatchString(a.Title)

		return !(isExtra && a.AlbumArtist != variousArtists)
	})
}

func keepOnlyRemasters(albums []*model.AlbumMetadata) []*model.AlbumMetadata {
	return keepWhere(albums, func(a *model.AlbumMetadata) bool {
		return remasterPattern.MatchString(a.Title)
	})
}

func keepWhere(albums []*model.AlbumMetadata, pred func(*model.AlbumMetadata) bool) []*model.AlbumMetadata {
	result := make([]*model.AlbumMetadata, 0, len(albums))

	for _, a := range albums {
		if pred(a) {
			result = append(result, a)
		}
	}

	return result
}
