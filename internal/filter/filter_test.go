package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"streamgrab/internal/config"
	"streamgrab/internal/model"
)

func album(title, artist string, explicit bool, samplingRate uint32, bitDepth uint8) *model.AlbumMetadata {
	return &model.AlbumMetadata{
		Title:       title,
		AlbumArtist: artist,
		Info: model.AlbumInfo{
			Explicit:     explicit,
			SamplingRate: samplingRate,
			BitDepth:     bitDepth,
		},
	}
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "my album", NormalizeTitle("My Album (Deluxe Edition)"))
	assert.Equal(t, "my album", NormalizeTitle("My Album [Remastered]"))
	assert.Equal(t, "my album", NormalizeTitle("  My Album  "))
}

func TestNormalizeTitleTruncatesAtFirstBracketAndDropsTrailingText(t *testing.T) {
	t.Parallel()

	// Everything after the first "(" or "[" is discarded, not just the
	// bracketed span itself, so this groups with a same-named "Midnight"
	// release under dropRepeats.
	assert.Equal(t, "midnight", NormalizeTitle("Midnight (Deluxe) Bonus Tracks"))
	assert.Equal(t, "midnight", NormalizeTitle("Midnight"))
}

func TestDropRepeatsPicksWinner(t *testing.T) {
	t.Parallel()

	albums := []*model.AlbumMetadata{
		album("Good Album", "Artist", false, 44100, 16),
		album("Good Album (Explicit)", "Artist", true, 44100, 16),
		album("Good Album (Hi-Res)", "Artist", false, 96000, 24),
	}

	result := dropRepeats(albums)
	assert.Len(t, result, 1)
	assert.True(t, result[0].Info.Explicit, "explicit should win over non-explicit at equal sampling/bit-depth")
}

func TestDropRepeatsPrefersHigherSamplingRate(t *testing.T) {
	t.Parallel()

	albums := []*model.AlbumMetadata{
		album("Album", "Artist", false, 44100, 16),
		album("Album (Remastered)", "Artist", false, 96000, 24),
	}

	result := dropRepeats(albums)
	require := assert.New(t)
	require.Len(result, 1)
	require.Equal(uint32(96000), result[0].Info.SamplingRate)
}

func TestApplyExtras(t *testing.T) {
	t.Parallel()

	albums := []*model.AlbumMetadata{
		album("Studio Album", "Artist", false, 44100, 16),
		album("Studio Album (Deluxe Edition)", "Artist", false, 44100, 16),
		album("Live at Wembley", "Artist", false, 44100, 16),
	}

	cfg := config.FilterConfig{Extras: true}
	result := Apply(cfg, "Artist", albums)

	assert.Len(t, result, 1)
	assert.Equal(t, "Studio Album", result[0].Title)
}

func TestApplyFeatures(t *testing.T) {
	t.Parallel()

	albums := []*model.AlbumMetadata{
		album("Solo Album", "Artist", false, 44100, 16),
		album("Collab Album", "Artist feat. Someone Else", false, 44100, 16),
	}

	cfg := config.FilterConfig{Features: true}
	result := Apply(cfg, "Artist", albums)

	assert.Len(t, result, 1)
	assert.Equal(t, "Solo Album", result[0].Title)
}

func TestApplyNonStudioAlbums(t *testing.T) {
	t.Parallel()

	albums := []*model.AlbumMetadata{
		album("Studio Album", "Artist", false, 44100, 16),
		album("Live Album", "Artist", false, 44100, 16),
		album("Various Artists Live Compilation", variousArtists, false, 44100, 16),
	}

	cfg := config.FilterConfig{NonStudioAlbums: true}
	result := Apply(cfg, "Artist", albums)

	titles := make([]string, len(result))
	for i, a := range result {
		titles[i] = a.Title
	}

	assert.ElementsMatch(t, []string{"Studio Album", "Various Artists Live Compilation"}, titles)
}

func TestApplyNonRemaster(t *testing.T) {
	t.Parallel()

	albums := []*model.AlbumMetadata{
		album("Album (Remastered)", "Artist", false, 44100, 16),
		album("Album Master", "Artist", false, 44100, 16),
		album("Original Album", "Artist", false, 44100, 16),
	}

	cfg := config.FilterConfig{NonRemaster: true}
	result := Apply(cfg, "Artist", albums)

	assert.Len(t, result, 2)
}

func TestRequiresBatch(t *testing.T) {
	t.Parallel()

	assert.True(t, RequiresBatch(config.FilterConfig{Repeats: true}))
	assert.False(t, RequiresBatch(config.FilterConfig{Extras: true}))
}
