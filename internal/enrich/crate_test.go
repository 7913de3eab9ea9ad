package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"streamgrab/internal/config"
	"streamgrab/internal/model"
)

func TestEnrichNilResultIsNoop(t *testing.T) {
	t.Parallel()

	album := &model.AlbumMetadata{Genres: []string{"rock"}}
	Enrich(context.Background(), album, nil, config.GenreModeReplace)

	assert.Equal(t, []string{"rock"}, album.Genres)
}

func TestEnrichReplaceGenres(t *testing.T) {
	t.Parallel()

	album := &model.AlbumMetadata{Genres: []string{"rock"}}
	Enrich(context.Background(), album, &Lookup{Genres: []string{"shoegaze", "dream pop"}}, config.GenreModeReplace)

	assert.Equal(t, []string{"shoegaze", "dream pop"}, album.Genres)
}

func TestEnrichReplaceWithEmptyGenresKeepsOriginal(t *testing.T) {
	t.Parallel()

	album := &model.AlbumMetadata{Genres: []string{"rock"}}
	Enrich(context.Background(), album, &Lookup{Genres: nil}, config.GenreModeReplace)

	assert.Equal(t, []string{"rock"}, album.Genres)
}

func TestEnrichAppendDedupesAndPreservesOrder(t *testing.T) {
	t.Parallel()

	album := &model.AlbumMetadata{Genres: []string{"rock", "shoegaze"}}
	Enrich(context.Background(), album, &Lookup{Genres: []string{"shoegaze", "dream pop"}}, config.GenreModeAppend)

	assert.Equal(t, []string{"rock", "shoegaze", "dream pop"}, album.Genres)
}

func TestEnrichMergesDescriptorsUnconditionally(t *testing.T) {
	t.Parallel()

	album := &model.AlbumMetadata{}
	Enrich(context.Background(), album, &Lookup{Descriptors: []string{"atmospheric", "lush"}}, config.GenreModeReplace)

	assert.Equal(t, []string{"atmospheric", "lush"}, album.RYMDescriptors)
}
