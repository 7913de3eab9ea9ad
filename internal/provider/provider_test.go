package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/model"
)

type stubClient struct {
	source model.Source
}

func (s stubClient) Source() model.Source { return s.source }
func (s stubClient) Login(context.Context) error { return nil }
func (s stubClient) GetMetadata(context.Context, string, model.Kind) (any, error) { return nil, nil }
func (s stubClient) GetDownloadable(context.Context, string, model.Quality, bool) (model.Downloadable, error) {
	return nil, nil
}
func (s stubClient) Search(context.Context, model.Kind, string, int) ([]Page, error) { return nil, nil }
func (s stubClient) GetUserFavorites(context.Context, model.Kind, string) (FavoritesResponse, error) {
	return FavoritesResponse{}, nil
}
func (s stubClient) GetContainerChildren(context.Context, string, model.Kind) ([]string, error) {
	return nil, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(stubClient{source: model.SourceQobuzStream})

	c, err := r.Get(model.SourceQobuzStream)
	require.NoError(t, err)
	assert.Equal(t, model.SourceQobuzStream, c.Source())
}

func TestRegistryGetUnknownSource(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	_, err := r.Get(model.SourceTidalFlow)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestErrNotStreamableWrapsModelSentinel(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.Is(ErrNotStreamable, model.ErrNotStreamable))
}
