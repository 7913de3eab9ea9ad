package deezerbeam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/config"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
)

func newTestClient(t *testing.T, apiHandler http.HandlerFunc) *Client {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok"})
	}))
	t.Cleanup(tokenServer.Close)

	apiServer := httptest.NewServer(apiHandler)
	t.Cleanup(apiServer.Close)

	client := newWithURLs(&config.ProviderConfig{AppID: "id", Credential: "arl"}, apiServer.URL, tokenServer.URL)
	require.NoError(t, client.Login(context.Background()))

	return client
}

func TestLoginRequiresCredential(t *testing.T) {
	t.Parallel()

	client := newWithURLs(&config.ProviderConfig{}, "http://example.invalid", "http://example.invalid/token")
	err := client.Login(context.Background())
	assert.ErrorIs(t, err, provider.ErrMissingCredentials)
}

func TestGetMetadataTrackNotReadable(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(trackPayload{ID: "t1", Readable: false})
	})

	_, err := client.GetMetadata(context.Background(), "t1", model.KindTrack)
	assert.ErrorIs(t, err, provider.ErrNotStreamable)
}

func TestGetMetadataAlbumReadable(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(albumPayload{ID: "a1", Title: "Album", Readable: true})
	})

	raw, err := client.GetMetadata(context.Background(), "a1", model.KindAlbum)
	require.NoError(t, err)
	assert.Equal(t, "Album", raw.(*albumPayload).Title)
}

func TestGetDownloadableRetriesOnceThenFails(t *testing.T) {
	t.Parallel()

	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.GetDownloadable(context.Background(), "t1", model.Quality1, false)
	assert.ErrorIs(t, err, provider.ErrNotStreamable)
	assert.Equal(t, 2, attempts)
}

func TestGetContainerChildrenAlbumTracks(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": 111}, {"id": 222}},
		})
	})

	ids, err := client.GetContainerChildren(context.Background(), "a1", model.KindAlbum)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, ids)
}

func TestGetContainerChildrenLabelUnsupported(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not make a request for an unsupported kind")
	})

	_, err := client.GetContainerChildren(context.Background(), "l1", model.KindLabel)
	assert.ErrorIs(t, err, provider.ErrKindUnsupported)
}

func TestSourceReportsDeezerBeam(t *testing.T) {
	t.Parallel()

	client := newWithURLs(&config.ProviderConfig{}, "http://example.invalid", "http://example.invalid/token")
	assert.Equal(t, model.SourceDeezerBeam, client.Source())
}
