package soundcloudwave

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgrab/internal/config"
	"streamgrab/internal/model"
	"streamgrab/internal/provider"
)

// The remaining Client methods drive a real headless Chrome instance and
// have no network seam to stub, unlike the REST-backed adapters; they are
// exercised end-to-end manually rather than under `go test`. Only the
// credential precondition and the stateless Source method are covered here.

func TestLoginRequiresCredential(t *testing.T) {
	t.Parallel()

	client, err := New(&config.ProviderConfig{})
	require.NoError(t, err)

	err = client.Login(context.Background())
	assert.ErrorIs(t, err, provider.ErrMissingCredentials)
}

func TestSourceReportsSoundcloudWave(t *testing.T) {
	t.Parallel()

	client, err := New(&config.ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, model.SourceSoundcloudWave, client.Source())
}

func TestGetContainerChildrenLabelUnsupported(t *testing.T) {
	t.Parallel()

	client, err := New(&config.ProviderConfig{})
	require.NoError(t, err)

	_, err = client.GetContainerChildren(context.Background(), "l1", model.KindLabel)
	assert.ErrorIs(t, err, provider.ErrKindUnsupported)
}

func TestCloseWithoutBrowserIsNoop(t *testing.T) {
	t.Parallel()

	client, err := New(&config.ProviderConfig{})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
