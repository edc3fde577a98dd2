package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	memorypublisher "github.com/newsgrab/newsgrab/internal/publisher/memory"
	memorystore "github.com/newsgrab/newsgrab/internal/storage/memory"
)

func TestNewWithDefaultsWiresInMemoryBackends(t *testing.T) {
	a, err := New(t.Context(), "")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.IsType(t, &memorystore.Store{}, a.Store)
	require.IsType(t, &memorypublisher.Publisher{}, a.Pub)
	require.NotNil(t, a.Blobs)
	require.NotNil(t, a.Fetcher)
	require.NotNil(t, a.Selector)

	// Headless rendering is off by default.
	require.Nil(t, a.Renderer)
	require.Nil(t, a.Detector)
}

func TestAppBuildsPipelineComponents(t *testing.T) {
	a, err := New(t.Context(), "")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.Router())

	substrate := a.Substrate()
	require.NotNil(t, substrate)
	require.NotNil(t, a.Orchestrator(substrate))
	require.NotNil(t, a.APIServer(nil))
}

func TestNewFailsOnMissingConfigFile(t *testing.T) {
	_, err := New(t.Context(), t.TempDir()+"/missing.yaml")
	require.Error(t, err)
}
