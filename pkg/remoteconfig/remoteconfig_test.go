package remoteconfig_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/rconfig/engine/internal/cache"
	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/fetch"
	"github.com/rconfig/engine/internal/metadata"
	"github.com/rconfig/engine/internal/rollouts"
	"github.com/rconfig/engine/internal/store"
	"github.com/rconfig/engine/internal/workerpool"
	"github.com/rconfig/engine/pkg/remoteconfig"
)

type staticInstallation struct{}

func (staticInstallation) InstallationID(context.Context) (string, error) {
	return "install-1", nil
}

func (staticInstallation) Token(context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "tok"}, nil
}

func newEngine(t *testing.T, backendURL string) *remoteconfig.RemoteConfig {
	t.Helper()

	log := zerolog.Nop()
	reg := store.NewRegistry(t.TempDir(), log)
	pool := workerpool.New(2)

	activated := cache.New(reg.Storage(store.SlotActivated), log)
	fetched := cache.New(reg.Storage(store.SlotFetched), log)
	defaults := cache.New(reg.Storage(store.SlotDefaults), log)

	meta, err := metadata.New(reg.Blob("metadata"), pool, log)
	require.NoError(t, err)

	handler := fetch.New(
		fetch.Endpoint{URL: backendURL, APIKey: "key"},
		http.DefaultClient,
		staticInstallation{},
		nil,
		fetched,
		meta,
		nil,
		time.Second,
		log,
	)

	engine := remoteconfig.New(remoteconfig.Params{
		Activated:            activated,
		Fetched:              fetched,
		Defaults:             defaults,
		Fetcher:              handler,
		Meta:                 meta,
		Rollouts:             rollouts.New(pool, nil, log),
		Pool:                 pool,
		MinimumFetchInterval: func() time.Duration { return 0 },
		Log:                  log,
	})
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestRemoteConfig_WarmPathLayering(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, "http://unused.invalid")

	require.NoError(t, engine.SetDefaults(ctx, map[string]string{
		"greeting": "hi",
		"lang":     "en",
	}))

	// Seed an activated container in a second engine by fetching an update
	// from a stub backend and activating it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"UPDATE","entries":{"greeting":"hello"}}`))
	}))
	defer srv.Close()

	engine2 := newEngine(t, srv.URL)
	require.NoError(t, engine2.SetDefaults(ctx, map[string]string{
		"greeting": "hi",
		"lang":     "en",
	}))

	activatedNow, err := engine2.FetchAndActivate(ctx)
	require.NoError(t, err)
	assert.True(t, activatedNow)

	assert.Equal(t, "hello", engine2.GetString("greeting"))
	assert.Equal(t, "en", engine2.GetString("lang"))
	assert.Equal(t, "", engine2.GetString("missing"))

	// engine without any activation serves pure defaults.
	assert.Equal(t, "hi", engine.GetString("greeting"))
}

func TestRemoteConfig_ActivateIsNoopWithoutFetch(t *testing.T) {
	engine := newEngine(t, "http://unused.invalid")

	activated, err := engine.Activate(context.Background())
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestRemoteConfig_ActivateDedupesIdenticalContainer(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"UPDATE","entries":{"a":"1"}}`))
	}))
	defer srv.Close()

	engine := newEngine(t, srv.URL)

	first, err := engine.FetchAndActivate(ctx)
	require.NoError(t, err)
	assert.True(t, first)

	// Same entries fetched again: nothing new to activate.
	second, err := engine.FetchAndActivate(ctx)
	require.NoError(t, err)
	assert.False(t, second)
}

type stateRecorder struct {
	states chan *container.Container
}

func (s *stateRecorder) OnRolloutsStateChanged(c *container.Container) {
	s.states <- c
}

func TestRemoteConfig_RolloutsSubscriberSeesActivation(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"UPDATE","entries":{"a":"1","b":"3","c":"4"}}`))
	}))
	defer srv.Close()

	engine := newEngine(t, srv.URL)

	rec := &stateRecorder{states: make(chan *container.Container, 4)}
	engine.AddRolloutsStateSubscriber(rec)

	// No activated container yet: no synthetic publication to wait for.
	_, err := engine.FetchAndActivate(ctx)
	require.NoError(t, err)

	select {
	case state := <-rec.states:
		assert.Equal(t, "3", state.Configs()["b"])
		assert.Equal(t, "4", state.Configs()["c"])
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not observe the activation")
	}
}

func TestRemoteConfig_SetDefaultsFromFile(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, "http://unused.invalid")

	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting: hi\nretries: 3\nenabled: true\n"), 0o644))

	require.NoError(t, engine.SetDefaultsFromFile(ctx, path))

	assert.Equal(t, "hi", engine.GetString("greeting"))
	assert.EqualValues(t, 3, engine.GetLong("retries"))
	assert.True(t, engine.GetBoolean("enabled"))

	require.Error(t, engine.SetDefaultsFromFile(ctx, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestRemoteConfig_GetAllAndPrefixListing(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, "http://unused.invalid")

	require.NoError(t, engine.SetDefaults(ctx, map[string]string{
		"feature_a": "on",
		"feature_b": "off",
		"timeout":   "30",
	}))

	keys := engine.GetKeysByPrefix("feature_")
	assert.Equal(t, []string{"feature_a", "feature_b"}, keys)

	all := engine.GetAll()
	assert.Len(t, all, 3)
	v, err := all["timeout"].AsLong()
	require.NoError(t, err)
	assert.EqualValues(t, 30, v)
}
