package resolver_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/resolver"
	"github.com/rconfig/engine/internal/workerpool"
)

func containers(activated, defaults map[string]string) (func() *container.Container, func() *container.Container) {
	var act, def *container.Container
	if activated != nil {
		act = container.NewBuilder().WithConfigs(activated).Build()
	}
	if defaults != nil {
		def = container.NewBuilder().WithConfigs(defaults).Build()
	}
	return func() *container.Container { return act }, func() *container.Container { return def }
}

func TestResolver_CacheWarmPath(t *testing.T) {
	activated, defaults := containers(
		map[string]string{"greeting": "hello"},
		map[string]string{"greeting": "hi", "lang": "en"},
	)
	pool := workerpool.New(1)
	defer pool.Stop()
	r := resolver.New(activated, defaults, pool, zerolog.Nop())

	assert.Equal(t, "hello", r.GetString("greeting"))
	assert.Equal(t, "en", r.GetString("lang"))
	assert.Equal(t, "", r.GetString("missing"))
}

func TestResolver_BooleanCoercionTotality(t *testing.T) {
	activated, defaults := containers(map[string]string{
		"a": "true", "b": "YES", "c": "0", "d": "off", "e": "maybe",
	}, nil)
	pool := workerpool.New(1)
	defer pool.Stop()
	r := resolver.New(activated, defaults, pool, zerolog.Nop())

	assert.True(t, r.GetBoolean("a"))
	assert.True(t, r.GetBoolean("b"))
	assert.False(t, r.GetBoolean("c"))
	assert.False(t, r.GetBoolean("d"))
	assert.False(t, r.GetBoolean("e"))
}

func TestResolver_GetValueStaticSourceIgnoresRaw(t *testing.T) {
	activated, defaults := containers(nil, nil)
	pool := workerpool.New(1)
	defer pool.Stop()
	r := resolver.New(activated, defaults, pool, zerolog.Nop())

	v := r.GetValue("missing")
	assert.Equal(t, resolver.SourceStatic, v.Source())
	assert.Equal(t, "", v.AsString())
	b, err := v.AsBoolean()
	require.NoError(t, err)
	assert.False(t, b)
}

func TestResolver_GetValueCoercionFailureIsInvalidArgument(t *testing.T) {
	activated, defaults := containers(map[string]string{"k": "not-a-number"}, nil)
	pool := workerpool.New(1)
	defer pool.Stop()
	r := resolver.New(activated, defaults, pool, zerolog.Nop())

	v := r.GetValue("k")
	_, err := v.AsLong()
	assert.Error(t, err)
}

func TestResolver_GetKeysByPrefixOrderedNoDuplicates(t *testing.T) {
	activated, defaults := containers(
		map[string]string{"feature_b": "1", "feature_a": "1"},
		map[string]string{"feature_a": "0", "other": "1"},
	)
	pool := workerpool.New(1)
	defer pool.Stop()
	r := resolver.New(activated, defaults, pool, zerolog.Nop())

	keys := r.GetKeysByPrefix("feature_")
	assert.Equal(t, []string{"feature_a", "feature_b"}, keys)
}

func TestResolver_ListenerFiresOnActivatedLookup(t *testing.T) {
	activated, defaults := containers(map[string]string{"k": "v"}, nil)
	pool := workerpool.New(1)
	defer pool.Stop()
	r := resolver.New(activated, defaults, pool, zerolog.Nop())

	notified := make(chan string, 1)
	r.AddListener(func(key string, _ *container.Container) {
		notified <- key
	})

	r.GetString("k")

	select {
	case k := <-notified:
		assert.Equal(t, "k", k)
	case <-time.After(time.Second):
		t.Fatal("listener was not invoked")
	}
}
