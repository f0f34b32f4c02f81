// Package remoteconfig is the public facade of the remote configuration
// engine. A RemoteConfig instance owns the three container caches, the
// fetch handler, the realtime stream controller, the parameter resolver
// and the rollouts publisher, and exposes the typed lookup and lifecycle
// API the host application embeds.
package remoteconfig

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rconfig/engine/internal/cache"
	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/diff"
	"github.com/rconfig/engine/internal/fetch"
	"github.com/rconfig/engine/internal/metadata"
	"github.com/rconfig/engine/internal/realtime"
	"github.com/rconfig/engine/internal/resolver"
	"github.com/rconfig/engine/internal/rollouts"
	"github.com/rconfig/engine/internal/workerpool"
)

// FetchStatus mirrors the fetch handler's outcome for facade callers.
type FetchStatus = fetch.Status

// Re-exported fetch outcomes.
const (
	BackendUpdatesFetched = fetch.BackendUpdatesFetched
	BackendHasNoUpdates   = fetch.BackendHasNoUpdates
	LocalStorageUsed      = fetch.LocalStorageUsed
)

// ConfigUpdate describes one observed parameter-set change, delivered to
// config-update listeners after a realtime-triggered fetch lands.
type ConfigUpdate struct {
	// UpdatedKeys is the set of parameter keys whose value, metadata or
	// experiment membership differs between the activated and the newly
	// fetched container.
	UpdatedKeys []string
}

// ConfigUpdateListener receives realtime config updates and stream errors.
type ConfigUpdateListener interface {
	OnUpdate(update ConfigUpdate)
	OnError(err error)
}

// ListenerRegistration undoes one AddOnConfigUpdateListener call.
type ListenerRegistration struct {
	remove func()
	once   sync.Once
}

// Remove deregisters the listener. Removing the last one stops the
// realtime stream. Remove is idempotent.
func (r *ListenerRegistration) Remove() {
	r.once.Do(r.remove)
}

// Params carries the wired components a RemoteConfig is assembled from.
// All fields are required unless noted.
type Params struct {
	Activated *cache.Cache
	Fetched   *cache.Cache
	Defaults  *cache.Cache

	Fetcher  *fetch.Handler
	Realtime *realtime.Controller // optional; nil disables realtime
	Meta     *metadata.Store
	Rollouts *rollouts.Publisher
	Pool     *workerpool.Pool

	// MinimumFetchInterval is read per Fetch call so hot-reloaded values
	// take effect without restarting the engine.
	MinimumFetchInterval func() time.Duration

	Log zerolog.Logger
}

// RemoteConfig is the embeddable engine facade.
type RemoteConfig struct {
	activated *cache.Cache
	fetched   *cache.Cache
	defaults  *cache.Cache

	fetcher  *fetch.Handler
	realtime *realtime.Controller
	meta     *metadata.Store
	rollouts *rollouts.Publisher
	resolver *resolver.Resolver
	pool     *workerpool.Pool

	minInterval func() time.Duration
	log         zerolog.Logger

	closeOnce sync.Once
}

// New assembles a RemoteConfig from already-constructed components and
// wires the resolver's activated-lookup listener into personalization
// logging.
func New(p Params) *RemoteConfig {
	rc := &RemoteConfig{
		activated:   p.Activated,
		fetched:     p.Fetched,
		defaults:    p.Defaults,
		fetcher:     p.Fetcher,
		realtime:    p.Realtime,
		meta:        p.Meta,
		rollouts:    p.Rollouts,
		pool:        p.Pool,
		minInterval: p.MinimumFetchInterval,
		log:         p.Log,
	}
	if rc.minInterval == nil {
		rc.minInterval = func() time.Duration { return 12 * time.Hour }
	}

	rc.resolver = resolver.New(
		func() *container.Container { return rc.activated.GetBlocking(context.Background(), 0) },
		func() *container.Container { return rc.defaults.GetBlocking(context.Background(), 0) },
		p.Pool, p.Log,
	)
	rc.resolver.AddListener(rc.rollouts.LogPersonalizationIfNew)
	return rc
}

// Fetch consults the backend if the configured minimum fetch interval has
// elapsed, returning the fetch outcome. The fetched values are not
// visible to lookups until Activate is called.
func (rc *RemoteConfig) Fetch(ctx context.Context) (fetch.Response, error) {
	return rc.FetchWithInterval(ctx, rc.minInterval())
}

// FetchWithInterval is Fetch with an explicit minimum-interval override;
// zero forces a backend consultation (still subject to backoff).
func (rc *RemoteConfig) FetchWithInterval(ctx context.Context, minInterval time.Duration) (fetch.Response, error) {
	return rc.fetcher.Fetch(ctx, fetch.Options{MinInterval: minInterval})
}

// Activate makes the most recently fetched container visible to lookups.
// It returns false without touching the activated slot when there is
// nothing fetched, or when the fetched container is identical to the one
// already activated.
func (rc *RemoteConfig) Activate(ctx context.Context) (bool, error) {
	fetched, err := rc.fetched.Get(ctx)
	if err != nil {
		return false, err
	}
	if fetched == nil {
		return false, nil
	}

	current, err := rc.activated.Get(ctx)
	if err != nil {
		return false, err
	}
	if current != nil && fetched.Equal(current) {
		return false, nil
	}

	if err := rc.activated.Put(ctx, fetched, true); err != nil {
		return false, err
	}

	info := rc.meta.Info()
	if v := fetched.TemplateVersion(); v > info.LastTemplateVersionNumber {
		info.LastTemplateVersionNumber = v
		if err := rc.meta.SetInfo(ctx, info); err != nil {
			rc.log.Warn().Err(err).Msg("remoteconfig: failed to persist activated template version")
		}
	}

	rc.rollouts.PublishActivated(fetched)
	return true, nil
}

// FetchAndActivate is the Fetch-then-Activate convenience: it reports
// whether an activation made new values visible.
func (rc *RemoteConfig) FetchAndActivate(ctx context.Context) (bool, error) {
	if _, err := rc.Fetch(ctx); err != nil {
		return false, err
	}
	return rc.Activate(ctx)
}

// SetDefaults replaces the defaults container with the given key/value
// map. Defaults participate in lookups immediately.
func (rc *RemoteConfig) SetDefaults(ctx context.Context, values map[string]string) error {
	cont := container.NewBuilder().WithConfigs(values).Build()
	return rc.defaults.Put(ctx, cont, true)
}

// SetDefaultsFromFile loads a flat key/value YAML resource into the
// defaults container. Scalar values of any YAML type are stored as their
// string form, which the typed getters coerce on lookup.
func (rc *RemoteConfig) SetDefaultsFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("remoteconfig: read defaults resource: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("remoteconfig: parse defaults resource %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			values[k] = ""
			continue
		}
		values[k] = fmt.Sprint(v)
	}
	return rc.SetDefaults(ctx, values)
}

// SetCustomSignals merges developer-defined signals into the persisted
// custom-signal map; a nil map value removes that key.
func (rc *RemoteConfig) SetCustomSignals(ctx context.Context, signals map[string]any) error {
	return rc.meta.SetCustomSignals(ctx, signals)
}

// GetString resolves key through activated, then defaults, then "".
func (rc *RemoteConfig) GetString(key string) string { return rc.resolver.GetString(key) }

// GetBoolean resolves key with fall-through boolean coercion.
func (rc *RemoteConfig) GetBoolean(key string) bool { return rc.resolver.GetBoolean(key) }

// GetLong resolves key with fall-through integer coercion.
func (rc *RemoteConfig) GetLong(key string) int64 { return rc.resolver.GetLong(key) }

// GetDouble resolves key with fall-through float coercion.
func (rc *RemoteConfig) GetDouble(key string) float64 { return rc.resolver.GetDouble(key) }

// GetByteArray resolves key to the UTF-8 bytes of its string value.
func (rc *RemoteConfig) GetByteArray(key string) []byte { return rc.resolver.GetByteArray(key) }

// GetValue resolves key to an opaque, source-tagged value.
func (rc *RemoteConfig) GetValue(key string) resolver.Value { return rc.resolver.GetValue(key) }

// GetKeysByPrefix lists matching keys across activated and defaults in
// ascending lexicographic order.
func (rc *RemoteConfig) GetKeysByPrefix(prefix string) []string {
	return rc.resolver.GetKeysByPrefix(prefix)
}

// GetAll resolves every key across activated and defaults via GetValue.
func (rc *RemoteConfig) GetAll() map[string]resolver.Value { return rc.resolver.GetAll() }

// Info returns the fetch bookkeeping record (last status, timestamps,
// template version, ETag).
func (rc *RemoteConfig) Info() metadata.Info { return rc.meta.Info() }

// listenerAdapter bridges a ConfigUpdateListener onto the realtime
// controller's listener contract, computing the changed-key set when an
// update event fires.
type listenerAdapter struct {
	rc       *RemoteConfig
	delegate ConfigUpdateListener
}

func (a *listenerAdapter) OnEvent() {
	ctx := context.Background()
	activated, _ := a.rc.activated.Get(ctx)
	fetched, _ := a.rc.fetched.Get(ctx)

	changed := diff.Changed(activated, fetched)
	keys := make([]string, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	a.delegate.OnUpdate(ConfigUpdate{UpdatedKeys: keys})
}

func (a *listenerAdapter) OnError(err error) {
	a.delegate.OnError(err)
}

// AddOnConfigUpdateListener registers a realtime config-update listener.
// The first registered listener starts the background stream; removing
// the last one stops it. Returns nil when realtime is disabled.
func (rc *RemoteConfig) AddOnConfigUpdateListener(l ConfigUpdateListener) *ListenerRegistration {
	if rc.realtime == nil {
		rc.log.Warn().Msg("remoteconfig: realtime disabled, config update listener ignored")
		return nil
	}
	adapter := &listenerAdapter{rc: rc, delegate: l}
	rc.realtime.AddListener(adapter)
	return &ListenerRegistration{remove: func() { rc.realtime.RemoveListener(adapter) }}
}

// AddRolloutsStateSubscriber registers a rollouts-state subscriber. The
// subscriber immediately receives one synthetic publication reflecting
// the current activated container, if any.
func (rc *RemoteConfig) AddRolloutsStateSubscriber(s rollouts.Subscriber) {
	current := rc.activated.GetBlocking(context.Background(), 0)
	rc.rollouts.AddSubscriber(s, current)
}

// RemoveRolloutsStateSubscriber deregisters a rollouts-state subscriber.
func (rc *RemoteConfig) RemoveRolloutsStateSubscriber(s rollouts.Subscriber) {
	rc.rollouts.RemoveSubscriber(s)
}

// Close tears the engine down: the realtime stream first (closing its
// HTTP connection unblocks the read loop), then the worker pool, then
// the caches. Close is idempotent.
func (rc *RemoteConfig) Close() error {
	rc.closeOnce.Do(func() {
		if rc.realtime != nil {
			rc.realtime.Stop()
		}
		rc.pool.Stop()
		_ = rc.activated.Close()
		_ = rc.fetched.Close()
		_ = rc.defaults.Close()
	})
	return nil
}
