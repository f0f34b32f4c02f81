// Package metadata implements the engine's metadata store: fetch
// bookkeeping, persisted backoff state for both the fetch handler and the
// realtime stream, and developer-supplied custom signals. Each section is
// independently locked so a reader of one section never blocks on a
// writer of another; all sections are persisted together as one record
// under the "metadata" blob key.
package metadata

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rconfig/engine/internal/backoff"
	"github.com/rconfig/engine/internal/workerpool"
)

const (
	maxCustomSignalKeyBytes   = 250
	maxCustomSignalValueBytes = 500
	maxCustomSignalEntries    = 100
)

// Info is the fetch/activation bookkeeping record. The two backoff states
// live in their own sections below, not here.
type Info struct {
	LastFetchStatus           string
	LastSuccessfulFetchTime   int64
	LastFetchAttemptTime      int64
	LastTemplateVersionNumber int64
	LastFetchETag             string
}

// record is the on-disk shape written to the "metadata" storage slot.
type record struct {
	Info            Info           `msgpack:"info"`
	FetchBackoff    backoff.State  `msgpack:"fetch_backoff"`
	RealtimeBackoff backoff.State  `msgpack:"realtime_backoff"`
	CustomSignals   map[string]any `msgpack:"custom_signals"`
}

// Blob is the narrow persistence seam metadata.Store needs: a durable
// key/value slot it can read the persisted record from and write it to.
// internal/store.BlobStorage (msgpack-encoded, one file per key) is the
// production implementation; tests substitute an in-memory fake.
type Blob interface {
	WriteBlob(key string, v any) error
	ReadBlob(key string, out any) (bool, error)
}

const metadataKey = "metadata"

// Store holds the engine's four metadata sections behind independent
// sync.RWMutexes.
type Store struct {
	blob Blob
	log  zerolog.Logger
	pool *workerpool.Pool

	infoMu sync.RWMutex
	info   Info

	fetchMu    sync.RWMutex
	fetchState backoff.State

	realtimeMu    sync.RWMutex
	realtimeState backoff.State

	signalsMu sync.RWMutex
	signals   map[string]any
}

// New loads a Store from blob, treating a missing record as an empty one.
func New(blob Blob, pool *workerpool.Pool, log zerolog.Logger) (*Store, error) {
	s := &Store{
		blob:    blob,
		log:     log,
		pool:    pool,
		signals: make(map[string]any),
	}

	var rec record
	found, err := blob.ReadBlob(metadataKey, &rec)
	if err != nil {
		return nil, fmt.Errorf("metadata: load: %w", err)
	}
	if found {
		s.info = rec.Info
		s.fetchState = rec.FetchBackoff
		s.realtimeState = rec.RealtimeBackoff
		if rec.CustomSignals != nil {
			s.signals = rec.CustomSignals
		}
	}
	return s, nil
}

// snapshot assembles the persisted record under each section's read lock
// in turn. Sections never share a lock, so a snapshot is not atomic across
// sections; no consumer needs it to be.
func (s *Store) snapshot() record {
	s.infoMu.RLock()
	info := s.info
	s.infoMu.RUnlock()

	s.fetchMu.RLock()
	fetchState := s.fetchState
	s.fetchMu.RUnlock()

	s.realtimeMu.RLock()
	realtimeState := s.realtimeState
	s.realtimeMu.RUnlock()

	s.signalsMu.RLock()
	signals := make(map[string]any, len(s.signals))
	for k, v := range s.signals {
		signals[k] = v
	}
	s.signalsMu.RUnlock()

	return record{
		Info:            info,
		FetchBackoff:    fetchState,
		RealtimeBackoff: realtimeState,
		CustomSignals:   signals,
	}
}

func (s *Store) persist() error {
	return s.blob.WriteBlob(metadataKey, s.snapshot())
}

// Commit persists the current state synchronously, blocking the caller
// until the write completes. Used where the caller needs a durability
// guarantee before proceeding, such as a fetch's metadata update being
// committed before the fetch call returns.
func (s *Store) Commit(ctx context.Context) error {
	return s.persist()
}

// Apply schedules a persist on the shared worker pool and returns
// immediately. Used for updates where losing the last few milliseconds of
// bookkeeping on a crash is acceptable.
func (s *Store) Apply() {
	s.pool.Submit(func() {
		if err := s.persist(); err != nil {
			s.log.Warn().Err(err).Msg("metadata: async persist failed")
		}
	})
}

// Info returns a copy of the fetch/activation bookkeeping record.
func (s *Store) Info() Info {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()
	return s.info
}

// SetInfo replaces the bookkeeping record and commits synchronously.
func (s *Store) SetInfo(ctx context.Context, info Info) error {
	s.infoMu.Lock()
	s.info = info
	s.infoMu.Unlock()
	return s.Commit(ctx)
}

// FetchBackoff returns the fetch handler's persisted backoff state.
func (s *Store) FetchBackoff() backoff.State {
	s.fetchMu.RLock()
	defer s.fetchMu.RUnlock()
	return s.fetchState
}

// SetFetchBackoff replaces the fetch handler's backoff state and commits
// synchronously: the fetch handler must not return to its caller before
// its own throttle is durable.
func (s *Store) SetFetchBackoff(ctx context.Context, state backoff.State) error {
	s.fetchMu.Lock()
	s.fetchState = state
	s.fetchMu.Unlock()
	return s.Commit(ctx)
}

// RealtimeBackoff returns the realtime stream's persisted backoff state.
func (s *Store) RealtimeBackoff() backoff.State {
	s.realtimeMu.RLock()
	defer s.realtimeMu.RUnlock()
	return s.realtimeState
}

// SetRealtimeBackoff replaces the realtime stream's backoff state. Applied
// asynchronously: a missed persist here only costs one extra reconnect
// attempt before the stream's in-memory state catches back up, so it rides
// the shared worker pool rather than blocking the read loop.
func (s *Store) SetRealtimeBackoff(state backoff.State) {
	s.realtimeMu.Lock()
	s.realtimeState = state
	s.realtimeMu.Unlock()
	s.Apply()
}

// CustomSignals returns a copy of the developer-supplied custom signals.
func (s *Store) CustomSignals() map[string]any {
	s.signalsMu.RLock()
	defer s.signalsMu.RUnlock()
	out := make(map[string]any, len(s.signals))
	for k, v := range s.signals {
		out[k] = v
	}
	return out
}

// ErrCustomSignalsInvalid is returned by SetCustomSignals when the update
// would violate a size or count limit. The whole update is rejected; no
// partial merge occurs.
type ErrCustomSignalsInvalid struct {
	Reason string
}

func (e *ErrCustomSignalsInvalid) Error() string {
	return "metadata: custom signals rejected: " + e.Reason
}

// SetCustomSignals merges updates into the custom-signal map. A nil value
// for a key removes that key. The merge is validated as a whole (key <=
// 250 bytes, value <= 500 bytes, <= 100 entries total) before anything is
// applied; a violation rejects the entire update and leaves the existing
// signals untouched.
func (s *Store) SetCustomSignals(ctx context.Context, updates map[string]any) error {
	s.signalsMu.Lock()

	merged := make(map[string]any, len(s.signals)+len(updates))
	for k, v := range s.signals {
		merged[k] = v
	}
	for k, v := range updates {
		if len(k) > maxCustomSignalKeyBytes {
			s.signalsMu.Unlock()
			err := &ErrCustomSignalsInvalid{Reason: fmt.Sprintf("key %q exceeds %d bytes", k, maxCustomSignalKeyBytes)}
			s.log.Warn().Err(err).Msg("metadata: rejecting custom signals update")
			return err
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		if sv, ok := v.(string); ok && len(sv) > maxCustomSignalValueBytes {
			s.signalsMu.Unlock()
			err := &ErrCustomSignalsInvalid{Reason: fmt.Sprintf("value for key %q exceeds %d bytes", k, maxCustomSignalValueBytes)}
			s.log.Warn().Err(err).Msg("metadata: rejecting custom signals update")
			return err
		}
		merged[k] = v
	}
	if len(merged) > maxCustomSignalEntries {
		s.signalsMu.Unlock()
		err := &ErrCustomSignalsInvalid{Reason: fmt.Sprintf("update would grow custom signals to %d entries, limit %d", len(merged), maxCustomSignalEntries)}
		s.log.Warn().Err(err).Msg("metadata: rejecting custom signals update")
		return err
	}

	if signalsEqual(s.signals, merged) {
		s.signalsMu.Unlock()
		return nil
	}

	s.signals = merged
	s.signalsMu.Unlock()
	return s.Commit(ctx)
}

func signalsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || !reflect.DeepEqual(bv, v) {
			return false
		}
	}
	return true
}
