// Package store provides the synchronous, file-backed persistence layer for
// parameter containers and the per-slot handle registry that guarantees one
// writer per file within a single engine instance.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rconfig/engine/internal/container"
)

// Slot identifies one of the three container slots the engine persists.
type Slot string

// The three cache slots the engine binds 1:1 to a storage handle.
const (
	SlotActivated Slot = "activated"
	SlotFetched   Slot = "fetched"
	SlotDefaults  Slot = "defaults"
)

// Storage exposes the three operations available on a named slot. A Read that finds no file, or a file that fails to decode, is not
// an error: it returns (nil, nil) and the caller treats that exactly like
// "never fetched". Writes are non-atomic at this layer; callers tolerate a
// half-written file as equivalent to absent and refetch at the next
// opportunity.
type Storage interface {
	Write(c *container.Container) error
	Read() (*container.Container, error)
	Clear() error
}

// record is the on-disk shape. The byte format is opaque to everything
// above this package; msgpack is an implementation convenience, not a
// contract.
type record struct {
	Configs                 map[string]string                            `msgpack:"configs"`
	FetchTimeUnixMilli      int64                                        `msgpack:"fetch_time_ms"`
	TemplateVersion         int64                                        `msgpack:"template_version"`
	ExperimentDescriptions  []container.ExperimentDescriptor             `msgpack:"experiments,omitempty"`
	PersonalizationMetadata map[string]container.PersonalizationMetadata `msgpack:"personalization,omitempty"`
}

// FileStorage persists one opaque blob per slot under a base directory.
// Writes within a single FileStorage instance are serialized by the
// Registry that constructed it.
type FileStorage struct {
	path string
	mu   *sync.Mutex
	log  zerolog.Logger
}

// Write durably replaces the slot's blob with c. Write is non-atomic: a
// process crash mid-write can leave a truncated file, which the next Read
// reports as "no container" rather than surfacing an error.
func (s *FileStorage) Write(c *container.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := toRecord(c)
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", s.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for %s: %w", s.path, err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}

	s.log.Debug().Str("path", s.path).Int("bytes", len(data)).Msg("storage write")
	return nil
}

// Read returns the persisted container, or (nil, nil) if the file is
// absent or cannot be decoded. A malformed file is logged at Warn and
// treated as equivalent to absent.
func (s *FileStorage) Read() (*container.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}

	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("storage: corrupt blob treated as absent")
		return nil, nil
	}

	return fromRecord(rec), nil
}

// Clear removes the slot's blob. Removing an already-absent file is not an
// error.
func (s *FileStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: clear %s: %w", s.path, err)
	}
	s.log.Debug().Str("path", s.path).Msg("storage cleared")
	return nil
}

func toRecord(c *container.Container) record {
	if c == nil {
		c = &container.Empty
	}
	return record{
		Configs:                 c.Configs(),
		FetchTimeUnixMilli:      c.FetchTime().UnixMilli(),
		TemplateVersion:         c.TemplateVersion(),
		ExperimentDescriptions:  c.ExperimentDescriptions(),
		PersonalizationMetadata: c.PersonalizationMap(),
	}
}

func fromRecord(rec record) *container.Container {
	b := container.NewBuilder().
		WithConfigs(rec.Configs).
		WithTemplateVersion(rec.TemplateVersion).
		WithExperimentDescriptions(rec.ExperimentDescriptions).
		WithPersonalizationMetadata(rec.PersonalizationMetadata)
	if rec.FetchTimeUnixMilli > 0 {
		b.WithFetchTime(time.UnixMilli(rec.FetchTimeUnixMilli))
	}
	return b.Build()
}
