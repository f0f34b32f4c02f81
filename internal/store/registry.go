package store

import (
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Registry interns one *FileStorage per (base directory, slot) pair for
// the lifetime of the owning engine instance. Two callers asking for the
// same slot within one Registry always get back the same handle, which is
// what guarantees one writer per file: the handle's mutex is the single
// serialization point for that file, and it is shared rather than
// re-created per call. The registry is a field on the engine, not
// process-global state, so two engine instances never contend on a
// shared map.
type Registry struct {
	baseDir string
	log     zerolog.Logger

	mu       sync.Mutex
	handles  map[Slot]*FileStorage
	blobs    map[string]*BlobStorage
}

// NewRegistry creates a Registry rooted at baseDir.
func NewRegistry(baseDir string, log zerolog.Logger) *Registry {
	return &Registry{
		baseDir: baseDir,
		log:     log.With().Str("component", "store_registry").Logger(),
		handles: make(map[Slot]*FileStorage),
		blobs:   make(map[string]*BlobStorage),
	}
}

// Blob returns the interned BlobStorage handle for key, creating it on
// first use. Used for non-container persisted values, such as the
// metadata store's single record.
func (r *Registry) Blob(key string) *BlobStorage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.blobs[key]; ok {
		return h
	}

	h := &BlobStorage{
		path: filepath.Join(r.baseDir, key+".bin"),
		mu:   &sync.Mutex{},
		log:  r.log.With().Str("blob", key).Logger(),
	}
	r.blobs[key] = h
	return h
}

// Storage returns the interned Storage handle for slot, creating it on
// first use.
func (r *Registry) Storage(slot Slot) Storage {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[slot]; ok {
		return h
	}

	h := &FileStorage{
		path: filepath.Join(r.baseDir, string(slot)+".bin"),
		mu:   &sync.Mutex{},
		log:  r.log.With().Str("slot", string(slot)).Logger(),
	}
	r.handles[slot] = h
	return h
}
