package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// BlobStorage is a generic, interned, mutex-serialized file slot for
// values that aren't a container.Container, today the metadata store's
// single "metadata" record. It shares FileStorage's non-atomic-write,
// absent-on-corruption contract.
type BlobStorage struct {
	path string
	mu   *sync.Mutex
	log  zerolog.Logger
}

// WriteBlob marshals v with msgpack and durably replaces the key's file.
func (b *BlobStorage) WriteBlob(key string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode blob %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir for blob %s: %w", key, err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("store: write blob %s: %w", key, err)
	}
	b.log.Debug().Str("path", b.path).Int("bytes", len(data)).Msg("blob write")
	return nil
}

// ReadBlob unmarshals the key's file into out, returning found=false if
// the file is absent or corrupt (logged at Warn, not returned as an
// error, matching FileStorage.Read's absent-on-corruption contract).
func (b *BlobStorage) ReadBlob(key string, out any) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("store: read blob %s: %w", key, err)
	}

	if err := msgpack.Unmarshal(data, out); err != nil {
		b.log.Warn().Err(err).Str("path", b.path).Msg("blob: corrupt value treated as absent")
		return false, nil
	}
	return true, nil
}
