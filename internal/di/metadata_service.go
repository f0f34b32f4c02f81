package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/metadata"
)

// MetadataService wraps the persisted metadata store.
type MetadataService struct {
	Store *metadata.Store
}

// NewMetadata loads the metadata store from its blob slot.
func NewMetadata(i do.Injector) (*MetadataService, error) {
	storageSvc := do.MustInvoke[*StorageService](i)
	poolSvc := do.MustInvoke[*ConcurrencyService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	s, err := metadata.New(storageSvc.Registry.Blob("metadata"), poolSvc.Pool, *logSvc.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata store: %w", err)
	}
	return &MetadataService{Store: s}, nil
}
