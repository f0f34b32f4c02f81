package di

import (
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/rconfig/engine/internal/store"
)

// StorageService wraps the per-instance storage registry for DI.
type StorageService struct {
	Registry *store.Registry
}

// NewStorage creates the storage registry rooted at the configured
// directory, falling back to a per-user data directory when unset.
func NewStorage(i do.Injector) (*StorageService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	dir := cfgSvc.Get().Storage.GetDirOption().OrElse(defaultStorageDir())
	return &StorageService{Registry: store.NewRegistry(dir, *logSvc.Logger)}, nil
}

func defaultStorageDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "rconfig")
}
