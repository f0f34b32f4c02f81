package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
// 1. Config (no dependencies)
// 2. Logger (depends on Config)
// 3. Concurrency (no dependencies) - shared worker pool
// 4. Storage (depends on Config, Logger)
// 5. Caches (depends on Storage, Logger)
// 6. Metadata (depends on Storage, Concurrency, Logger)
// 7. HTTPClient (no dependencies)
// 8. FetchHandler (depends on Config, Logger, HTTPClient, Caches, Metadata)
// 9. Realtime (depends on Config, Logger, HTTPClient, Metadata, FetchHandler)
// 10. Rollouts (depends on Concurrency, Logger)
// 11. Engine (depends on all above services).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewConcurrencyService)
	do.Provide(i, NewStorage)
	do.Provide(i, NewCaches)
	do.Provide(i, NewMetadata)
	do.Provide(i, NewHTTPClient)
	do.Provide(i, NewFetchHandler)
	do.Provide(i, NewRealtime)
	do.Provide(i, NewRollouts)
	do.Provide(i, NewEngine)
}
