// Package cache provides the single-flight, memoized read/write layer that
// sits between the parameter resolver/fetch handler and file-backed
// storage.
package cache

import "errors"

// ErrClosed is returned when operations are attempted on a closed cache.
var ErrClosed = errors.New("cache: cache is closed")
