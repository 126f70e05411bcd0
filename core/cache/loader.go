package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/therealmarv/cnx-epub/internal/logging"
)

// FetchFunc retrieves the value for a key from its origin.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Loader coordinates lookups so that each key is fetched from its origin at
// most once at a time. Concurrent callers for the same key share one fetch.
// A nil Store makes every lookup a fetch.
type Loader struct {
	store Store
	group singleflight.Group
}

// NewLoader creates a loader in front of store, which may be nil.
func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// Store returns the backing store, or nil.
func (l *Loader) Store() Store {
	if l == nil {
		return nil
	}
	return l.store
}

// Load returns the cached value for key, calling fetch on a miss and storing
// its result. Store failures are logged and never fail the lookup. Fetch
// errors are returned and not cached.
func (l *Loader) Load(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if l == nil {
		return fetch(ctx)
	}
	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		return l.load(ctx, key, fetch)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (l *Loader) load(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if l.store != nil {
		data, ok, err := l.store.Get(ctx, key)
		if err != nil {
			logging.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		} else if ok {
			logging.DebugContext(ctx, "cache hit", "key", key)
			return data, nil
		}
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if l.store != nil {
		if err := l.store.Set(ctx, key, data); err != nil {
			logging.WarnContext(ctx, "cache set failed", "key", key, "error", err)
		}
	}
	return data, nil
}
