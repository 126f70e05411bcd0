package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Store is a byte-valued key/value cache backend.
//
// Get reports a miss as (nil, false, nil); an error means the backend itself
// failed and the caller should fall back to the origin.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Hash returns the hex BLAKE3 digest of s, used to keep secrets and long
// TeX sources out of cache keys.
func Hash(s string) string {
	h := blake3.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// ExerciseKey returns the cache key for an exercise lookup. The token is part
// of the key because authenticated lookups may see different content.
func ExerciseKey(tag, token string) string {
	return "exercise:" + tag + ":" + Hash(token)
}

// EquationKey returns the cache key for a TeX to MathML conversion.
func EquationKey(tex string) string {
	return "mathml:" + Hash(tex)
}

// Open creates the store described by spec:
//
//	""               no cache (nil store)
//	"memory"         in-process LRU
//	"redis://..."    Redis (also "rediss://")
//	"sqlite:<path>"  SQLite file, values xz-compressed
//	"dir:<path>"     one file per key under path
func Open(ctx context.Context, spec string) (Store, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return nil, nil
	case spec == "memory":
		return NewMemoryStore(DefaultConfig()), nil
	case strings.HasPrefix(spec, "redis://"), strings.HasPrefix(spec, "rediss://"):
		return NewRedisStore(ctx, spec)
	case strings.HasPrefix(spec, "sqlite:"):
		store, err := OpenSQLStore(ctx, strings.TrimPrefix(spec, "sqlite:"))
		if err != nil {
			return nil, err
		}
		return Compressed(store), nil
	case strings.HasPrefix(spec, "dir:"):
		return NewFileStore(strings.TrimPrefix(spec, "dir:"))
	default:
		return nil, fmt.Errorf("unknown cache %q", spec)
	}
}
