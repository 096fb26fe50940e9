package cache

import (
	"context"
	"strings"

	"github.com/roach88/assetmill/internal/digest"
)

// Store is a persistent cache backend.
type Store interface {
	// Get returns the entry stored under key, or nil with no error when
	// the key is absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores e under key, replacing any previous entry.
	Set(ctx context.Context, key string, e *Entry) error
}

// KeyPrefix namespaces every key written by the pipeline.
const KeyPrefix = "assetmill/"

// ExpandKey turns a pipeline cache key into a backend key. The root prefix
// is stripped so keys do not depend on where the project is checked out.
func ExpandKey(alg digest.Algorithm, root, key string) string {
	if root != "" {
		key = strings.Replace(key, root, "", 1)
	}
	return KeyPrefix + alg.WithDomain(digest.DomainCacheKey, []byte(key))
}
