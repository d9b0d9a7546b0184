package flattree

import lru "github.com/hashicorp/golang-lru"

// ChunkCache caches decoded record chunks loaded from a Persist. It is also
// used to avoid re-storing chunks, so care should be taken to switch or
// invalidate the cache when the Persist is changed.
type ChunkCache interface {
	// Add adds a freshly-persisted or freshly-loaded chunk to the cache.
	Add(key, value interface{})
	// Contains indicates the chunk with the given name has already been persisted.
	Contains(key interface{}) bool
	// Get retrieves the already-decoded chunk with the given name, if cached.
	Get(key interface{}) (value interface{}, ok bool)
}

// NewChunkCache creates a new ARC-based chunk cache holding up to size
// chunks. One cache can be shared by any number of trees, as long as they
// use the same key and value types.
func NewChunkCache(size int) ChunkCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}
	return cache
}
