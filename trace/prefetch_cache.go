package trace

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// RandomAccessSource decodes the record at a given zero-based index
// without disturbing any sequential Reader's position. FileSource is the
// standard implementation, backed by an io.ReaderAt.
type RandomAccessSource interface {
	RecordAt(index uint64) (Record, error)
}

// PrefetchCacheConfig controls the prefetch cache's capacity.
type PrefetchCacheConfig struct {
	// Sets is the number of cache sets.
	Sets int
	// Associativity is the number of ways per set.
	Associativity int
}

// DefaultPrefetchCacheConfig returns a small 64-set, 4-way default,
// sized for the handful of records a driver typically needs to re-read
// across a squash replay.
func DefaultPrefetchCacheConfig() PrefetchCacheConfig {
	return PrefetchCacheConfig{Sets: 64, Associativity: 4}
}

// PrefetchCacheStats mirrors timing/cache's Statistics shape, scoped to
// the fields meaningful for a read-only decode cache.
type PrefetchCacheStats struct {
	Lookups uint64
	Hits    uint64
	Misses  uint64
}

// PrefetchCache caches decoded trace records by index, so a driver that
// re-reads a record it already decoded (e.g. replaying across a squash,
// or a lookahead window peeking past the oldest in-flight instruction)
// doesn't pay the decode cost twice. It is built directly on Akita's
// cache directory and LRU victim finder, the way timing/cache.Cache
// layers an L1 data cache on the same primitives — scoped here to the
// trace-read path instead of the memory hierarchy, and with a one
// "record" block size instead of a byte block size, since the cached
// unit is a whole decoded Record rather than a byte range.
type PrefetchCache struct {
	source    RandomAccessSource
	directory *akitacache.DirectoryImpl
	records   []Record
	config    PrefetchCacheConfig
	stats     PrefetchCacheStats
}

// NewPrefetchCache wraps source with a decode cache of the given
// capacity.
func NewPrefetchCache(source RandomAccessSource, config PrefetchCacheConfig) *PrefetchCache {
	total := config.Sets * config.Associativity
	return &PrefetchCache{
		source: source,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Associativity,
			1,
			akitacache.NewLRUVictimFinder(),
		),
		records: make([]Record, total),
		config:  config,
	}
}

// blockIndex maps a directory block to its slot in the records slice.
func (c *PrefetchCache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// RecordAt returns the decoded record at index, serving it from the
// cache when possible and decoding (then caching) it on a miss.
func (c *PrefetchCache) RecordAt(index uint64) (Record, error) {
	c.stats.Lookups++

	addr := index // one "block" per record, so the block address is the
	// record index itself — no block-alignment division needed.
	block := c.directory.Lookup(0, addr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.records[c.blockIndex(block)], nil
	}

	c.stats.Misses++
	rec, err := c.source.RecordAt(index)
	if err != nil {
		return Record{}, err
	}

	victim := c.directory.FindVictim(addr)
	if victim == nil {
		// Directory has no victim to give us (shouldn't happen with a
		// properly sized directory); serve the decode uncached.
		return rec, nil
	}

	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = false
	c.records[c.blockIndex(victim)] = rec
	c.directory.Visit(victim)

	return rec, nil
}

// Stats returns the cache's hit/miss counters.
func (c *PrefetchCache) Stats() PrefetchCacheStats { return c.stats }

// Reset invalidates every cached record without changing the underlying
// source.
func (c *PrefetchCache) Reset() {
	c.directory.Reset()
	c.stats = PrefetchCacheStats{}
}
