// Package cache provides a concurrency-safe sharded LRU cache, used to
// memoize rendered kernel images of frozen coadd PSFs.
//
// Keys are spread over a fixed number of shards by a caller-supplied
// Hasher; each shard has its own lock and LRU list.
package cache
