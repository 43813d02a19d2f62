// Package sync provides fine-grained locking primitives for per-resource
// serialization, such as holding one login attempt per account at a time.
package sync

import (
	"hash/fnv"
	"sync"
)

// ShardedMutex distributes locks across a fixed set of shards keyed by a
// resource identifier. Two operations on the same key always contend on the
// same shard, so per-key critical sections are serialized without a global
// lock or an unbounded mutex map.
type ShardedMutex struct {
	shards [32]sync.Mutex
}

// NewShardedMutex creates a ShardedMutex with 32 shards.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the lock for the given key's shard.
// Empty keys default to shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.shards)))
}
