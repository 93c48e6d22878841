// Package sync holds keyed locking primitives used to serialize work per entity.
package sync

import (
	"hash/fnv"
	"sync"
)

const defaultShards = 64

// KeyedMutex serializes callers that share a key while letting unrelated keys
// proceed in parallel. Keys are spread across a fixed set of shards, so two
// distinct keys may occasionally share a lock.
type KeyedMutex struct {
	shards []sync.Mutex
}

// NewKeyedMutex creates a KeyedMutex with the given shard count.
// A non-positive count selects the default of 64.
func NewKeyedMutex(shards int) *KeyedMutex {
	if shards <= 0 {
		shards = defaultShards
	}
	return &KeyedMutex{shards: make([]sync.Mutex, shards)}
}

// Lock acquires the shard owning key.
func (m *KeyedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the shard owning key.
func (m *KeyedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// TryLock acquires the shard owning key if it is free and reports whether it did.
func (m *KeyedMutex) TryLock(key string) bool {
	return m.shards[m.shardFor(key)].TryLock()
}

// Do runs fn while holding the lock for key.
func (m *KeyedMutex) Do(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

func (m *KeyedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.shards)))
}
