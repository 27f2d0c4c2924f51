package sync

import (
	"context"
	"hash/fnv"
)

const shardCount = 64

// ShardedMutex serializes work per key without a global lock. Keys hash onto
// a fixed set of shards, so unrelated keys may occasionally share one; that
// costs throughput, never correctness.
//
// Each shard is a one-slot channel so waiters can give up when their
// context is cancelled.
type ShardedMutex struct {
	shards [shardCount]chan struct{}
}

func NewShardedMutex() *ShardedMutex {
	m := &ShardedMutex{}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

// Lock blocks until key's shard is free.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)] <- struct{}{}
}

// LockContext is Lock that gives up with ctx.Err() when ctx ends first.
func (m *ShardedMutex) LockContext(ctx context.Context, key string) error {
	select {
	case m.shards[m.shardFor(key)] <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases key's shard. Unlocking a free shard panics, as with sync.Mutex.
func (m *ShardedMutex) Unlock(key string) {
	select {
	case <-m.shards[m.shardFor(key)]:
	default:
		panic("sync: unlock of unlocked shard")
	}
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
