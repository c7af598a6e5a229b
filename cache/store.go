package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type entry struct {
	object  any
	expires time.Time
}

func (e entry) live(now time.Time) bool {
	return now.Before(e.expires)
}

type shard struct {
	mutex   sync.RWMutex
	entries map[string]entry
}

// store is a sharded map of keys to entries. Each shard has its own lock so
// writers of unrelated keys never wait on each other. Values are held by
// reference; the store never looks inside them.
type store struct {
	shards []*shard
	mask   uint64
}

func newStore(shards int, sizeHint int) *store {
	n := 1
	for n < shards {
		n <<= 1
	}
	perShard := 0
	if sizeHint > 0 {
		perShard = (sizeHint + n - 1) / n
	}
	s := &store{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]entry, perShard)}
	}
	return s
}

func (s *store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)&s.mask]
}

// read returns the live entry for key. An expired entry is reported absent
// and deleted if it has not been replaced in the meantime.
func (s *store) read(key string, now time.Time) (entry, bool) {
	sh := s.shardFor(key)
	sh.mutex.RLock()
	e, ok := sh.entries[key]
	sh.mutex.RUnlock()
	if !ok {
		return entry{}, false
	}
	if e.live(now) {
		return e, true
	}
	sh.mutex.Lock()
	if cur, ok := sh.entries[key]; ok && !cur.live(now) {
		delete(sh.entries, key)
	}
	sh.mutex.Unlock()
	return entry{}, false
}

func (s *store) write(key string, e entry) {
	sh := s.shardFor(key)
	sh.mutex.Lock()
	sh.entries[key] = e
	sh.mutex.Unlock()
}

// writeIfAbsent stores e only when key has no live entry at now.
func (s *store) writeIfAbsent(key string, e entry, now time.Time) bool {
	sh := s.shardFor(key)
	sh.mutex.Lock()
	defer sh.mutex.Unlock()
	if cur, ok := sh.entries[key]; ok && cur.live(now) {
		return false
	}
	sh.entries[key] = e
	return true
}

func (s *store) remove(key string) {
	sh := s.shardFor(key)
	sh.mutex.Lock()
	delete(sh.entries, key)
	sh.mutex.Unlock()
}

func (s *store) containsLive(key string, now time.Time) bool {
	_, ok := s.read(key, now)
	return ok
}

// sweep deletes every entry expired at now and returns how many it removed.
func (s *store) sweep(now time.Time) int {
	var removed int
	for _, sh := range s.shards {
		sh.mutex.Lock()
		for key, e := range sh.entries {
			if !e.live(now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mutex.Unlock()
	}
	return removed
}

// len returns the number of physically stored entries, expired or not.
func (s *store) len() int {
	var n int
	for _, sh := range s.shards {
		sh.mutex.RLock()
		n += len(sh.entries)
		sh.mutex.RUnlock()
	}
	return n
}

func (s *store) clear() {
	for _, sh := range s.shards {
		sh.mutex.Lock()
		clear(sh.entries)
		sh.mutex.Unlock()
	}
}
