package pipeline

import "sync"

// keyedLocks serializes stage transitions per filename so a parse and an
// ingest against the same document can never interleave. Different filenames
// proceed concurrently.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for a key, creating it on first use. Entries are
// never evicted; the set is bounded by the number of distinct filenames.
func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}
