package usecase

import "sync"

// KeyedMutex serializes work per (chat, user) key. Operations on different
// keys proceed in parallel; a violation and a concurrent verification expiry
// for the same user cannot interleave. Entries are reference-counted and
// removed when the last holder releases, so the map does not grow with the
// number of users ever seen.
//
// The enforcement and verification usecases share one instance, because both
// mutate state for the same (chat, user) keys.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutex for key and returns its release function
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
