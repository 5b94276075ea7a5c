// internal/identity/keymutex.go
//
// Per-key mutual exclusion for the lookup/create window.
package identity

import "sync"

type keyMutex struct {
	mu    sync.Mutex
	locks map[Key]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[Key]*entry)}
}

// lock blocks until the key is free and returns the release func.  Entries
// are reference counted so the map does not grow with the source set.
func (k *keyMutex) lock(key Key) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
