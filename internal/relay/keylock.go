package relay

import (
	"sync"

	"relaybot/internal/domain"
)

// keyLock serializes work per message id. Entries are removed once unused.
type keyLock struct {
	mu    sync.Mutex
	locks map[domain.ID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[domain.ID]*refMutex)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (k *keyLock) Lock(id domain.ID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
