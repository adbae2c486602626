package runtime

import (
	"chat-relay/domain"
	"sync"
)

// keyedMutex hands out one mutex per identity and forgets it once nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.Identity]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.Identity]*refMutex)}
}

// Lock blocks until the identity's mutex is held and returns its unlock function.
func (k *keyedMutex) Lock(identity domain.Identity) func() {
	k.mu.Lock()
	lock, ok := k.locks[identity]
	if !ok {
		lock = &refMutex{}
		k.locks[identity] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, identity)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
