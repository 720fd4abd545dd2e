// Package lock provides per-key locking so that operations on the same
// giveaway are serialized while different giveaways proceed in parallel.
package lock

import "sync"

// keyMutex wraps a mutex with the number of goroutines holding or waiting for it.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyLock is a set of mutexes addressed by an int64 key.
// Entries are dropped once no goroutine holds or waits for them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*keyMutex
}

// NewKeyLock creates a new KeyLock instance.
func NewKeyLock() *KeyLock {
	return &KeyLock{
		locks: make(map[int64]*keyMutex),
	}
}

// Lock acquires the lock for key, blocking until it is available.
func (kl *KeyLock) Lock(key int64) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{}
		kl.locks[key] = m
	}
	m.refs++
	kl.mu.Unlock()

	m.mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not locked is a no-op.
func (kl *KeyLock) Unlock(key int64) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	if !ok {
		kl.mu.Unlock()
		return
	}
	m.refs--
	if m.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()

	m.mu.Unlock()
}

// WithLock executes fn while holding the lock for key.
func (kl *KeyLock) WithLock(key int64, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// Len returns the number of keys currently held or awaited.
func (kl *KeyLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
