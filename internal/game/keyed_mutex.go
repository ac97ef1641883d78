// Package game implements the core game loop: spawn pacing, character
// selection and guess arbitration. All state in this package is in-memory
// and per-process; durable state belongs to the storage layer.
package game

import "sync"

// MutexMap hands out one mutex per int64 key, materialized lazily. Lookups
// take the read lock; the write lock is only taken to insert a missing entry,
// with a re-check after upgrade so two racers share the same mutex.
type MutexMap struct {
	mu    sync.RWMutex
	locks map[int64]*sync.Mutex
}

// NewMutexMap creates an empty mutex map
func NewMutexMap() *MutexMap {
	return &MutexMap{locks: make(map[int64]*sync.Mutex)}
}

// Get returns the mutex for a key, creating it on first use
func (m *MutexMap) Get(key int64) *sync.Mutex {
	m.mu.RLock()
	lock, ok := m.locks[key]
	m.mu.RUnlock()
	if ok {
		return lock
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lock, ok = m.locks[key]; ok {
		return lock
	}
	lock = &sync.Mutex{}
	m.locks[key] = lock
	return lock
}

// Lock locks the mutex for a key
func (m *MutexMap) Lock(key int64) {
	m.Get(key).Lock()
}

// Unlock unlocks the mutex for a key
func (m *MutexMap) Unlock(key int64) {
	m.Get(key).Unlock()
}

// LockPair locks two keys in ascending order so concurrent pair operations
// can never deadlock. The returned function releases both.
func (m *MutexMap) LockPair(a, b int64) func() {
	if a == b {
		m.Lock(a)
		return func() { m.Unlock(a) }
	}
	if a > b {
		a, b = b, a
	}
	m.Lock(a)
	m.Lock(b)
	return func() {
		m.Unlock(b)
		m.Unlock(a)
	}
}
