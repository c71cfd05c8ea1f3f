package grading

import "sync"

// keyedMutex serializes work per key. The grading engine locks the
// (student, activity) pair so two submissions for the same item can never
// interleave their read-modify-write of the review state; the DB unique
// constraint and row lock are the backstop across processes, this is the
// cheap in-process fast path.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (m *keyedMutex) Lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
