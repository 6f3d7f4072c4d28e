// Package lock serializes mutating certificate actions per student.
//
// Acquisition has queue semantics: a second action for the same student waits
// for the first to finish instead of being rejected.
package lock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"eduverify/pkg/domain"
	"eduverify/pkg/platform/sentinel"
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires an exclusive per-student lock, blocking until it is held or
// ctx is done.
type Locker interface {
	Lock(ctx context.Context, student domain.Address) (Unlock, error)
}

// Key normalizes the student address so that case variants share a lock.
func Key(student domain.Address) string {
	return "eduverify:lock:student:" + student.Key()
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*entry)}
}

func (l *MemoryLocker) Lock(ctx context.Context, student domain.Address) (Unlock, error) {
	key := Key(student)

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e)
		return nil, fmt.Errorf("%w: %s: %v", sentinel.ErrLockTimeout, key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key, e)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (l *MemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
