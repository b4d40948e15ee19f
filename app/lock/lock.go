package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotAcquired is returned when the key is already held
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrNotHeld is returned when releasing a lock that expired or was taken over
	ErrNotHeld = errors.New("lock not held")
)

// Locker hands out exclusive, expiring locks keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// MemoryLocker serializes runs within one process.
type MemoryLocker struct {
	mutex sync.Mutex
	held  map[string]memoryEntry
	next  uint64
}

type memoryEntry struct {
	token   uint64
	expires time.Time
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  uint64
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]memoryEntry),
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrNotAcquired
	}

	l.next++
	l.held[key] = memoryEntry{token: l.next, expires: now.Add(ttl)}

	return &memoryLock{locker: l, key: key, token: l.next}, nil
}

func (lk *memoryLock) Release(ctx context.Context) error {
	lk.locker.mutex.Lock()
	defer lk.locker.mutex.Unlock()

	entry, ok := lk.locker.held[lk.key]
	if !ok || entry.token != lk.token {
		return ErrNotHeld
	}

	delete(lk.locker.held, lk.key)
	return nil
}
