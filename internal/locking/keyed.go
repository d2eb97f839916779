// Package locking provides an in-process exclusive lock keyed by ticket ID.
// Mutations on the same ticket serialize behind one slot; distinct tickets
// never contend. Acquire waits at most the configured bound.
package locking

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when the lock cannot be acquired within the wait
// bound. The guarded operation was not started.
var ErrTimeout = errors.New("lock acquire timed out")

type slot struct {
	sem     chan struct{}
	waiters int
}

// KeyedMutex serializes operations per key with a bounded acquire wait.
type KeyedMutex struct {
	mu      sync.Mutex
	slots   map[string]*slot
	maxWait time.Duration
}

// NewKeyedMutex builds a lock registry. maxWait bounds Acquire.
func NewKeyedMutex(maxWait time.Duration) *KeyedMutex {
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &KeyedMutex{
		slots:   make(map[string]*slot),
		maxWait: maxWait,
	}
}

// Acquire takes the exclusive slot for key, waiting up to the configured
// bound. On success the caller must Release exactly once.
func (k *KeyedMutex) Acquire(ctx context.Context, key string) error {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.waiters++
	k.mu.Unlock()

	timer := time.NewTimer(k.maxWait)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		k.abandon(key, s)
		return ErrTimeout
	case <-ctx.Done():
		k.abandon(key, s)
		return ctx.Err()
	}
}

// Release frees the slot for key. Must pair with a successful Acquire.
func (k *KeyedMutex) Release(key string) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		k.mu.Unlock()
		return
	}
	s.waiters--
	if s.waiters == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
	<-s.sem
}

func (k *KeyedMutex) abandon(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(k.slots, key)
	}
}
