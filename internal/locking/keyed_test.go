package locking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseSameKey(t *testing.T) {
	locks := NewKeyedMutex(time.Second)
	ctx := context.Background()

	require.NoError(t, locks.Acquire(ctx, "tck-1"))
	locks.Release("tck-1")
	require.NoError(t, locks.Acquire(ctx, "tck-1"))
	locks.Release("tck-1")
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	locks := NewKeyedMutex(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, locks.Acquire(ctx, "tck-1"))
	defer locks.Release("tck-1")

	err := locks.Acquire(ctx, "tck-1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDistinctKeysDoNotContend(t *testing.T) {
	locks := NewKeyedMutex(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, locks.Acquire(ctx, "tck-1"))
	defer locks.Release("tck-1")

	require.NoError(t, locks.Acquire(ctx, "tck-2"))
	locks.Release("tck-2")
}

func TestAcquireHonorsContextCancel(t *testing.T) {
	locks := NewKeyedMutex(time.Minute)
	require.NoError(t, locks.Acquire(context.Background(), "tck-1"))
	defer locks.Release("tck-1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := locks.Acquire(ctx, "tck-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerializesConcurrentHolders(t *testing.T) {
	locks := NewKeyedMutex(5 * time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	var inCritical, maxInCritical int

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, locks.Acquire(ctx, "tck-1"))
			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
			locks.Release("tck-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical)
}
