package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduverify/pkg/platform/sentinel"
)

func TestMemoryLocker_SerializesPerStudent(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "0xAbC")
			require.NoError(t, err)
			defer unlock()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight)
	assert.Zero(t, l.held(), "entries are released once nobody holds or waits")
}

func TestMemoryLocker_CaseVariantsShareLock(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "0xABCD")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "0xabcd")
	assert.ErrorIs(t, err, sentinel.ErrLockTimeout)
}

func TestMemoryLocker_DifferentStudentsDoNotBlock(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "0x01")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock2, err := l.Lock(ctx, "0x02")
	require.NoError(t, err)
	unlock2()
}

func TestMemoryLocker_QueuedWaiterAcquiresAfterRelease(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "0x01")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), "0x01")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired while lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	unlock() // idempotent

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestMemoryLocker_CancelledWaiterIsCleanedUp(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), "0x01")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "0x01")
	require.Error(t, err)

	unlock()
	assert.Zero(t, l.held())
}
