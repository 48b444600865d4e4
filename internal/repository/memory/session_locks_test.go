package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithAppendAssignsStrictlyIncreasingTimestamps(t *testing.T) {
	registry := NewSessionLockRegistry()

	const appends = 200
	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < appends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := registry.WithAppend("session-a", func(now time.Time) error {
				mu.Lock()
				stamps = append(stamps, now)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, stamps, appends)
	seen := make(map[time.Time]bool, appends)
	for _, s := range stamps {
		assert.False(t, seen[s], "timestamp handed out twice: %v", s)
		seen[s] = true
	}
}

func TestWithAppendIsolatesSessions(t *testing.T) {
	registry := NewSessionLockRegistry()

	// Holding one session's lock must not block another session.
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		registry.WithAppend("session-a", func(now time.Time) error {
			<-release
			return nil
		})
	}()

	go func() {
		registry.WithAppend("session-b", func(now time.Time) error {
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("append on an unrelated session blocked")
	}
	close(release)
}

func TestDeleteForgetsLastAppend(t *testing.T) {
	registry := NewSessionLockRegistry()

	var first time.Time
	require.NoError(t, registry.WithAppend("session-a", func(now time.Time) error {
		first = now
		return nil
	}))

	registry.Delete("session-a")

	// A fresh lock starts over; it must still produce a valid timestamp.
	require.NoError(t, registry.WithAppend("session-a", func(now time.Time) error {
		assert.False(t, now.IsZero())
		return nil
	}))
	assert.False(t, first.IsZero())
}
