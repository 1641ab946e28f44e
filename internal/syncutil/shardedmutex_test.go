package syncutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SerializesSameKey(t *testing.T) {
	var sm ShardedMutex
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := sm.Lock("intent-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_TryLock(t *testing.T) {
	var sm ShardedMutex

	unlock, ok := sm.TryLock("intent-1")
	assert.True(t, ok)

	_, ok = sm.TryLock("intent-1")
	assert.False(t, ok)

	unlock()
	unlock2, ok := sm.TryLock("intent-1")
	assert.True(t, ok)
	unlock2()
}
