package sync

import (
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardedMutexSerializesSameKey(t *testing.T) {
	m := NewShardedMutex()
	counter := 0

	var wg gosync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("alice@example.com")
			defer m.Unlock("alice@example.com")
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter)
}

func TestShardedMutexStableShardPerKey(t *testing.T) {
	m := NewShardedMutex()
	require.Equal(t, m.shardFor("alice@example.com"), m.shardFor("alice@example.com"))
}

func TestShardedMutexEmptyKey(t *testing.T) {
	m := NewShardedMutex()
	m.Lock("")
	m.Unlock("")
}
