package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_GetUpdatePop(t *testing.T) {
	m := New[string, int]()

	_, ok, err := m.Get("missing", DefaultGetTimeout)
	require.NoError(t, err)
	assert.False(t, ok)

	m.Update("a", 1)
	m.Update("a", 2)

	v, ok, err := m.Get("a", DefaultGetTimeout)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, m.Len())

	v, ok, err = m.Pop("a", DefaultPopTimeout)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 0, m.Len())

	_, ok, err = m.Pop("a", DefaultPopTimeout)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMap_LockTimeout(t *testing.T) {
	m := New[string, int]()
	m.Update("a", 1)

	require.True(t, m.lock.TryAcquire(1))

	start := time.Now()
	_, _, err := m.Get("a", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	_, _, err = m.Pop("a", 0)
	assert.ErrorIs(t, err, ErrLockTimeout)

	m.lock.Release(1)

	v, ok, err := m.Get("a", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestMap_WaitsForLock(t *testing.T) {
	m := New[string, int]()
	require.True(t, m.lock.TryAcquire(1))

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.lock.Release(1)
	}()

	_, _, err := m.Get("x", time.Second)
	assert.NoError(t, err)
}

func TestMap_SnapshotsDoNotAlias(t *testing.T) {
	m := New[string, int]()
	m.Update("b", 2)
	m.Update("a", 1)
	m.Update("c", 3)

	items := m.Items()
	items[0].Value = 100
	m.Update("d", 4)

	assert.Len(t, items, 3)
	assert.Equal(t, []string{"a", "b", "c", "d"}, SortedKeys(m))
	assert.Equal(t, []int{1, 2, 3, 4}, SortedValues(m))
}

func TestMap_ConcurrentUpdates(t *testing.T) {
	m := New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Update(i, i*i)
			_, _, _ = m.Get(i, DefaultGetTimeout)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
	v, ok, err := m.Get(7, DefaultGetTimeout)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 49, v)
}
