// Package registry provides a map guarded by a single lock whose
// acquisition can be bounded by a timeout.
package registry

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrLockTimeout is returned when the map lock could not be acquired
// within the requested timeout.
var ErrLockTimeout = errors.New("registry: timed out waiting for lock")

const (
	DefaultGetTimeout = 10 * time.Second
	DefaultPopTimeout = 100 * time.Millisecond
)

// Entry is one key/value pair of a snapshot.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is a key/value store with one lock for the whole map. A negative
// timeout waits for the lock indefinitely.
type Map[K comparable, V any] struct {
	lock *semaphore.Weighted
	m    map[K]V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		lock: semaphore.NewWeighted(1),
		m:    make(map[K]V),
	}
}

func (r *Map[K, V]) acquire(timeout time.Duration) error {
	if r.lock.TryAcquire(1) {
		return nil
	}
	if timeout == 0 {
		return ErrLockTimeout
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := r.lock.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	return nil
}

func (r *Map[K, V]) release() {
	r.lock.Release(1)
}

// Get returns the value stored for key. ok is false when the key is absent.
func (r *Map[K, V]) Get(key K, timeout time.Duration) (value V, ok bool, err error) {
	if err = r.acquire(timeout); err != nil {
		return value, false, err
	}
	defer r.release()

	value, ok = r.m[key]
	return value, ok, nil
}

// Pop removes key and returns the value it held.
func (r *Map[K, V]) Pop(key K, timeout time.Duration) (value V, ok bool, err error) {
	if err = r.acquire(timeout); err != nil {
		return value, false, err
	}
	defer r.release()

	value, ok = r.m[key]
	if ok {
		delete(r.m, key)
	}
	return value, ok, nil
}

// Update inserts or replaces the value for key.
func (r *Map[K, V]) Update(key K, value V) {
	_ = r.acquire(-1)
	defer r.release()

	r.m[key] = value
}

// Items returns a snapshot of all entries in unspecified order.
func (r *Map[K, V]) Items() []Entry[K, V] {
	_ = r.acquire(-1)
	defer r.release()

	out := make([]Entry[K, V], 0, len(r.m))
	for k, v := range r.m {
		out = append(out, Entry[K, V]{Key: k, Value: v})
	}
	return out
}

// Keys returns a snapshot of all keys in unspecified order.
func (r *Map[K, V]) Keys() []K {
	_ = r.acquire(-1)
	defer r.release()

	out := make([]K, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	return out
}

func (r *Map[K, V]) Len() int {
	_ = r.acquire(-1)
	defer r.release()

	return len(r.m)
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m *Map[K, V]) []K {
	keys := m.Keys()
	slices.Sort(keys)
	return keys
}

// SortedValues returns the values of m ordered by key.
func SortedValues[K cmp.Ordered, V any](m *Map[K, V]) []V {
	items := m.Items()
	slices.SortFunc(items, func(a, b Entry[K, V]) int {
		return cmp.Compare(a.Key, b.Key)
	})

	out := make([]V, len(items))
	for i, e := range items {
		out[i] = e.Value
	}
	return out
}
