package session

import (
	"sync"
	"sync/atomic"
)

type entry struct {
	mu   sync.Mutex
	refs int32
}

// keyedMutex serializes work per key (here: per tax code), so concurrent
// crawls for one taxpayer perform at most one login at a time.
type keyedMutex[K comparable] struct {
	table sync.Map // map[K]*entry
}

func (m *keyedMutex[K]) get(key K) *entry {
	v, _ := m.table.LoadOrStore(key, &entry{refs: 1})
	e := v.(*entry)
	if atomic.AddInt32(&e.refs, 1) == 1 {
		// a releaser zeroed it in between; correct back to 1
		atomic.StoreInt32(&e.refs, 1)
	}
	return e
}

func (m *keyedMutex[K]) put(key K, e *entry) {
	if atomic.AddInt32(&e.refs, -1) == 0 {
		m.table.CompareAndDelete(key, e)
	}
}

func (m *keyedMutex[K]) Lock(key K) {
	e := m.get(key)
	e.mu.Lock()
	m.put(key, e)
}

func (m *keyedMutex[K]) Unlock(key K) {
	v, _ := m.table.Load(key)
	v.(*entry).mu.Unlock()
}
