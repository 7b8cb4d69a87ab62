package board

import "sync"

// keyMutex serializes critical sections per task id so check-then-write
// sequences on the same task cannot interleave, while distinct tasks proceed
// fully in parallel. Entries are reference-counted and dropped when idle.
type keyMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyMutex) do(id string, fn func() error) error {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = map[string]*keyEntry{}
	}
	e := k.entries[id]
	if e == nil {
		e = &keyEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}()
	return fn()
}
