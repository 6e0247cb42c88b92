package emulator

import "sync"

// table issues opaque uintptr handles for live emulator resources, config
// documents and open export reports. Handles are 1-based so the zero value
// never addresses an entry; freed slots are recycled through a free list.
type table struct {
	mu      sync.Mutex
	entries []tableEntry
	free    []uintptr
}

type tableEntry struct {
	value any
	valid bool
}

func newTable() *table {
	return &table{
		entries: make([]tableEntry, 0, 8),
	}
}

// put stores value and returns its handle.
func (t *table) put(value any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := tableEntry{value: value, valid: true}
	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[h-1] = e
		return h
	}
	t.entries = append(t.entries, e)
	return uintptr(len(t.entries))
}

// get returns the value for a live handle.
func (t *table) get(h uintptr) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == 0 || int(h) > len(t.entries) {
		return nil, false
	}
	e := t.entries[h-1]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

// drop invalidates a handle and recycles its slot.
func (t *table) drop(h uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == 0 || int(h) > len(t.entries) {
		return false
	}
	e := &t.entries[h-1]
	if !e.valid {
		return false
	}
	e.valid = false
	e.value = nil
	t.free = append(t.free, h)
	return true
}

// reset invalidates every handle at once.
func (t *table) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = t.entries[:0]
	t.free = t.free[:0]
}

// size returns the number of live handles.
func (t *table) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if e.valid {
			n++
		}
	}
	return n
}
