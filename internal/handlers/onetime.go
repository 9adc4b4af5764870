package handlers

import (
	"sync"
	"time"
)

// oneTime holds values that can be taken once before they expire. The zero
// value is ready to use.
type oneTime[T any] struct {
	mu      sync.Mutex
	entries map[string]oneTimeEntry[T]
}

type oneTimeEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (o *oneTime[T]) put(key string, value T, expiresAt time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.entries == nil {
		o.entries = make(map[string]oneTimeEntry[T])
	}
	o.entries[key] = oneTimeEntry[T]{value: value, expiresAt: expiresAt}
}

// take removes key and returns its value if it had not expired by now. An
// expired entry is removed all the same.
func (o *oneTime[T]) take(key string, now time.Time) (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	delete(o.entries, key)
	if now.After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// sweep drops expired entries and reports how many it dropped.
func (o *oneTime[T]) sweep(now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for key, e := range o.entries {
		if now.After(e.expiresAt) {
			delete(o.entries, key)
			n++
		}
	}
	return n
}

func (o *oneTime[T]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
