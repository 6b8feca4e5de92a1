package editqueue

import (
	"sort"
	"sync"
	"time"

	"github.com/wudi/pdfedit/store"
)

// DefaultWindow is the quiet period before a debounced value is committed.
const DefaultWindow = 150 * time.Millisecond

// Debouncer coalesces rapid updates per key, such as keystrokes in one
// section item, into a single queued mutation carrying the last value.
type Debouncer struct {
	queue  *Queue
	window time.Duration

	mu      sync.Mutex
	pending map[string]*debounced
}

type debounced struct {
	timer    *time.Timer
	mutation store.Mutation
	expected int
	gen      int
}

func NewDebouncer(q *Queue, window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{queue: q, window: window, pending: make(map[string]*debounced)}
}

// Set replaces the pending mutation for key and restarts its window.
func (d *Debouncer) Set(key string, m store.Mutation, expectedVersion int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key]
	if !ok {
		p = &debounced{}
		d.pending[key] = p
	} else {
		p.timer.Stop()
	}
	p.mutation, p.expected = m, expectedVersion
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(d.window, func() { d.fire(key, gen) })
}

func (d *Debouncer) fire(key string, gen int) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.queue.Submit(p.mutation, p.expected)
	d.mu.Unlock()
}

// Flush commits key's pending value now, as on focus loss. It returns nil
// when nothing is pending.
func (d *Debouncer) Flush(key string) *Pending {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key]
	if !ok {
		return nil
	}
	p.timer.Stop()
	delete(d.pending, key)
	return d.queue.Submit(p.mutation, p.expected)
}

// FlushAll commits every pending value in key order.
func (d *Debouncer) FlushAll() []*Pending {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	d.mu.Unlock()
	sort.Strings(keys)
	var out []*Pending
	for _, k := range keys {
		if p := d.Flush(k); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Pending reports whether key has an uncommitted value.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}
