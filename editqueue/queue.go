// Package editqueue orders mutations submitted in bursts. Each submission is
// tagged with the next edit version and a single worker applies them in tag
// order.
package editqueue

import (
	"context"
	"sync"

	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/store"
)

// Applier is the store side of the queue.
type Applier interface {
	Apply(m store.Mutation, expectedVersion int) (int, error)
}

// Result is the outcome of one queued mutation.
type Result struct {
	// Tag is the edit version assigned at submission.
	Tag int
	// Version is the store version after the mutation, zero on error.
	Version int
	Err     error
}

// Pending is a submitted mutation that may not have run yet.
type Pending struct {
	Tag  int
	done chan Result
}

// Wait blocks until the mutation has been applied or ctx ends. It may be
// called more than once.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-p.done:
		p.done <- r
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type entry struct {
	tag      int
	mutation store.Mutation
	expected int
	pending  *Pending
}

type Queue struct {
	target Applier
	log    observability.Logger

	mu      sync.Mutex
	tag     int
	items   []entry
	running bool
	idle    *sync.Cond
}

func New(target Applier, logger observability.Logger) *Queue {
	q := &Queue{target: target, log: observability.OrNop(logger)}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Submit enqueues m. expectedVersion is checked by the store when the
// mutation runs; pass store.AnyVersion to skip the check.
func (q *Queue) Submit(m store.Mutation, expectedVersion int) *Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tag++
	p := &Pending{Tag: q.tag, done: make(chan Result, 1)}
	q.items = append(q.items, entry{tag: q.tag, mutation: m, expected: expectedVersion, pending: p})
	if !q.running {
		q.running = true
		go q.drain()
	}
	return p
}

// Apply submits m and waits for its result.
func (q *Queue) Apply(ctx context.Context, m store.Mutation, expectedVersion int) (int, error) {
	r, err := q.Submit(m, expectedVersion).Wait(ctx)
	if err != nil {
		return 0, err
	}
	return r.Version, r.Err
}

// Tag returns the last edit version handed out.
func (q *Queue) Tag() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tag
}

// Idle blocks until every submitted mutation has been applied.
func (q *Queue) Idle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.running {
		q.idle.Wait()
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.running = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		e := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		version, err := q.target.Apply(e.mutation, e.expected)
		if err != nil {
			q.log.Debug("queued mutation failed",
				observability.Int("tag", e.tag),
				observability.String("mutation", e.mutation.Name()),
				observability.Error("err", err))
		}
		e.pending.done <- Result{Tag: e.tag, Version: version, Err: err}
	}
}
