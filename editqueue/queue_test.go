package editqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/pdfedit/internal/pdftest"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/store"
)

func loadedStore(t *testing.T) (*store.Store, model.Snapshot) {
	t.Helper()
	s := store.New(store.Options{})
	snap, err := s.Load(context.Background(), pdftest.Build(pdftest.Letter(
		pdftest.Run{Text: "EXPERIENCE", X: 72, Y: 700, Size: 14, Font: "F2"},
		pdftest.Run{Text: "first", X: 72, Y: 680},
		pdftest.Run{Text: "SKILLS", X: 72, Y: 640, Size: 14, Font: "F2"},
		pdftest.Run{Text: "Go", X: 72, Y: 620},
	)))
	require.NoError(t, err)
	require.Len(t, snap.Sections, 2)
	return s, snap
}

// recorder wraps a store and records the order mutations reach it.
type recorder struct {
	mu    sync.Mutex
	inner Applier
	names []string
}

func (r *recorder) Apply(m store.Mutation, v int) (int, error) {
	r.mu.Lock()
	r.names = append(r.names, m.Name())
	r.mu.Unlock()
	time.Sleep(time.Millisecond)
	return r.inner.Apply(m, v)
}

func TestQueue_AppliesInSubmissionOrder(t *testing.T) {
	s, snap := loadedStore(t)
	rec := &recorder{inner: s}
	q := New(rec, nil)

	exp, skills := snap.Sections[0], snap.Sections[1]
	p1 := q.Submit(store.Reorder([]string{skills.ID, exp.ID}), store.AnyVersion)
	p2 := q.Submit(store.UpdateItem(exp.ID, exp.Items[0].ID, "typed"), store.AnyVersion)
	p3 := q.Submit(store.ToggleCollapsed(skills.ID), store.AnyVersion)
	assert.Equal(t, []int{1, 2, 3}, []int{p1.Tag, p2.Tag, p3.Tag})

	ctx := context.Background()
	r3, err := p3.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, r3.Err)
	assert.Equal(t, 3, r3.Version)
	r1, _ := p1.Wait(ctx)
	assert.Equal(t, 1, r1.Version)

	q.Idle()
	assert.Equal(t, []string{"reorder", "updateItem", "toggleCollapsed"}, rec.names)
	got, _ := s.Snapshot()
	assert.Equal(t, skills.ID, got.Sections[0].ID)
	assert.True(t, got.Sections[0].Collapsed)
	assert.Equal(t, "typed", got.Sections[1].Items[0].Text)
}

func TestQueue_LastWriteWins(t *testing.T) {
	s, snap := loadedStore(t)
	q := New(s, nil)
	sec := snap.Sections[0]
	for _, text := range []string{"a", "ab", "abc"} {
		q.Submit(store.UpdateItem(sec.ID, sec.Items[0].ID, text), store.AnyVersion)
	}
	q.Idle()
	got, _ := s.Snapshot()
	assert.Equal(t, "abc", got.Sections[0].Items[0].Text)
	assert.Equal(t, "first", got.Sections[0].Items[0].OriginalText)
	assert.Equal(t, 3, got.CurrentVersion)
}

func TestQueue_StaleRejected(t *testing.T) {
	s, snap := loadedStore(t)
	q := New(s, nil)
	v := snap.CurrentVersion
	sec := snap.Sections[0].ID

	ctx := context.Background()
	_, err := q.Apply(ctx, store.ToggleVisibility(sec), v)
	require.NoError(t, err)
	_, err = q.Apply(ctx, store.SetSectionTitle(sec, "late"), v)
	var stale *store.StaleVersionError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, store.StaleVersionError{Current: v + 1, Given: v}, *stale)
}

func TestQueue_WaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	q := New(applierFunc(func(store.Mutation, int) (int, error) {
		<-block
		return 1, nil
	}), nil)
	p := q.Submit(store.UndoLast{}, store.AnyVersion)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
	r, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Version)
}

type applierFunc func(store.Mutation, int) (int, error)

func (f applierFunc) Apply(m store.Mutation, v int) (int, error) { return f(m, v) }

func TestDebouncer_CoalescesAndFlushes(t *testing.T) {
	s, snap := loadedStore(t)
	q := New(s, nil)
	d := NewDebouncer(q, time.Hour)
	sec := snap.Sections[0]
	key := sec.ID + "/" + sec.Items[0].ID

	for _, text := range []string{"t", "ty", "typ", "type"} {
		d.Set(key, store.UpdateItem(sec.ID, sec.Items[0].ID, text), store.AnyVersion)
	}
	assert.True(t, d.Pending(key))
	p := d.Flush(key)
	require.NotNil(t, p)
	r, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Err)
	assert.Equal(t, 1, r.Version)
	assert.False(t, d.Pending(key))
	assert.Nil(t, d.Flush(key))

	got, _ := s.Snapshot()
	assert.Equal(t, "type", got.Sections[0].Items[0].Text)
	assert.Equal(t, 1, got.CurrentVersion)
}

func TestDebouncer_FiresAfterWindow(t *testing.T) {
	s, snap := loadedStore(t)
	q := New(s, nil)
	d := NewDebouncer(q, 20*time.Millisecond)
	sec := snap.Sections[1]
	d.Set("k", store.UpdateItem(sec.ID, sec.Items[0].ID, "Go, Rust"), store.AnyVersion)

	require.Eventually(t, func() bool {
		v, _ := s.Version()
		return v == 1
	}, time.Second, 5*time.Millisecond)
	got, _ := s.Snapshot()
	assert.Equal(t, "Go, Rust", got.Sections[1].Items[0].Text)
}

func TestDebouncer_FlushAll(t *testing.T) {
	s, snap := loadedStore(t)
	q := New(s, nil)
	d := NewDebouncer(q, time.Hour)
	for i, sec := range snap.Sections {
		d.Set(sec.ID, store.SetSectionTitle(sec.ID, []string{"One", "Two"}[i]), store.AnyVersion)
	}
	pending := d.FlushAll()
	require.Len(t, pending, 2)
	q.Idle()
	got, _ := s.Snapshot()
	assert.Equal(t, "One", got.Sections[0].Title)
	assert.Equal(t, "Two", got.Sections[1].Title)
}
