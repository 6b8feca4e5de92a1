// Package store holds the canonical state of one open document. Every change
// goes through Apply, which checks the expected version, records edits and
// advances the version.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/pdfedit/extractor"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/sections"
)

// AnyVersion skips the version check.
const AnyVersion = -1

var (
	ErrNoDocumentLoaded = errors.New("no document loaded")
	ErrRunNotFound      = errors.New("text run not found")
	ErrEmptyNeedle      = errors.New("search text is empty")
)

// StaleVersionError rejects a mutation built against an older version.
type StaleVersionError struct {
	Current int
	Given   int
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("stale version: current %d, given %d", e.Current, e.Given)
}

type Options struct {
	Extractor *extractor.Extractor
	Sections  sections.Options
	Logger    observability.Logger
	// Now and NewID default to time.Now and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Event describes an applied mutation.
type Event struct {
	Version  int
	Mutation string
	// Edits are the edit operations the mutation appended, if any.
	Edits []model.EditOperation
	// Snapshot is the state right after the mutation.
	Snapshot model.Snapshot
}

type Store struct {
	mu   sync.RWMutex
	doc  *document
	opts Options
	log  observability.Logger

	notifyMu sync.Mutex
	subs     map[int]func(Event)
	nextSub  int
}

func New(opts Options) *Store {
	if opts.Extractor == nil {
		opts.Extractor = extractor.New(extractor.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Store{opts: opts, log: observability.OrNop(opts.Logger), subs: make(map[int]func(Event))}
}

// Load parses data and replaces the whole state. On failure the previous
// state is kept.
func (s *Store) Load(ctx context.Context, data []byte) (model.Snapshot, error) {
	res, err := s.opts.Extractor.Parse(ctx, data)
	if err != nil {
		return model.Snapshot{}, err
	}
	doc := newDocument(res)
	doc.sections = sections.ExtractWith(allRuns(doc.pages), s.opts.Sections)
	return s.install(ctx, doc), nil
}

// Restore parses the source bytes of a saved snapshot and adopts the saved
// pages, sections, edit log and version.
func (s *Store) Restore(ctx context.Context, source []byte, snap model.Snapshot) (model.Snapshot, error) {
	res, err := s.opts.Extractor.Parse(ctx, source)
	if err != nil {
		return model.Snapshot{}, err
	}
	if snap.DocumentID != "" && snap.DocumentID != res.Fingerprint {
		return model.Snapshot{}, fmt.Errorf("snapshot belongs to document %s, source is %s", snap.DocumentID, res.Fingerprint)
	}
	snap = snap.Clone()
	res.Pages = snap.Pages
	doc := newDocument(res)
	doc.sections = snap.Sections
	doc.editLog = snap.EditLog
	doc.version = snap.CurrentVersion
	if snap.Viewport.Zoom > 0 {
		doc.viewport = snap.Viewport
	}
	if len(snap.Fonts) > 0 {
		doc.fonts = snap.Fonts
	}
	return s.install(ctx, doc), nil
}

func (s *Store) install(ctx context.Context, doc *document) model.Snapshot {
	if err := ctx.Err(); err != nil {
		s.log.Debug("load finished after cancellation", observability.Error("err", err))
	}
	s.mu.Lock()
	s.doc = doc
	snap := doc.snapshot()
	s.mu.Unlock()
	s.log.Info("document loaded",
		observability.String("document", doc.id),
		observability.Int("pages", len(doc.pages)),
		observability.Int("sections", len(doc.sections)))
	return snap
}

// Loaded reports whether a document is open.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc != nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() (model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return model.Snapshot{}, ErrNoDocumentLoaded
	}
	return s.doc.snapshot(), nil
}

// Version returns the current version.
func (s *Store) Version() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return 0, ErrNoDocumentLoaded
	}
	return s.doc.version, nil
}

// Apply runs m if expectedVersion matches the current version, or always
// when it is AnyVersion. It returns the new version.
func (s *Store) Apply(m Mutation, expectedVersion int) (int, error) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return 0, ErrNoDocumentLoaded
	}
	d := s.doc
	if expectedVersion != AnyVersion && expectedVersion != d.version {
		current := d.version
		s.mu.Unlock()
		s.log.Warn("stale mutation rejected",
			observability.String("mutation", m.Name()),
			observability.Int("current", current),
			observability.Int("given", expectedVersion))
		return 0, &StaleVersionError{Current: current, Given: expectedVersion}
	}
	logLen := len(d.editLog)
	ctx := applyContext{version: d.version + 1, now: s.opts.Now(), newID: s.opts.NewID, sections: s.opts.Sections}
	if err := m.apply(d, ctx); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("%s: %w", m.Name(), err)
	}
	d.version++
	ev := Event{Version: d.version, Mutation: m.Name()}
	if len(d.editLog) > logLen {
		ev.Edits = model.CloneEditLog(d.editLog[logLen:])
	}

	// Hand off to the notify lock before releasing the state lock so events
	// reach subscribers in version order.
	s.notifyMu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	if len(subs) > 0 {
		ev.Snapshot = d.snapshot()
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
	s.notifyMu.Unlock()

	s.log.Debug("mutation applied",
		observability.String("mutation", m.Name()),
		observability.Int("version", ev.Version))
	return ev.Version, nil
}

// Subscribe registers fn for events after each applied mutation. fn runs
// synchronously, in version order, and must not call any Store method: the
// event carries the state it needs. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.subs, id)
	}
}

// SetViewport records the page and zoom shown by the UI. It does not
// advance the version.
func (s *Store) SetViewport(page int, zoom float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoDocumentLoaded
	}
	if page < 0 || page >= len(s.doc.pages) {
		return fmt.Errorf("page %d out of range", page)
	}
	if zoom <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", zoom)
	}
	s.doc.viewport = model.Viewport{CurrentPage: page, Zoom: zoom}
	return nil
}

// Document is the state an exporter needs.
type Document struct {
	Parsed   *extractor.Result
	Pages    []model.Page
	Sections []model.ResumeSection
	Edits    []model.EditOperation
	Version  int
}

// Document returns a consistent copy of the export inputs. Parsed is shared
// and must be treated as read-only.
func (s *Store) Document() (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return Document{}, ErrNoDocumentLoaded
	}
	d := s.doc
	return Document{
		Parsed:   d.parsed,
		Pages:    model.ClonePages(d.pages),
		Sections: model.CloneSections(d.sections),
		Edits:    model.CloneEditLog(d.editLog),
		Version:  d.version,
	}, nil
}

// UpdateTextRun applies an UpdateTextRun mutation without a version check.
func (s *Store) UpdateTextRun(pageIndex int, runID, text string, style *model.StyleOverrides) (int, error) {
	return s.Apply(UpdateTextRun{PageIndex: pageIndex, RunID: runID, Text: &text, Style: style}, AnyVersion)
}

// UndoLast applies an UndoLast mutation without a version check.
func (s *Store) UndoLast() (int, error) {
	return s.Apply(UndoLast{}, AnyVersion)
}
