// Package server exposes document sessions over a JSON HTTP API. Each
// uploaded file gets a session holding its store, an edit queue and a
// debouncer; state is saved to a storage.Repository after every applied
// mutation.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/wudi/pdfedit/editqueue"
	"github.com/wudi/pdfedit/export"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/storage"
	"github.com/wudi/pdfedit/store"
)

var ErrDocumentNotFound = errors.New("document not found")

type Options struct {
	Logger     observability.Logger
	Repository storage.Repository
	Store      store.Options
	// Exporter defaults to a LocalExporter with export.DefaultOptions.
	Exporter    export.Exporter
	CORSOrigins []string
	// MaxUpload bounds request bodies, in bytes. Zero means 32 MiB.
	MaxUpload int64
	// Debounce is the quiet period for debounced mutations.
	Debounce      time.Duration
	KeepAltTitles bool
	// SaveTimeout bounds one repository write. Zero means 10s.
	SaveTimeout time.Duration
}

type Server struct {
	opts     Options
	log      observability.Logger
	repo     storage.Repository
	exporter export.Exporter

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id        string
	source    []byte
	store     *store.Store
	queue     *editqueue.Queue
	debouncer *editqueue.Debouncer
	stop      func()
}

func New(opts Options) *Server {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = 32 << 20
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 10 * time.Second
	}
	log := observability.OrNop(opts.Logger)
	if opts.Store.Logger == nil {
		opts.Store.Logger = log
	}
	repo := opts.Repository
	if repo == nil {
		repo = storage.NewMemory()
	}
	exp := opts.Exporter
	if exp == nil {
		eo := export.DefaultOptions()
		eo.Logger = log
		exp = export.NewLocal(eo)
	}
	return &Server{
		opts:     opts,
		log:      log,
		repo:     repo,
		exporter: exp,
		sessions: make(map[string]*session),
	}
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/documents", s.upload).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}", s.snapshot).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.remove).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/mutations", s.mutate).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/text-at", s.textAt).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/runs", s.runs).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/sections", s.sections).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/export", s.export).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/import", s.importClipboard).Methods(http.MethodPost)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", HeaderVersion},
		MaxAge:         300,
	})
	return c.Handler(router)
}

// Close commits pending debounced edits, saves every session and closes
// the repository.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.settle(ctx); err != nil {
			errs = append(errs, err)
		}
		sess.stop()
		if err := s.save(ctx, sess); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// open installs a session for a freshly loaded store. When id already has
// a live session that session is returned with false.
func (s *Server) open(id string, source []byte, st *store.Store) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, false
	}
	q := editqueue.New(st, s.log.With(observability.String("document", id)))
	sess := &session{
		id:        id,
		source:    source,
		store:     st,
		queue:     q,
		debouncer: editqueue.NewDebouncer(q, s.opts.Debounce),
	}
	sess.stop = st.Subscribe(func(ev store.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
		defer cancel()
		if err := s.put(ctx, sess, ev.Snapshot); err != nil {
			s.log.Error("save failed",
				observability.String("document", id),
				observability.Int("version", ev.Version),
				observability.Error("err", err))
		}
	})
	s.sessions[id] = sess
	return sess, true
}

func (s *Server) save(ctx context.Context, sess *session) error {
	snap, err := sess.store.Snapshot()
	if err != nil {
		return err
	}
	return s.put(ctx, sess, snap)
}

func (s *Server) put(ctx context.Context, sess *session, snap model.Snapshot) error {
	return s.repo.Save(ctx, storage.Record{ID: sess.id, Source: sess.source, Snapshot: snap})
}

// lookup finds a live session, restoring it from the repository when the
// process no longer holds it.
func (s *Server) lookup(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}
	rec, err := s.repo.Load(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	st := store.New(s.opts.Store)
	if _, err := st.Restore(ctx, rec.Source, rec.Snapshot); err != nil {
		return nil, err
	}
	sess, created := s.open(id, rec.Source, st)
	if created {
		s.log.Info("session restored", observability.String("document", id))
	}
	return sess, nil
}

// drop forgets a live session.
func (s *Server) drop(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.stop()
	}
}

// settle commits debounced edits and waits for the queue to drain.
func (sess *session) settle(ctx context.Context) error {
	for _, p := range sess.debouncer.FlushAll() {
		if _, err := p.Wait(ctx); err != nil {
			return err
		}
	}
	done := make(chan struct{})
	go func() {
		sess.queue.Idle()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
