package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wudi/pdfedit/clipboard"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/sections"
	"github.com/wudi/pdfedit/storage"
	"github.com/wudi/pdfedit/store"
)

// HeaderVersion carries the document version on export responses.
const HeaderVersion = "X-Document-Version"

var ErrSectionNotFound = errors.New("section not found")

type documentResponse struct {
	ID       string                `json:"id"`
	Version  int                   `json:"version"`
	Restored bool                  `json:"restored"`
	Pages    []model.Page          `json:"pages"`
	Sections []model.ResumeSection `json:"sections"`
	Fonts    []model.Font          `json:"fonts"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "pdfedit"})
}

// upload loads a PDF sent as the raw body or as the "file" field of a
// multipart form. A file seen before resumes its saved session.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	data, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	st := store.New(s.opts.Store)
	snap, err := st.Load(ctx, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := snap.DocumentID

	restored := false
	rec, err := s.repo.Load(ctx, id)
	switch {
	case err == nil:
		if snap, err = st.Restore(ctx, data, rec.Snapshot); err != nil {
			s.writeError(w, r, err)
			return
		}
		restored = true
	case !errors.Is(err, storage.ErrNotFound):
		s.writeError(w, r, err)
		return
	}

	sess, created := s.open(id, data, st)
	if !created {
		restored = true
		if snap, err = sess.store.Snapshot(); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else if !restored {
		if err := s.save(ctx, sess); err != nil {
			s.drop(id)
			s.writeError(w, r, err)
			return
		}
	}

	status := http.StatusCreated
	if restored {
		status = http.StatusOK
	}
	writeJSON(w, status, documentResponse{
		ID:       id,
		Version:  snap.CurrentVersion,
		Restored: restored,
		Pages:    snap.Pages,
		Sections: snap.Sections,
		Fonts:    snap.Fonts,
	})
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, badRequest("file is required")
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := sess.store.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	_, live := s.sessions[id]
	s.mu.Unlock()
	s.drop(id)
	err := s.repo.Delete(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound) && !live:
		s.writeError(w, r, ErrDocumentNotFound)
		return
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req mutationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Kind == kindSetViewport {
		if err := sess.store.SetViewport(req.Page, req.Zoom); err != nil {
			s.writeError(w, r, badRequest(err.Error()))
			return
		}
		version, err := sess.store.Version()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"version": version})
		return
	}
	m, err := req.mutation(s.opts.KeepAltTitles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expected := store.AnyVersion
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}
	if key := req.debounceKey(); req.Debounce && key != "" {
		sess.debouncer.Set(key, m, expected)
		writeJSON(w, http.StatusAccepted, map[string]bool{"pending": true})
		return
	}
	version, err := sess.queue.Apply(r.Context(), m, expected)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"version": version})
}

func (s *Server) textAt(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		s.writeError(w, r, badRequest("page must be an integer"))
		return
	}
	x, errX := strconv.ParseFloat(q.Get("x"), 64)
	y, errY := strconv.ParseFloat(q.Get("y"), 64)
	if errX != nil || errY != nil {
		s.writeError(w, r, badRequest("x and y must be numbers"))
		return
	}
	tolerance := float64(store.DefaultTolerance)
	if v := q.Get("tolerance"); v != "" {
		if tolerance, err = strconv.ParseFloat(v, 64); err != nil {
			s.writeError(w, r, badRequest("tolerance must be a number"))
			return
		}
	}
	run, found, err := sess.store.TextAt(page, x, y, tolerance)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := struct {
		Found bool           `json:"found"`
		Run   *model.TextRun `json:"run"`
	}{Found: found}
	if found {
		resp.Run = &run
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	runs, err := sess.store.FindTextRuns(r.URL.Query().Get("pattern"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.TextRun{}
	}
	writeJSON(w, http.StatusOK, map[string][]model.TextRun{"runs": runs})
}

func (s *Server) sections(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := sess.store.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := snap.Sections
	if merged, _ := strconv.ParseBool(r.URL.Query().Get("merged")); merged {
		out = sections.MergeByTypeWith(out, sections.MergeOptions{KeepTitleVariants: s.opts.KeepAltTitles})
	}
	if out == nil {
		out = []model.ResumeSection{}
	}
	writeJSON(w, http.StatusOK, struct {
		Version  int                   `json:"version"`
		Sections []model.ResumeSection `json:"sections"`
	}{snap.CurrentVersion, out})
}

// export commits pending edits and returns the exported file.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.settle(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.exporter.Export(r.Context(), sess.store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	version, err := sess.store.Version()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := sess.id
	if len(name) > 12 {
		name = name[:12]
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="resume-%s.pdf"`, name))
	w.Header().Set(HeaderVersion, strconv.Itoa(version))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(data))
}

type importRequest struct {
	SectionID       string `json:"sectionId"`
	AfterItemID     string `json:"afterItemId"`
	Format          string `json:"format"`
	Content         string `json:"content"`
	ExpectedVersion *int   `json:"expectedVersion"`
}

// importClipboard turns pasted content into items of one section.
func (s *Server) importClipboard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.lookup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := clipboard.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := sess.store.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !hasSection(snap.Sections, req.SectionID) {
		s.writeError(w, r, fmt.Errorf("%w: %q", ErrSectionNotFound, req.SectionID))
		return
	}
	items, err := clipboard.Items(format, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expected := store.AnyVersion
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}
	version, err := sess.queue.Apply(r.Context(), store.InsertItems(req.SectionID, req.AfterItemID, items), expected)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Version int                 `json:"version"`
		Items   []model.SectionItem `json:"items"`
	}{version, items})
}

func hasSection(secs []model.ResumeSection, id string) bool {
	for _, sec := range secs {
		if sec.ID == id {
			return true
		}
	}
	return false
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return badRequest("content type must be application/json")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.Int("status", rec.status),
			observability.Duration("elapsed", time.Since(start)))
	})
}
