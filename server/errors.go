package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp/syntax"

	"github.com/wudi/pdfedit/clipboard"
	"github.com/wudi/pdfedit/export"
	"github.com/wudi/pdfedit/extractor"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/store"
)

// Error kinds reported in the "kind" field of error bodies.
const (
	KindBadRequest           = "bad_request"
	KindNotFound             = "not_found"
	KindInvalidPDFFormat     = "invalid_pdf_format"
	KindEmptyInput           = "empty_input"
	KindCorruptContentStream = "corrupt_content_stream"
	KindNoDocumentLoaded     = "no_document_loaded"
	KindStaleVersion         = "stale_version"
	KindRunNotFound          = "run_not_found"
	KindExportFailed         = "export_failed"
	KindRemoteExport         = "remote_export_failed"
	KindTooLarge             = "too_large"
	KindTimeout              = "timeout"
	KindInternal             = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	// Current is set for stale version errors.
	Current *int `json:"currentVersion,omitempty"`
}

// requestError is a client mistake detected by a handler.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// classify maps err to a status code and kind.
func classify(err error) (int, string) {
	var (
		reqErr   *requestError
		stale    *store.StaleVersionError
		tooLarge *http.MaxBytesError
		syntaxEr *syntax.Error
		exportEr *export.Error
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &syntaxEr),
		errors.Is(err, store.ErrEmptyNeedle),
		errors.Is(err, clipboard.ErrUnknownFormat), errors.Is(err, clipboard.ErrEmpty):
		return http.StatusBadRequest, KindBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, KindTooLarge
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrSectionNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, store.ErrNoDocumentLoaded):
		return http.StatusNotFound, KindNoDocumentLoaded
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound, KindRunNotFound
	case errors.As(err, &stale):
		return http.StatusConflict, KindStaleVersion
	case errors.Is(err, extractor.ErrEmptyInput):
		return http.StatusBadRequest, KindEmptyInput
	case errors.Is(err, extractor.ErrInvalidPDFFormat):
		return http.StatusUnprocessableEntity, KindInvalidPDFFormat
	case errors.Is(err, extractor.ErrCorruptContentStream):
		return http.StatusUnprocessableEntity, KindCorruptContentStream
	case errors.Is(err, export.ErrRemoteResponse):
		return http.StatusBadGateway, KindRemoteExport
	case errors.As(err, &exportEr):
		return http.StatusInternalServerError, KindExportFailed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, KindTimeout
	}
	return http.StatusInternalServerError, KindInternal
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	body := errorBody{Error: err.Error(), Kind: kind}
	var stale *store.StaleVersionError
	if errors.As(err, &stale) {
		body.Current = &stale.Current
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.Error("err", err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
