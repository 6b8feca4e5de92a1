// Package export renders the edited document back to PDF bytes.
//
// LocalExporter appends an incremental update to the original file: the
// operations that drew replaced text are neutralised, and an overlay covers
// the old glyphs and draws the new text in a standard font. RemoteExporter
// delegates to an HTTP rendering backend, and FallbackExporter chains two
// strategies.
package export

import (
	"context"
	"errors"

	"github.com/wudi/pdfedit/builder"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/store"
)

var (
	ErrNoDocumentLoaded = store.ErrNoDocumentLoaded
	ErrNoSource         = errors.New("source bytes unavailable")
)

// Error reports a failed export. The document state is left untouched.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return "export failed: " + e.Cause.Error() }

func (e *Error) Unwrap() error { return e.Cause }

// Source supplies the state to export. *store.Store implements it.
type Source interface {
	Document() (store.Document, error)
}

// Exporter turns the current document state into PDF bytes.
type Exporter interface {
	Export(ctx context.Context, src Source) ([]byte, error)
}

type Options struct {
	Logger observability.Logger
	Tracer observability.Tracer
	// Compress stores new content streams with FlateDecode.
	Compress bool
	// CoverColor fills the rectangles drawn over replaced text.
	CoverColor builder.Color
	// Verify re-reads every exported file with an independent reader and
	// fails the export when a substituted text cannot be found.
	Verify bool
}

func DefaultOptions() Options {
	return Options{Compress: true, CoverColor: builder.White}
}

// FallbackExporter tries Primary and, when it fails for any reason other
// than a missing document or a cancelled context, Secondary.
type FallbackExporter struct {
	Primary   Exporter
	Secondary Exporter
	Logger    observability.Logger
}

func (f *FallbackExporter) Export(ctx context.Context, src Source) ([]byte, error) {
	out, err := f.Primary.Export(ctx, src)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, ErrNoDocumentLoaded) || ctx.Err() != nil {
		return nil, err
	}
	observability.OrNop(f.Logger).Warn("primary exporter failed, falling back", observability.Error("cause", err))
	return f.Secondary.Export(ctx, src)
}
