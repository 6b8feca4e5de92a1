package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wudi/pdfedit/builder"
	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/contentstream/editor"
	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/parser"
	"github.com/wudi/pdfedit/writer"
)

// FallbackFont is embedded in every export and used for unknown families.
const FallbackFont = "Helvetica"

// LocalExporter renders edits without leaving the process.
type LocalExporter struct {
	opts     Options
	log      observability.Logger
	tracer   observability.Tracer
	pipeline *filters.Pipeline
}

func NewLocal(opts Options) *LocalExporter {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &LocalExporter{
		opts:     opts,
		log:      observability.OrNop(opts.Logger),
		tracer:   tracer,
		pipeline: filters.NewDefaultPipeline(),
	}
}

func (e *LocalExporter) Export(ctx context.Context, src Source) ([]byte, error) {
	doc, err := src.Document()
	if err != nil {
		return nil, err
	}
	if doc.Parsed == nil || len(doc.Parsed.Source) == 0 || doc.Parsed.Doc == nil {
		return nil, &Error{Cause: ErrNoSource}
	}
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanExport)
	defer span.Finish()
	start := time.Now()

	p := buildPlan(doc)
	if p.empty() {
		out := make([]byte, len(doc.Parsed.Source))
		copy(out, doc.Parsed.Source)
		e.log.Info("export done",
			observability.Int("applied", 0),
			observability.Int("skipped", p.skipped),
			observability.Int("bytes", len(out)))
		return out, nil
	}

	rawDoc := doc.Parsed.Doc
	changes := writer.NewChanges(rawDoc)
	cache := newFontCache(changes)
	for _, pp := range p.pages {
		for _, ed := range pp.edits {
			if ed.edited && !ed.hidden {
				cache.ref(ed.font())
			}
		}
	}
	for _, pp := range p.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pp.index < 0 || pp.index >= len(doc.Parsed.PageInfo) {
			return nil, &Error{Cause: fmt.Errorf("page %d out of range", pp.index)}
		}
		if err := e.renderPage(ctx, rawDoc, doc.Parsed.PageInfo[pp.index], pp, changes, cache); err != nil {
			span.SetError(err)
			return nil, &Error{Cause: err}
		}
	}

	mode := writer.ModeIncremental
	if rawDoc.Encrypted || rawDoc.Repaired || rawDoc.StartXRef <= 0 {
		mode = writer.ModeRewrite
	}
	out, err := writer.New(writer.Config{Mode: mode}).Bytes(ctx, doc.Parsed.Source, rawDoc, changes)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		span.SetError(err)
		return nil, &Error{Cause: err}
	}
	if e.opts.Verify {
		if err := Verify(out, len(doc.Parsed.PageInfo), p.expectations()); err != nil {
			span.SetError(err)
			return nil, &Error{Cause: err}
		}
	}
	span.SetTag("edits", p.applied)
	e.log.Info("export done",
		observability.Int("applied", p.applied),
		observability.Int("hidden", p.hidden),
		observability.Int("skipped", p.skipped),
		observability.String("mode", mode.String()),
		observability.Int("bytes", len(out)),
		observability.Duration("elapsed", time.Since(start)))
	return out, nil
}

// renderPage rewrites one page: the showing operations of affected runs are
// blanked, and an overlay masks them and draws the replacement text. Both
// go into a single new content stream.
func (e *LocalExporter) renderPage(ctx context.Context, doc *raw.Document, info parser.PageInfo, pp *pagePlan, changes *writer.Changes, cache *fontCache) error {
	content, err := parser.PageContents(ctx, doc, info, e.pipeline)
	if err != nil {
		return err
	}
	ops, err := contentstream.Parse(content)
	if err != nil {
		return fmt.Errorf("page %d: %w", info.Index+1, err)
	}
	byStart := make(map[int64]contentstream.Operation, len(ops))
	for _, op := range ops {
		byStart[op.Start] = op
	}

	fontRes := raw.Dict()
	if d, ok := doc.DictValue(info.Resources, "Font"); ok {
		fontRes = d.Clone()
	}
	cb := builder.New(fontRes.Keys()...)

	var patches []editor.Patch
	patched := make(map[int64]bool)
	for _, ed := range pp.edits {
		src := ed.run.Source
		if src.InForm || src.End <= src.Start || patched[src.Start] {
			continue
		}
		op, ok := byStart[src.Start]
		if !ok || op.End != src.End {
			e.log.Debug("show operation not found", observability.String("run", ed.run.ID))
			continue
		}
		patched[src.Start] = true
		patches = append(patches, editor.Patch{
			Start:       src.Start,
			End:         src.End,
			Replacement: editor.Blank(op, src.Advance, src.TextSize, src.HScale),
		})
	}

	for _, ed := range pp.edits {
		c := ed.cover()
		cb.DrawRectangle(c.X, c.Y, c.Width, c.Height, builder.RectOptions{Fill: true, FillColor: e.opts.CoverColor})
	}
	pageHeight := info.MediaBox.Height()
	for _, ed := range pp.edits {
		if ed.hidden || !ed.edited || ed.text == "" {
			continue
		}
		color, err := ParseColor(ed.color())
		if err != nil {
			e.log.Debug("unreadable color, drawing black", observability.String("run", ed.run.ID), observability.Error("err", err))
			color = builder.Black
		}
		x, y := ed.origin(pageHeight)
		cb.DrawText(ed.text, x, y, builder.TextOptions{Font: ed.font(), FontSize: ed.fontSize(), Color: color})
	}

	body, err := editor.Apply(content, patches)
	if err != nil {
		return fmt.Errorf("page %d: %w", info.Index+1, err)
	}
	var buf bytes.Buffer
	buf.WriteString("q\n")
	buf.Write(body)
	buf.WriteString("\nQ\n")
	buf.Write(cb.Bytes())
	stream, err := e.stream(buf.Bytes())
	if err != nil {
		return err
	}
	contentRef := changes.Add(stream)

	for _, f := range cb.Fonts() {
		ref := cache.ref(f.BaseFont)
		fontRes.Set(f.Name, raw.RefObj{R: ref})
	}
	resources := raw.Dict()
	if info.Resources != nil {
		resources = info.Resources.Clone()
	}
	resources.Set("Font", fontRes)

	page := info.Dict.Clone()
	page.Set("Contents", raw.RefObj{R: contentRef})
	page.Set("Resources", resources)
	changes.Replace(info.Ref, page)
	return nil
}

func (e *LocalExporter) stream(data []byte) (*raw.StreamObj, error) {
	dict := raw.Dict()
	if !e.opts.Compress {
		return raw.NewStream(dict, data), nil
	}
	enc, err := filters.EncodeFlate(data)
	if err != nil {
		return nil, err
	}
	dict.Set("Filter", raw.Name("FlateDecode"))
	return raw.NewStream(dict, enc), nil
}

// fontCache holds the font objects of one export, keyed by standard name.
type fontCache struct {
	changes *writer.Changes
	refs    map[string]raw.ObjectRef
}

func newFontCache(changes *writer.Changes) *fontCache {
	c := &fontCache{changes: changes, refs: make(map[string]raw.ObjectRef)}
	c.ref(FallbackFont)
	return c
}

func (c *fontCache) ref(baseFont string) raw.ObjectRef {
	if ref, ok := c.refs[baseFont]; ok {
		return ref
	}
	ref := c.changes.Add(builder.FontDict(baseFont))
	c.refs[baseFont] = ref
	return ref
}

// expectations lists the texts Verify looks for.
func (p *plan) expectations() []Expectation {
	var out []Expectation
	for _, pp := range p.pages {
		for _, ed := range pp.edits {
			if ed.edited && !ed.hidden && ed.text != "" {
				out = append(out, Expectation{PageIndex: pp.index, Text: ed.text})
			}
		}
	}
	return out
}
