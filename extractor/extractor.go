// Package extractor turns PDF bytes into pages of positioned text runs and
// the set of fonts they use.
package extractor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/parser"
)

var (
	ErrInvalidPDFFormat     = errors.New("invalid pdf format")
	ErrEmptyInput           = errors.New("empty input")
	ErrCorruptContentStream = errors.New("corrupt content stream")
)

type Config struct {
	Parser parser.Config
	// MaxFormDepth bounds nested form XObjects.
	MaxFormDepth int
	// RowTolerance is the vertical distance under which runs share a row
	// when ordering a page.
	RowTolerance float64
	Logger       observability.Logger
	Tracer       observability.Tracer
}

func DefaultConfig() Config {
	return Config{
		Parser:       parser.DefaultConfig(),
		MaxFormDepth: 8,
		RowTolerance: 3,
	}
}

// Result is a parsed document.
type Result struct {
	Pages []model.Page
	Fonts []model.Font
	// Doc is the object graph the runs were read from.
	Doc *raw.Document
	// PageInfo holds the page dictionaries, index-aligned with Pages.
	PageInfo []parser.PageInfo
	// Source is a private copy of the input bytes.
	Source []byte
	// Fingerprint is the hex BLAKE2b-256 digest of Source.
	Fingerprint string
}

type Extractor struct {
	cfg      Config
	parser   *parser.DocumentParser
	pipeline *filters.Pipeline
	log      observability.Logger
	tracer   observability.Tracer
}

func New(cfg Config) *Extractor {
	if cfg.MaxFormDepth <= 0 {
		cfg.MaxFormDepth = 8
	}
	if cfg.RowTolerance <= 0 {
		cfg.RowTolerance = 3
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Extractor{
		cfg:      cfg,
		parser:   parser.NewDocumentParser(cfg.Parser),
		pipeline: filters.NewDefaultPipeline(),
		log:      observability.OrNop(cfg.Logger),
		tracer:   tracer,
	}
}

// Parse extracts a document with the default configuration.
func Parse(ctx context.Context, data []byte) (*Result, error) {
	return New(DefaultConfig()).Parse(ctx, data)
}

func (e *Extractor) Parse(ctx context.Context, data []byte) (_ *Result, err error) {
	ctx, span := e.tracer.StartSpan(ctx, observability.SpanParse)
	defer func() {
		span.SetError(err)
		span.Finish()
	}()

	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	start := time.Now()
	src := make([]byte, len(data))
	copy(src, data)

	doc, err := e.parser.Parse(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPDFFormat, err)
	}
	infos, err := parser.Pages(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPDFFormat, err)
	}

	fc := newFontCatalog(ctx, doc, e.pipeline)
	res := &Result{Doc: doc, PageInfo: infos, Source: src}
	sum := blake2b.Sum256(src)
	res.Fingerprint = hex.EncodeToString(sum[:])

	runCount := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := e.page(ctx, doc, info, fc)
		if err != nil {
			return nil, err
		}
		runCount += len(page.TextRuns)
		res.Pages = append(res.Pages, page)
	}
	res.Fonts = fc.discovered()

	span.SetTag("pages", len(res.Pages))
	e.log.Info("document parsed",
		observability.Int("pages", len(res.Pages)),
		observability.Int("runs", runCount),
		observability.Int("fonts", len(res.Fonts)),
		observability.Duration("elapsed", time.Since(start)))
	return res, nil
}

// fontCatalog loads each font dictionary once and records the families seen.
type fontCatalog struct {
	ctx      context.Context
	doc      *raw.Document
	pipeline *filters.Pipeline
	byDict   map[*raw.DictObj]*fonts.Font
	order    []string
	seen     map[string]*model.Font
}

func newFontCatalog(ctx context.Context, doc *raw.Document, pipeline *filters.Pipeline) *fontCatalog {
	return &fontCatalog{
		ctx:      ctx,
		doc:      doc,
		pipeline: pipeline,
		byDict:   make(map[*raw.DictObj]*fonts.Font),
		seen:     make(map[string]*model.Font),
	}
}

// lookup resolves a font resource name against resources. Unknown names
// yield a font with standard fallback metrics.
func (c *fontCatalog) lookup(resources *raw.DictObj, name string) *fonts.Font {
	var dict *raw.DictObj
	if fontRes, ok := c.doc.DictValue(resources, "Font"); ok {
		dict, _ = c.doc.DictValue(fontRes, name)
	}
	if dict == nil {
		return fonts.Load(c.ctx, c.doc, name, nil, c.pipeline)
	}
	if f, ok := c.byDict[dict]; ok {
		return f
	}
	f := fonts.Load(c.ctx, c.doc, name, dict, c.pipeline)
	c.byDict[dict] = f
	return f
}

func (c *fontCatalog) note(f *fonts.Font) {
	entry, ok := c.seen[f.Family]
	if !ok {
		entry = &model.Font{Family: f.Family, FullName: f.FullName}
		c.seen[f.Family] = entry
		c.order = append(c.order, f.Family)
	}
	entry.IsEmbedded = entry.IsEmbedded || f.Embedded
	entry.IsStandard = entry.IsStandard || f.Standard
	entry.Weights = addOnce(entry.Weights, weightOf(f.Bold))
	entry.Styles = addOnce(entry.Styles, styleOf(f.Italic))
}

// discovered returns fonts in first-use order followed by the standard
// families not already present.
func (c *fontCatalog) discovered() []model.Font {
	out := make([]model.Font, 0, len(c.order)+len(fonts.StandardFamilies))
	for _, fam := range c.order {
		out = append(out, *c.seen[fam])
	}
	for _, fam := range fonts.StandardFamilies {
		if _, ok := c.seen[fam]; ok {
			continue
		}
		out = append(out, model.Font{
			Family:     fam,
			IsStandard: true,
			Weights:    []model.Weight{model.WeightNormal, model.WeightBold},
			Styles:     []model.Style{model.StyleNormal, model.StyleItalic},
		})
	}
	return out
}

func addOnce[T comparable](list []T, v T) []T {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func weightOf(bold bool) model.Weight {
	if bold {
		return model.WeightBold
	}
	return model.WeightNormal
}

func styleOf(italic bool) model.Style {
	if italic {
		return model.StyleItalic
	}
	return model.StyleNormal
}
