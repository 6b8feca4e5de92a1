package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/recovery"
	"github.com/wudi/pdfedit/scanner"
	"github.com/wudi/pdfedit/security"
	"github.com/wudi/pdfedit/xref"
)

var (
	ErrNotPDF  = errors.New("missing %PDF header")
	ErrNoPages = errors.New("document has no page tree")
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery recovery.Strategy
	XRef     xref.ResolverConfig
	Scanner  scanner.Config
	Password string
	// HeaderWindow is how far into the file the %PDF marker may appear.
	HeaderWindow int
}

func DefaultConfig() Config {
	return Config{
		Recovery:     recovery.NewStrictStrategy(),
		Scanner:      scanner.DefaultConfig(),
		HeaderWindow: 1024,
	}
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.HeaderWindow <= 0 {
		cfg.HeaderWindow = 1024
	}
	if cfg.XRef.Recovery == nil {
		cfg.XRef.Recovery = cfg.Recovery
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	version, err := p.headerVersion(data)
	if err != nil {
		return nil, err
	}
	table, err := xref.NewResolver(p.cfg.XRef).Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}

	loader := newObjectLoader(data, table, p.cfg)
	doc := raw.NewDocument()
	doc.Version = version
	doc.Trailer = table.Trailer
	doc.StartXRef = table.StartXRef
	doc.XRefStream = table.IsStream
	doc.Size = table.Size()
	doc.Repaired = table.Repaired

	if encObj, ok := table.Trailer.Get("Encrypt"); ok {
		if err := p.setupSecurity(ctx, loader, encObj); err != nil {
			return nil, fmt.Errorf("security setup: %w", err)
		}
		doc.Encrypted = true
	}

	for _, objNum := range table.Objects() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if objNum == 0 {
			continue
		}
		e, _ := table.Lookup(objNum)
		ref := raw.ObjectRef{Num: objNum, Gen: e.Gen}
		if e.Kind == xref.EntryCompressed {
			ref.Gen = 0
		}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if p.skip(ctx, err, objNum) {
				continue
			}
			return nil, fmt.Errorf("load object %d: %w", objNum, err)
		}
		doc.Objects[ref] = obj
	}

	if _, ok := doc.Root(); !ok {
		if !findCatalog(doc) {
			return nil, fmt.Errorf("%w: no catalog", ErrNoPages)
		}
	}
	populateMetadata(doc)
	return doc, nil
}

func (p *DocumentParser) skip(ctx context.Context, err error, objNum int) bool {
	if p.cfg.Recovery == nil {
		return false
	}
	return p.cfg.Recovery.OnError(ctx, err, recovery.Location{ObjectNum: objNum, Component: "loader"}) != recovery.ActionFail
}

func (p *DocumentParser) headerVersion(data []byte) (string, error) {
	window := data
	if len(window) > p.cfg.HeaderWindow {
		window = window[:p.cfg.HeaderWindow]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return "", ErrNotPDF
	}
	rest := window[idx+len("%PDF-"):]
	end := 0
	for end < len(rest) && end < 8 && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	return string(rest[:end]), nil
}

func (p *DocumentParser) setupSecurity(ctx context.Context, loader *objectLoader, encObj raw.Object) error {
	var enc *raw.DictObj
	switch v := encObj.(type) {
	case *raw.DictObj:
		enc = v
	case raw.RefObj:
		obj, err := loader.Load(ctx, v.R)
		if err != nil {
			return err
		}
		d, ok := obj.(*raw.DictObj)
		if !ok {
			return fmt.Errorf("/Encrypt is %s", obj.Type())
		}
		enc = d
		loader.encryptRef = &v.R
	default:
		return fmt.Errorf("/Encrypt is %s", encObj.Type())
	}
	var id []byte
	if arr, ok := loader.table.Trailer.KV["ID"].(*raw.ArrayObj); ok && arr.Len() > 0 {
		if s, ok := arr.Items[0].(raw.StringObj); ok {
			id = s.Bytes
		}
	}
	h, err := security.NewStandardHandler(enc, id, p.cfg.Password)
	if err != nil {
		return err
	}
	loader.security = h
	// Objects loaded before the handler existed are still ciphertext.
	loader.cache = make(map[raw.ObjectRef]raw.Object)
	return nil
}

// findCatalog repairs a trailer without /Root by searching for the catalog.
func findCatalog(doc *raw.Document) bool {
	for ref, obj := range doc.Objects {
		d, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		if t, _ := d.NameValue("Type"); t == "Catalog" {
			doc.Trailer = doc.Trailer.Clone()
			doc.Trailer.Set("Root", raw.RefObj{R: ref})
			return true
		}
	}
	return false
}

func populateMetadata(doc *raw.Document) {
	info, ok := doc.DictValue(doc.Trailer, "Info")
	if !ok {
		return
	}
	text := func(key string) string {
		s, ok := doc.Resolve(info.KV[key]).(raw.StringObj)
		if !ok {
			return ""
		}
		return strings.TrimSpace(DecodeTextString(s.Bytes))
	}
	doc.Metadata = raw.DocumentMetadata{
		Title:    text("Title"),
		Author:   text("Author"),
		Creator:  text("Creator"),
		Producer: text("Producer"),
	}
}
