package parser

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
)

const maxPageTreeDepth = 64

// Rect is a PDF rectangle in default user space: llx, lly, urx, ury.
type Rect [4]float64

func (r Rect) Width() float64  { return r[2] - r[0] }
func (r Rect) Height() float64 { return r[3] - r[1] }

// PageInfo is a leaf of the page tree with inherited attributes applied.
type PageInfo struct {
	Index     int
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  Rect
	CropBox   Rect
	Rotate    int
	Resources *raw.DictObj
}

type inherited struct {
	mediaBox  *Rect
	cropBox   *Rect
	rotate    *int
	resources *raw.DictObj
}

// Pages walks the page tree in document order.
func Pages(doc *raw.Document) ([]PageInfo, error) {
	root, ok := doc.Root()
	if !ok {
		return nil, ErrNoPages
	}
	pagesRef, ok := root.Get("Pages")
	if !ok {
		return nil, ErrNoPages
	}
	var out []PageInfo
	seen := make(map[raw.ObjectRef]bool)
	if err := walkPages(doc, pagesRef, inherited{}, seen, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkPages(doc *raw.Document, node raw.Object, inh inherited, seen map[raw.ObjectRef]bool, depth int, out *[]PageInfo) error {
	if depth > maxPageTreeDepth {
		return fmt.Errorf("page tree deeper than %d", maxPageTreeDepth)
	}
	var ref raw.ObjectRef
	if r, ok := node.(raw.RefObj); ok {
		if seen[r.R] {
			return fmt.Errorf("page tree cycle at %s", r.R)
		}
		seen[r.R] = true
		ref = r.R
	}
	dict, ok := doc.AsDict(node)
	if !ok {
		return nil
	}
	if box, ok := rectValue(doc, dict, "MediaBox"); ok {
		inh.mediaBox = &box
	}
	if box, ok := rectValue(doc, dict, "CropBox"); ok {
		inh.cropBox = &box
	}
	if n, ok := doc.AsNumber(dict.KV["Rotate"]); ok {
		rot := int(n)
		inh.rotate = &rot
	}
	if res, ok := doc.DictValue(dict, "Resources"); ok {
		inh.resources = res
	}

	typ, _ := doc.AsName(dict.KV["Type"])
	kids, hasKids := doc.AsArray(dict.KV["Kids"])
	if typ == "Pages" || (typ == "" && hasKids) {
		if !hasKids {
			return nil
		}
		for _, kid := range kids.Items {
			if err := walkPages(doc, kid, inh, seen, depth+1, out); err != nil {
				return err
			}
		}
		return nil
	}

	page := PageInfo{Index: len(*out), Ref: ref, Dict: dict, Resources: inh.resources}
	page.MediaBox = Rect{0, 0, 612, 792}
	if inh.mediaBox != nil {
		page.MediaBox = *inh.mediaBox
	}
	page.CropBox = page.MediaBox
	if inh.cropBox != nil {
		page.CropBox = *inh.cropBox
	}
	if inh.rotate != nil {
		page.Rotate = ((*inh.rotate%360)+360)%360
	}
	if page.Resources == nil {
		page.Resources = raw.Dict()
	}
	*out = append(*out, page)
	return nil
}

func rectValue(doc *raw.Document, dict *raw.DictObj, key string) (Rect, bool) {
	arr, ok := doc.AsArray(dict.KV[key])
	if !ok || arr.Len() != 4 {
		return Rect{}, false
	}
	var r Rect
	for i, it := range arr.Items {
		v, ok := doc.AsNumber(it)
		if !ok {
			return Rect{}, false
		}
		r[i] = v
	}
	if r[0] > r[2] {
		r[0], r[2] = r[2], r[0]
	}
	if r[1] > r[3] {
		r[1], r[3] = r[3], r[1]
	}
	return r, true
}

// PageContents decodes and concatenates a page's content streams. Streams are
// joined with a newline so operators never straddle a boundary.
func PageContents(ctx context.Context, doc *raw.Document, page PageInfo, pipeline *filters.Pipeline) ([]byte, error) {
	if pipeline == nil {
		pipeline = filters.NewDefaultPipeline()
	}
	var streams []*raw.StreamObj
	switch v := doc.Resolve(page.Dict.KV["Contents"]).(type) {
	case *raw.StreamObj:
		streams = append(streams, v)
	case *raw.ArrayObj:
		for _, it := range v.Items {
			if st, ok := doc.Resolve(it).(*raw.StreamObj); ok {
				streams = append(streams, st)
			}
		}
	}
	var buf bytes.Buffer
	for i, st := range streams {
		data, err := pipeline.DecodeStream(ctx, doc, st)
		if err != nil {
			return nil, fmt.Errorf("page %d content stream %d: %w", page.Index+1, i, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// DecodeTextString decodes a PDF text string: UTF-16 with a byte order mark,
// or PDFDocEncoding, which matches Latin-1 for the printable range.
func DecodeTextString(b []byte) string {
	if len(b) >= 2 && ((b[0] == 0xFE && b[1] == 0xFF) || (b[0] == 0xFF && b[1] == 0xFE)) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(b); err == nil {
			return string(out)
		}
	}
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return string(b[3:])
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
