// Package fonts resolves PDF font resources: name cleaning and family
// mapping, code-to-text decoding and glyph widths.
package fonts

import (
	"context"
	"unicode/utf8"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
)

const defaultCIDWidth = 1000

// Glyph is one decoded character code.
type Glyph struct {
	Code int
	Text string
	// Width is the horizontal advance in thousandths of an em.
	Width float64
	// WordSpace is set for the single-byte code 32, the only code word
	// spacing applies to.
	WordSpace bool
}

// Font is a loaded font resource.
type Font struct {
	ResourceName string
	// BaseFont is the raw /BaseFont, subset prefix included.
	BaseFont string
	Subtype  string
	// Family is the canonical family, FullName the cleaned raw name.
	Family   string
	FullName string
	Bold     bool
	Italic   bool
	Embedded bool
	Standard bool

	composite bool
	toUnicode *CMap
	encoding  Encoding
	widths    map[int]float64
	missing   float64
	metrics   Metrics
	program   *TrueType
	shaper    *Shaper
}

// Load builds a Font from a font dictionary. It never fails: missing or
// malformed entries degrade to standard metrics and WinAnsi text.
func Load(ctx context.Context, doc *raw.Document, resName string, dict *raw.DictObj, pipeline *filters.Pipeline) *Font {
	if pipeline == nil {
		pipeline = filters.NewDefaultPipeline()
	}
	f := &Font{ResourceName: resName, widths: make(map[int]float64)}
	if dict == nil {
		dict = raw.Dict()
	}
	f.BaseFont, _ = doc.AsName(dict.KV["BaseFont"])
	f.Subtype, _ = doc.AsName(dict.KV["Subtype"])
	f.composite = f.Subtype == "Type0"

	descFont := dict
	if f.composite {
		if arr, ok := doc.AsArray(dict.KV["DescendantFonts"]); ok && arr.Len() > 0 {
			if d, ok := doc.AsDict(arr.Items[0]); ok {
				descFont = d
			}
		}
	}
	descriptor, _ := doc.DictValue(descFont, "FontDescriptor")

	var weight float64
	if descriptor != nil {
		weight, _ = doc.AsNumber(descriptor.KV["FontWeight"])
		flags, _ := doc.AsNumber(descriptor.KV["Flags"])
		angle, _ := doc.AsNumber(descriptor.KV["ItalicAngle"])
		f.Italic = int(flags)&64 != 0 || angle != 0
		f.Bold = int(flags)&(1<<18) != 0
		f.missing, _ = doc.AsNumber(descriptor.KV["MissingWidth"])
		f.loadProgram(ctx, doc, descriptor, pipeline)
	}
	f.Bold = f.Bold || IsBold(f.BaseFont, weight)
	f.Italic = f.Italic || IsItalic(f.BaseFont)
	f.FullName = CleanFamily(f.BaseFont)
	if f.FullName == "" && f.program != nil {
		f.FullName = f.program.Info().Family
	}
	f.Family = ResolveFamily(f.FullName)
	f.Standard = !f.Embedded && IsStandardName(f.BaseFont)
	f.metrics = StandardMetrics(StandardName(ClassifyFamily(f.FullName), f.Bold, f.Italic))

	if st, ok := doc.Resolve(dict.KV["ToUnicode"]).(*raw.StreamObj); ok {
		if data, err := pipeline.DecodeStream(ctx, doc, st); err == nil {
			if cm := ParseToUnicode(data); cm.Len() > 0 {
				f.toUnicode = cm
			}
		}
	}

	if f.composite {
		f.loadCIDWidths(doc, descFont)
	} else {
		f.loadSimpleEncoding(doc, dict)
		f.loadSimpleWidths(doc, dict)
	}
	return f
}

func (f *Font) loadProgram(ctx context.Context, doc *raw.Document, descriptor *raw.DictObj, pipeline *filters.Pipeline) {
	for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
		st, ok := doc.Resolve(descriptor.KV[key]).(*raw.StreamObj)
		if !ok {
			continue
		}
		f.Embedded = true
		if key != "FontFile2" {
			return
		}
		data, err := pipeline.DecodeStream(ctx, doc, st)
		if err != nil {
			return
		}
		if tt, err := ParseTrueType(data); err == nil {
			f.program = tt
		}
		if sh, err := NewShaper(data); err == nil {
			f.shaper = sh
		}
		return
	}
}

func (f *Font) loadSimpleEncoding(doc *raw.Document, dict *raw.DictObj) {
	f.encoding = Standard
	if f.Standard || !f.Embedded {
		f.encoding = WinAnsi
	}
	switch enc := doc.Resolve(dict.KV["Encoding"]).(type) {
	case raw.NameObj:
		if base, ok := BaseEncoding(enc.Val); ok {
			f.encoding = base
		}
	case *raw.DictObj:
		if name, ok := doc.AsName(enc.KV["BaseEncoding"]); ok {
			if base, ok := BaseEncoding(name); ok {
				f.encoding = base
			}
		}
		if diffs, ok := doc.AsArray(enc.KV["Differences"]); ok {
			code := 0
			for _, it := range diffs.Items {
				switch v := doc.Resolve(it).(type) {
				case raw.NumberObj:
					code = int(v.Int())
				case raw.NameObj:
					if code >= 0 && code < 256 {
						if r, ok := GlyphRune(v.Val); ok {
							f.encoding[code] = r
						}
					}
					code++
				}
			}
		}
	}
}

func (f *Font) loadSimpleWidths(doc *raw.Document, dict *raw.DictObj) {
	arr, ok := doc.AsArray(dict.KV["Widths"])
	if !ok {
		return
	}
	first, _ := doc.AsNumber(dict.KV["FirstChar"])
	for i, it := range arr.Items {
		if w, ok := doc.AsNumber(it); ok {
			f.widths[int(first)+i] = w
		}
	}
}

// loadCIDWidths reads /W in both "c [w1 w2 ...]" and "cFirst cLast w" forms.
func (f *Font) loadCIDWidths(doc *raw.Document, desc *raw.DictObj) {
	f.missing = defaultCIDWidth
	if dw, ok := doc.AsNumber(desc.KV["DW"]); ok {
		f.missing = dw
	}
	arr, ok := doc.AsArray(desc.KV["W"])
	if !ok {
		return
	}
	items := arr.Items
	for i := 0; i < len(items); {
		first, ok := doc.AsNumber(items[i])
		if !ok || i+1 >= len(items) {
			return
		}
		if list, ok := doc.AsArray(items[i+1]); ok {
			for j, it := range list.Items {
				if w, ok := doc.AsNumber(it); ok {
					f.widths[int(first)+j] = w
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			return
		}
		last, _ := doc.AsNumber(items[i+1])
		w, _ := doc.AsNumber(items[i+2])
		if last-first <= 0xFFFF {
			for c := int(first); c <= int(last); c++ {
				f.widths[c] = w
			}
		}
		i += 3
	}
}

// Decode splits a shown string into glyphs.
func (f *Font) Decode(b []byte) []Glyph {
	var out []Glyph
	for len(b) > 0 {
		var (
			g    Glyph
			n    int
			text string
			ok   bool
		)
		if f.composite {
			n = 2
			if f.toUnicode != nil {
				text, n, ok = f.toUnicode.Next(b)
			}
			if n > len(b) || n == 0 {
				n = len(b)
			}
			g.Code = codeValue(b[:n])
			if !ok && g.Code != 0 {
				text = string(rune(g.Code))
			}
		} else {
			n = 1
			g.Code = int(b[0])
			if f.toUnicode != nil {
				text, ok = f.toUnicode.Lookup(g.Code, 1)
			}
			if !ok {
				if r := f.encoding[g.Code]; r != 0 {
					text = string(r)
				}
			}
			g.WordSpace = g.Code == 32
		}
		g.Text = text
		g.Width = f.width(g.Code, text)
		out = append(out, g)
		b = b[n:]
	}
	return out
}

func (f *Font) width(code int, text string) float64 {
	if w, ok := f.widths[code]; ok {
		return w
	}
	if f.composite {
		if f.program != nil && len(f.widths) == 0 {
			if w, ok := f.program.GlyphWidth(code); ok {
				return w
			}
		}
		if f.shaper != nil && len(f.widths) == 0 && text != "" {
			return f.shaper.Measure(text)
		}
		return f.missing
	}
	if len(f.widths) > 0 && f.missing > 0 {
		return f.missing
	}
	if f.program != nil && text != "" {
		r, _ := utf8.DecodeRuneInString(text)
		if w, ok := f.program.RuneWidth(r); ok {
			return w
		}
	}
	if text == "" {
		if f.missing > 0 {
			return f.missing
		}
		return 0
	}
	var w float64
	for _, r := range text {
		w += f.metrics.Width(r)
	}
	return w
}

// TextWidth is the advance of s at size points using this font's metrics.
func (f *Font) TextWidth(s string, size float64) float64 {
	var total float64
	for _, r := range s {
		w := 0.0
		if f.program != nil {
			w, _ = f.program.RuneWidth(r)
		}
		if w == 0 {
			w = f.metrics.Width(r)
		}
		total += w
	}
	return total * size / 1000
}

// StandardVariant is the standard font used to draw replacement text for
// this font.
func (f *Font) StandardVariant() string {
	return StandardName(ClassifyFamily(f.FullName), f.Bold, f.Italic)
}

func codeValue(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}
