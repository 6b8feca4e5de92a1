// Package builder assembles page content that is drawn on top of an
// existing page: filled rectangles and text in standard fonts.
package builder

import (
	"bytes"
	"strconv"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/writer"
)

// Color is an RGB color with components in [0,1].
type Color struct {
	R, G, B float64
}

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
)

// TextOptions configures text drawing.
type TextOptions struct {
	// Font is a standard font name such as "Helvetica-Bold".
	Font     string
	FontSize float64
	Color    Color
}

// RectOptions configures rectangle drawing. A rectangle with neither Fill
// nor Stroke set is stroked.
type RectOptions struct {
	FillColor   Color
	StrokeColor Color
	LineWidth   float64
	Fill        bool
	Stroke      bool
}

// FontResource is a font the content refers to by resource name.
type FontResource struct {
	Name     string
	BaseFont string
}

// ContentBuilder records drawing operations for one page.
type ContentBuilder struct {
	ops   []contentstream.Operation
	fonts []FontResource
	names map[string]string
	// reserved holds resource names already used by the page.
	reserved map[string]bool
	prefix   string
}

// New returns an empty builder. reserved lists font resource names the page
// already defines; fonts registered here never reuse them.
func New(reserved ...string) *ContentBuilder {
	b := &ContentBuilder{names: make(map[string]string), reserved: make(map[string]bool), prefix: "EF"}
	for _, n := range reserved {
		b.reserved[n] = true
	}
	return b
}

// Font returns the resource name for a standard font, registering it on
// first use.
func (b *ContentBuilder) Font(baseFont string) string {
	if name, ok := b.names[baseFont]; ok {
		return name
	}
	name := ""
	for i := len(b.fonts) + 1; ; i++ {
		name = b.prefix + strconv.Itoa(i)
		if !b.reserved[name] {
			break
		}
	}
	b.reserved[name] = true
	b.names[baseFont] = name
	b.fonts = append(b.fonts, FontResource{Name: name, BaseFont: baseFont})
	return name
}

// Fonts lists the registered fonts in registration order.
func (b *ContentBuilder) Fonts() []FontResource {
	out := make([]FontResource, len(b.fonts))
	copy(out, b.fonts)
	return out
}

func (b *ContentBuilder) DrawRectangle(x, y, width, height float64, opts RectOptions) *ContentBuilder {
	if !opts.Stroke && !opts.Fill {
		opts.Stroke = true
	}
	b.op("q")
	if opts.Fill {
		b.op("rg", colorOperands(opts.FillColor)...)
	}
	if opts.Stroke {
		b.op("RG", colorOperands(opts.StrokeColor)...)
		if opts.LineWidth > 0 {
			b.op("w", num(opts.LineWidth))
		}
	}
	b.op("re", num(x), num(y), num(width), num(height))
	b.op(paintOperator(opts.Fill, opts.Stroke))
	b.op("Q")
	return b
}

// DrawText shows text with its baseline origin at (x, y). Text is encoded
// with WinAnsiEncoding; characters outside it become '?'.
func (b *ContentBuilder) DrawText(text string, x, y float64, opts TextOptions) *ContentBuilder {
	size := opts.FontSize
	if size <= 0 {
		size = 12
	}
	font := opts.Font
	if font == "" {
		font = "Helvetica"
	}
	name := b.Font(font)
	b.op("q")
	b.op("BT")
	b.op("rg", colorOperands(opts.Color)...)
	b.op("Tf", raw.Name(name), num(size))
	b.op("Td", num(x), num(y))
	b.op("Tj", raw.Str(fonts.EncodeWinAnsi(text)))
	b.op("ET")
	b.op("Q")
	return b
}

// Len is the number of recorded operations.
func (b *ContentBuilder) Len() int { return len(b.ops) }

// Bytes serializes the recorded operations, one per line.
func (b *ContentBuilder) Bytes() []byte {
	var buf bytes.Buffer
	for _, op := range b.ops {
		for _, operand := range op.Operands {
			buf.Write(writer.Serialize(operand))
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FontDict returns the font dictionary for a standard font.
func FontDict(baseFont string) *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.Name("Font"))
	d.Set("Subtype", raw.Name("Type1"))
	d.Set("BaseFont", raw.Name(baseFont))
	d.Set("Encoding", raw.Name("WinAnsiEncoding"))
	return d
}

func (b *ContentBuilder) op(operator string, operands ...raw.Object) {
	b.ops = append(b.ops, contentstream.Operation{Operator: operator, Operands: operands})
}

func colorOperands(c Color) []raw.Object {
	return []raw.Object{num(clamp(c.R)), num(clamp(c.G)), num(clamp(c.B))}
}

func num(v float64) raw.Object {
	if v == float64(int64(v)) {
		return raw.NumberInt(int64(v))
	}
	return raw.NumberFloat(v)
}

func paintOperator(fill, stroke bool) string {
	switch {
	case fill && stroke:
		return "B"
	case fill:
		return "f"
	default:
		return "S"
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
