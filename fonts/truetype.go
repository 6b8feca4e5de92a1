package fonts

import (
	"fmt"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// TrueType wraps an embedded FontFile2 program for naming and metrics.
// It is not safe for concurrent use.
type TrueType struct {
	font *sfnt.Font
	buf  sfnt.Buffer
	ppem fixed.Int26_6
	upem sfnt.Units
}

// TrueTypeInfo summarises an embedded font program.
type TrueTypeInfo struct {
	Family         string
	PostScriptName string
	UnitsPerEm     int
	ItalicAngle    float64
	// Ascent and Descent are in thousandths of an em.
	Ascent  float64
	Descent float64
}

func ParseTrueType(data []byte) (*TrueType, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	upem := f.UnitsPerEm()
	if upem == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	return &TrueType{font: f, upem: upem, ppem: fixed.Int26_6(upem << 6)}, nil
}

func (t *TrueType) Info() TrueTypeInfo {
	info := TrueTypeInfo{UnitsPerEm: int(t.upem)}
	if name, err := t.font.Name(&t.buf, sfnt.NameIDFamily); err == nil {
		info.Family = name
	}
	if name, err := t.font.Name(&t.buf, sfnt.NameIDPostScript); err == nil {
		info.PostScriptName = name
	}
	if post := t.font.PostTable(); post != nil {
		info.ItalicAngle = post.ItalicAngle
	}
	if m, err := t.font.Metrics(&t.buf, t.ppem, xfont.HintingNone); err == nil {
		info.Ascent = t.scale(m.Ascent)
		info.Descent = -t.scale(m.Descent)
	}
	return info
}

// RuneWidth looks r up through the font's cmap and returns its advance in
// thousandths of an em.
func (t *TrueType) RuneWidth(r rune) (float64, bool) {
	gid, err := t.font.GlyphIndex(&t.buf, r)
	if err != nil || gid == 0 {
		return 0, false
	}
	return t.GlyphWidth(int(gid))
}

// GlyphWidth returns the advance of a glyph id in thousandths of an em.
func (t *TrueType) GlyphWidth(gid int) (float64, bool) {
	if gid < 0 || gid >= t.font.NumGlyphs() {
		return 0, false
	}
	adv, err := t.font.GlyphAdvance(&t.buf, sfnt.GlyphIndex(gid), t.ppem, xfont.HintingNone)
	if err != nil {
		return 0, false
	}
	return t.scale(adv), true
}

func (t *TrueType) scale(v fixed.Int26_6) float64 {
	return float64(v) * 1000.0 / (64.0 * float64(t.upem))
}

// InspectTrueType parses data and returns its summary.
func InspectTrueType(data []byte) (TrueTypeInfo, error) {
	t, err := ParseTrueType(data)
	if err != nil {
		return TrueTypeInfo{}, err
	}
	return t.Info(), nil
}
