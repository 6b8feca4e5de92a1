package fonts

import (
	"context"
	"math"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/pdfedit/ir/raw"
)

func TestStandardMetrics(t *testing.T) {
	helv := StandardMetrics("Helvetica")
	if got := helv.TextWidth("John Doe", 12); math.Abs(got-51.36) > 1e-9 {
		t.Fatalf("Helvetica width = %v", got)
	}
	if StandardMetrics("Courier-Bold").Width('i') != 600 {
		t.Fatalf("Courier is fixed pitch")
	}
	if helv.Width('é') != helv.Width('e') {
		t.Fatalf("accented letters use base width")
	}
	if StandardMetrics("Times-Bold").Width('•') != 350 {
		t.Fatalf("bullet width")
	}
}

func TestEncodings(t *testing.T) {
	if WinAnsi[0x93] != '“' || WinAnsi['A'] != 'A' || WinAnsi[0xE9] != 'é' {
		t.Fatalf("WinAnsi table")
	}
	if MacRoman[0x8E] != 'é' {
		t.Fatalf("MacRoman table: %q", MacRoman[0x8E])
	}
	if Standard['\''] != '’' {
		t.Fatalf("StandardEncoding quote")
	}
	if got := EncodeWinAnsi("Café – ok ☃"); string(got) != "Caf\xe9 \x96 ok ?" {
		t.Fatalf("EncodeWinAnsi = %q", got)
	}
	if got := DecodeWinAnsi([]byte("Caf\xe9")); got != "Café" {
		t.Fatalf("DecodeWinAnsi = %q", got)
	}
}

func TestGlyphRune(t *testing.T) {
	tests := map[string]rune{
		"eacute":  'é',
		"bullet":  '•',
		"uni2013": '–',
		"u1F600":  '😀',
		"fi":      'ﬁ',
		"a.sc":    'a',
	}
	for name, want := range tests {
		if got, ok := GlyphRune(name); !ok || got != want {
			t.Errorf("GlyphRune(%q) = %q,%v", name, got, ok)
		}
	}
	if _, ok := GlyphRune("g123"); ok {
		t.Errorf("unexpected mapping for g123")
	}
}

func TestParseToUnicode(t *testing.T) {
	cmap := ParseToUnicode([]byte(`/CIDInit /ProcSet findresource begin
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0003> <0020>
<0011> <00660069>
endbfchar
2 beginbfrange
<0024> <0026> <0041>
<0030> <0031> [<0078> <0079>]
endbfrange
endcmap`))
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte{0x00, 0x24}, "A"},
		{[]byte{0x00, 0x26}, "C"},
		{[]byte{0x00, 0x11}, "fi"},
		{[]byte{0x00, 0x31}, "y"},
	}
	for _, tc := range tests {
		got, n, ok := cmap.Next(tc.in)
		if !ok || n != 2 || got != tc.want {
			t.Errorf("Next(%x) = %q,%d,%v", tc.in, got, n, ok)
		}
	}
	inline := ParseToUnicode([]byte("1 beginbfchar <41> <0042> endbfchar"))
	if got, ok := inline.Lookup(0x41, 1); !ok || got != "B" {
		t.Fatalf("single-line section: %q %v", got, ok)
	}
}

func TestLoadSimpleFontWithDifferences(t *testing.T) {
	doc := raw.NewDocument()
	dict := raw.Dict()
	dict.Set("Type", raw.Name("Font"))
	dict.Set("Subtype", raw.Name("Type1"))
	dict.Set("BaseFont", raw.Name("ABCDEF+Times-Bold"))
	enc := raw.Dict()
	enc.Set("BaseEncoding", raw.Name("WinAnsiEncoding"))
	enc.Set("Differences", raw.NewArray(raw.NumberInt(1), raw.Name("bullet"), raw.Name("emdash")))
	dict.Set("Encoding", enc)
	dict.Set("FirstChar", raw.NumberInt(1))
	dict.Set("Widths", raw.NewArray(raw.NumberInt(350), raw.NumberInt(1000)))

	f := Load(context.Background(), doc, "F9", dict, nil)
	if !f.Bold || f.Italic || f.Family != "Times New Roman" || f.FullName != "Times" {
		t.Fatalf("font = %+v", f)
	}
	glyphs := f.Decode([]byte{1, 2, 'A'})
	if glyphs[0].Text != "•" || glyphs[1].Text != "—" || glyphs[2].Text != "A" {
		t.Fatalf("decode = %+v", glyphs)
	}
	if glyphs[0].Width != 350 || glyphs[1].Width != 1000 || glyphs[2].Width != 722 {
		t.Fatalf("widths = %v %v %v", glyphs[0].Width, glyphs[1].Width, glyphs[2].Width)
	}
	if f.StandardVariant() != "Times-Bold" {
		t.Fatalf("variant = %s", f.StandardVariant())
	}
}

func TestLoadType0(t *testing.T) {
	doc := raw.NewDocument()
	desc := raw.Dict()
	desc.Set("Subtype", raw.Name("CIDFontType2"))
	desc.Set("DW", raw.NumberInt(500))
	desc.Set("W", raw.NewArray(
		raw.NumberInt(36), raw.NewArray(raw.NumberInt(600), raw.NumberInt(610)),
		raw.NumberInt(40), raw.NumberInt(42), raw.NumberInt(700),
	))
	dict := raw.Dict()
	dict.Set("Subtype", raw.Name("Type0"))
	dict.Set("BaseFont", raw.Name("XYZABC+Georgia-Italic"))
	dict.Set("DescendantFonts", raw.NewArray(desc))

	f := Load(context.Background(), doc, "F1", dict, nil)
	glyphs := f.Decode([]byte{0, 36, 0, 37, 0, 41, 0, 99})
	want := []float64{600, 610, 700, 500}
	for i, g := range glyphs {
		if g.Width != want[i] {
			t.Fatalf("glyph %d width %v want %v", i, g.Width, want[i])
		}
	}
	if !f.Italic || f.Family != "Georgia" {
		t.Fatalf("font = %+v", f)
	}
}

func TestTrueTypeInspection(t *testing.T) {
	info, err := InspectTrueType(goregular.TTF)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.HasPrefix(info.Family, "Go") || info.UnitsPerEm == 0 || info.Ascent <= 0 {
		t.Fatalf("info = %+v", info)
	}
	tt, _ := ParseTrueType(goregular.TTF)
	w, ok := tt.RuneWidth('M')
	if !ok || w <= 0 {
		t.Fatalf("RuneWidth(M) = %v,%v", w, ok)
	}
	shaped, err := MeasureShaped(goregular.TTF, "MM")
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if math.Abs(shaped-2*w) > 1 {
		t.Fatalf("shaped width %v, glyph widths %v", shaped, 2*w)
	}
	if _, err := InspectTrueType(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
}
