package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/wudi/pdfedit/internal/pdftest"
	"github.com/wudi/pdfedit/model"
)

func parse(t *testing.T, data []byte) *Result {
	t.Helper()
	res, err := Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return res
}

func TestParse_SingleRun(t *testing.T) {
	res := parse(t, pdftest.Build(pdftest.Letter(pdftest.Run{Text: "John Doe", X: 72, Y: 720, Size: 12})))
	if len(res.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(res.Pages))
	}
	p := res.Pages[0]
	if p.Width != 612 || p.Height != 792 {
		t.Fatalf("unexpected page size %vx%v", p.Width, p.Height)
	}
	if len(p.TextRuns) != 1 {
		t.Fatalf("expected 1 run, got %d", len(p.TextRuns))
	}
	r := p.TextRuns[0]
	if r.ID != "p0-r0" || r.Text != "John Doe" {
		t.Fatalf("unexpected run %+v", r)
	}
	if r.PDFX != 72 || r.PDFBaselineY != 720 || r.FontSize != 12 {
		t.Fatalf("unexpected pdf coords %+v", r)
	}
	if r.X != 72 || r.Y != 63 || r.Height != 12 {
		t.Fatalf("unexpected ui coords x=%v y=%v h=%v", r.X, r.Y, r.Height)
	}
	if math.Abs(r.Width-51.36) > 0.01 {
		t.Fatalf("width = %v, want 51.36", r.Width)
	}
	if r.FontFamily != "Helvetica" || r.PDFFontName != "Helvetica" || r.FontWeight != model.WeightNormal {
		t.Fatalf("unexpected font %q %q %q", r.FontFamily, r.PDFFontName, r.FontWeight)
	}
	if r.Color != "#000000" {
		t.Fatalf("unexpected color %q", r.Color)
	}
	if r.Source.InForm || r.Source.End <= r.Source.Start {
		t.Fatalf("unexpected source %+v", r.Source)
	}
	if len(res.Source) == 0 || res.Fingerprint == "" {
		t.Fatalf("missing source copy or fingerprint")
	}
}

func TestParse_SourceIsCopy(t *testing.T) {
	data := pdftest.Build(pdftest.Letter(pdftest.Run{Text: "x", X: 10, Y: 10}))
	res := parse(t, data)
	data[0] = 'X'
	if res.Source[0] != '%' {
		t.Fatalf("source aliases input")
	}
}

func TestParse_FontsAndStyles(t *testing.T) {
	res := parse(t, pdftest.Build(pdftest.Letter(
		pdftest.Run{Text: "EXPERIENCE", X: 72, Y: 700, Size: 14, Font: "F2", Color: "1 0 0"},
		pdftest.Run{Text: "Times text", X: 72, Y: 680, Font: "F3"},
	)))
	runs := res.Pages[0].TextRuns
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].Bold() || runs[0].Color != "#ff0000" || runs[0].FontFamily != "Helvetica" {
		t.Fatalf("unexpected bold run %+v", runs[0])
	}
	if runs[1].FontFamily != "Times New Roman" {
		t.Fatalf("unexpected family %q", runs[1].FontFamily)
	}
	if res.Fonts[0].Family != "Helvetica" {
		t.Fatalf("discovered fonts should come first, got %+v", res.Fonts[0])
	}
	seen := map[string]bool{}
	for _, f := range res.Fonts {
		if seen[f.Family] {
			t.Fatalf("duplicate family %q", f.Family)
		}
		seen[f.Family] = true
	}
	for _, fam := range []string{"Arial", "Georgia", "Courier New"} {
		if !seen[fam] {
			t.Fatalf("standard family %q missing", fam)
		}
	}
}

func TestParse_RowOrdering(t *testing.T) {
	// Drawn out of order; the second run is 2pt lower but shares the row.
	res := parse(t, pdftest.Build(pdftest.Letter(
		pdftest.Run{Text: "right", X: 300, Y: 700},
		pdftest.Run{Text: "left", X: 72, Y: 698},
		pdftest.Run{Text: "top", X: 200, Y: 750},
	)))
	var got []string
	for _, r := range res.Pages[0].TextRuns {
		got = append(got, r.Text)
	}
	if want := []string{"top", "left", "right"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order %v, want %v", got, want)
	}
	if res.Pages[0].TextRuns[0].ID != "p0-r2" {
		t.Fatalf("ids follow stream order, got %s", res.Pages[0].TextRuns[0].ID)
	}
}

func TestParse_SkipsWhitespaceRuns(t *testing.T) {
	res := parse(t, pdftest.Build(pdftest.Letter(
		pdftest.Run{Text: "   ", X: 72, Y: 700},
		pdftest.Run{Text: "kept", X: 72, Y: 680},
	)))
	runs := res.Pages[0].TextRuns
	if len(runs) != 1 || runs[0].Text != "kept" || runs[0].ID != "p0-r0" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestParse_TextStateOperators(t *testing.T) {
	page := pdftest.Letter()
	page.Extra = "BT /F1 10 Tf 2 0 0 2 100 500 Tm [(A)-1000(B)] TJ ET\n" +
		"q 1 0 0 1 50 0 cm BT /F4 10 Tf 0 0 1 0 k 1 0 0 1 20 400 Tm 14 TL T* (Mono) Tj ET Q\n"
	res := parse(t, pdftest.Build(page))
	runs := res.Pages[0].TextRuns
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	scaled, mono := runs[0], runs[1]
	if scaled.Text != "A B" || scaled.FontSize != 20 || scaled.PDFX != 100 || scaled.PDFBaselineY != 500 {
		t.Fatalf("unexpected scaled run %+v", scaled)
	}
	// A (667) + 1000 adjustment + B (667), at 10pt, scaled by 2.
	if math.Abs(scaled.Width-(0.667*10+10+0.667*10)*2) > 0.01 {
		t.Fatalf("unexpected width %v", scaled.Width)
	}
	if mono.PDFX != 70 || mono.PDFBaselineY != 386 || mono.FontFamily != "Courier New" {
		t.Fatalf("unexpected mono run %+v", mono)
	}
	if math.Abs(mono.Width-24) > 0.001 || mono.Color != "#ffff00" {
		t.Fatalf("unexpected mono width/color %v %s", mono.Width, mono.Color)
	}
}

func TestParse_FormXObject(t *testing.T) {
	page := pdftest.Letter(pdftest.Run{Text: "page", X: 72, Y: 720})
	page.Extra = "q 1 0 0 1 100 100 cm /Fm1 Do Q\n"
	page.Forms = map[string]pdftest.Form{
		"Fm1": {Matrix: "1 0 0 1 0 10", Content: "BT /F1 9 Tf 5 5 Td (In form) Tj ET"},
	}
	res := parse(t, pdftest.Build(page))
	runs := res.Pages[0].TextRuns
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	form := runs[1]
	if form.Text != "In form" || !form.Source.InForm {
		t.Fatalf("unexpected form run %+v", form)
	}
	if form.PDFX != 105 || form.PDFBaselineY != 115 {
		t.Fatalf("form run at (%v, %v), want (105, 115)", form.PDFX, form.PDFBaselineY)
	}
}

func TestParse_MultiPage(t *testing.T) {
	res := parse(t, pdftest.Build(
		pdftest.Letter(pdftest.Run{Text: "one", X: 72, Y: 720}),
		pdftest.Letter(pdftest.Run{Text: "two", X: 72, Y: 720}),
	))
	if len(res.Pages) != 2 || res.Pages[1].Index != 1 || res.Pages[1].TextRuns[0].ID != "p1-r0" {
		t.Fatalf("unexpected pages %+v", res.Pages)
	}
}

func TestParse_Deterministic(t *testing.T) {
	data := pdftest.BuildWith(pdftest.Options{XRefStream: true},
		pdftest.Letter(
			pdftest.Run{Text: "Alice Smith", X: 72, Y: 740, Size: 18, Font: "F2"},
			pdftest.Run{Text: "alice@x.com", X: 72, Y: 720, Size: 10},
		),
		pdftest.Letter(pdftest.Run{Text: "Page two", X: 72, Y: 720}),
	)
	a, b := parse(t, data), parse(t, data)
	if !reflect.DeepEqual(a.Pages, b.Pages) || !reflect.DeepEqual(a.Fonts, b.Fonts) {
		t.Fatalf("parses differ")
	}
	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("fingerprints differ")
	}
}

func TestParse_CoordinateRoundTrip(t *testing.T) {
	var runs []pdftest.Run
	for i, size := range []float64{8, 10.5, 12, 18, 24} {
		runs = append(runs, pdftest.Run{Text: fmt.Sprintf("line %d", i), X: 50, Y: 700 - float64(i)*40, Size: size})
	}
	res := parse(t, pdftest.Build(pdftest.Letter(runs...)))
	for _, r := range res.Pages[0].TextRuns {
		got := res.Pages[0].Height - r.Y - 0.75*r.FontSize
		if math.Abs(got-r.PDFBaselineY) > 0.5 {
			t.Fatalf("%s: round trip %v != %v", r.ID, got, r.PDFBaselineY)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmptyInput},
		{"not pdf", []byte("hello world, definitely not a pdf"), ErrInvalidPDFFormat},
		{"no catalog", []byte("%PDF-1.4\n1 0 obj\n<< /Foo 1 >>\nendobj\ntrailer\n<< /Size 2 >>\n%%EOF"), ErrInvalidPDFFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), tc.data)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParse_CorruptContentStream(t *testing.T) {
	page := pdftest.Letter()
	page.Extra = "BT /F1 12 Tf (never closed Tj ET"
	_, err := Parse(context.Background(), pdftest.Build(page))
	if !errors.Is(err, ErrCorruptContentStream) {
		t.Fatalf("got %v, want ErrCorruptContentStream", err)
	}
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Parse(ctx, pdftest.Build(pdftest.Letter())); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
