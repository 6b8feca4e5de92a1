package builder

import (
	"strings"
	"testing"

	"github.com/wudi/pdfedit/contentstream"
)

func TestDrawRectangle(t *testing.T) {
	b := New()
	b.DrawRectangle(72, 717, 51.36, 12, RectOptions{Fill: true, FillColor: White})
	want := "q\n1 1 1 rg\n72 717 51.36 12 re\nf\nQ\n"
	if got := string(b.Bytes()); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDrawRectangle_DefaultsToStroke(t *testing.T) {
	got := string(New().DrawRectangle(0, 0, 1, 1, RectOptions{LineWidth: 0.5}).Bytes())
	if !strings.Contains(got, "0 0 0 RG\n0.5 w\n") || !strings.Contains(got, "\nS\n") {
		t.Fatalf("expected stroked rectangle, got %q", got)
	}
}

func TestDrawText(t *testing.T) {
	b := New()
	b.DrawText("Jane (Roe)", 72, 720, TextOptions{Font: "Times-Bold", FontSize: 12, Color: Color{R: 1}})
	got := string(b.Bytes())
	for _, want := range []string{"1 0 0 rg\n", "/EF1 12 Tf\n", "72 720 Td\n", `(Jane \(Roe\)) Tj`} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	fonts := b.Fonts()
	if len(fonts) != 1 || fonts[0] != (FontResource{Name: "EF1", BaseFont: "Times-Bold"}) {
		t.Fatalf("unexpected fonts %+v", fonts)
	}
}

func TestDrawText_WinAnsi(t *testing.T) {
	got := string(New().DrawText("café €", 0, 0, TextOptions{}).Bytes())
	if !strings.Contains(got, `(caf\351 \200) Tj`) {
		t.Fatalf("expected WinAnsi bytes, got %q", got)
	}
	if !strings.Contains(got, "/EF1 12 Tf") {
		t.Fatalf("expected default font size, got %q", got)
	}
}

func TestFontNames(t *testing.T) {
	b := New("EF1", "EF3")
	if n := b.Font("Helvetica"); n != "EF2" {
		t.Fatalf("first name = %s", n)
	}
	if n := b.Font("Courier"); n != "EF4" {
		t.Fatalf("second name = %s", n)
	}
	if n := b.Font("Helvetica"); n != "EF2" {
		t.Fatalf("names must be stable, got %s", n)
	}
}

func TestBytesParse(t *testing.T) {
	b := New()
	b.DrawRectangle(10, 10, 20, 5, RectOptions{Fill: true, FillColor: White})
	b.DrawText("Hi", 10, 11, TextOptions{Font: "Courier", FontSize: 9.5})
	ops, err := contentstream.Parse(b.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != b.Len() {
		t.Fatalf("parsed %d ops, built %d", len(ops), b.Len())
	}
	var shown string
	for _, op := range ops {
		if op.Operator == "Tf" {
			if size, _ := op.Number(1); size != 9.5 {
				t.Fatalf("font size = %v", size)
			}
		}
		if op.Operator == "Tj" {
			shown = op.Operands[0].Type()
		}
	}
	if shown != "string" {
		t.Fatalf("Tj operand type = %q", shown)
	}
}

func TestFontDict(t *testing.T) {
	d := FontDict("Helvetica-Oblique")
	if name, _ := d.NameValue("BaseFont"); name != "Helvetica-Oblique" {
		t.Fatalf("BaseFont = %q", name)
	}
	if enc, _ := d.NameValue("Encoding"); enc != "WinAnsiEncoding" {
		t.Fatalf("Encoding = %q", enc)
	}
}
