package contentstream

import (
	"math"
	"testing"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/ir/raw"
)

func TestParseSpans(t *testing.T) {
	data := []byte("BT /F1 12 Tf 72 720 Td (John Doe) Tj ET")
	ops, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	want := []string{"BT", "Tf", "Td", "Tj", "ET"}
	if len(names) != len(want) {
		t.Fatalf("ops = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ops = %v", names)
		}
	}
	tj := ops[3]
	if got := string(data[tj.Start:tj.End]); got != "(John Doe) Tj" {
		t.Fatalf("span = %q", got)
	}
	if size, _ := ops[1].Number(1); size != 12 {
		t.Fatalf("Tf size = %v", size)
	}
}

func TestParseArraysAndInlineImages(t *testing.T) {
	ops, err := Parse([]byte("[(A) -120 (B)] TJ BI /W 1 /H 1 /CS /G ID \x7f EI Q"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d", len(ops))
	}
	arr, ok := ops[0].Operands[0].(*raw.ArrayObj)
	if !ok || arr.Len() != 3 {
		t.Fatalf("TJ operand = %#v", ops[0].Operands)
	}
	if ops[1].Operator != "BI" || string(ops[1].Data) != "\x7f" {
		t.Fatalf("inline image = %+v", ops[1])
	}
	if ops[2].Operator != "Q" {
		t.Fatalf("trailing op = %q", ops[2].Operator)
	}
}

func TestParseUnterminatedString(t *testing.T) {
	if _, err := Parse([]byte("BT (oops Tj ET")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInterpreterTextPositions(t *testing.T) {
	ops, err := Parse([]byte("q 1 0 0 1 10 20 cm BT /F1 10 Tf 0 0 1 rg 5 6 Td (ab) Tj (c) Tj ET Q 0.5 g"))
	if err != nil {
		t.Fatal(err)
	}
	type hit struct {
		x, y  float64
		color RGB
	}
	var hits []hit
	in := &Interpreter{OnText: func(st *State, show TextShow) float64 {
		m := st.TextRenderingMatrix()
		hits = append(hits, hit{m[4], m[5], st.FillColor})
		n := 0
		for _, s := range show.Segments {
			n += len(s.Bytes)
		}
		return float64(n) * 0.5 * st.FontSize
	}}
	st := NewState(coords.Identity())
	if err := in.Run(ops, st); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].x != 15 || hits[0].y != 26 || hits[0].color != (RGB{0, 0, 1}) {
		t.Fatalf("first = %+v", hits[0])
	}
	if hits[1].x != 25 {
		t.Fatalf("second run not advanced: %+v", hits[1])
	}
	if st.CTM != coords.Identity() {
		t.Fatalf("Q did not restore CTM")
	}
	if st.FillColor != GrayRGB(0.5) {
		t.Fatalf("fill = %v", st.FillColor)
	}
}

func TestInterpreterLeadingAndQuote(t *testing.T) {
	ops, _ := Parse([]byte("BT /F1 12 Tf 14 TL 72 700 Td (a) Tj (b) ' 2 1 (c) \" ET"))
	var ys []float64
	in := &Interpreter{OnText: func(st *State, show TextShow) float64 {
		ys = append(ys, st.TextRenderingMatrix()[5])
		return 0
	}}
	st := NewState(coords.Identity())
	if err := in.Run(ops, st); err != nil {
		t.Fatal(err)
	}
	want := []float64{700, 686, 672}
	for i := range want {
		if math.Abs(ys[i]-want[i]) > 1e-9 {
			t.Fatalf("ys = %v", ys)
		}
	}
	if st.WordSpacing != 2 || st.CharSpacing != 1 {
		t.Fatalf("\" did not set spacing: %+v", st.GraphicsState)
	}
}

func TestInterpreterCMYKAndForms(t *testing.T) {
	ops, _ := Parse([]byte("0 0 0 1 k /Fm0 Do"))
	var formCTM coords.Matrix
	in := &Interpreter{}
	in.OnXObject = func(st *State, name string) error {
		inner, _ := Parse([]byte("q 2 0 0 2 0 0 cm Q BT ET"))
		return in.RunForm(inner, coords.Translate(100, 0), st)
	}
	in.OnText = func(st *State, show TextShow) float64 { return 0 }
	st := NewState(coords.Identity())
	if err := in.Run(ops, st); err != nil {
		t.Fatal(err)
	}
	if st.FillColor != (RGB{0, 0, 0}) {
		t.Fatalf("cmyk black = %v", st.FillColor)
	}
	if st.CTM != coords.Identity() || formCTM != (coords.Matrix{}) {
		t.Fatalf("form leaked CTM: %v", st.CTM)
	}
}
