package writer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdfedit/internal/pdftest"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/parser"
)

func parse(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.DefaultConfig()).Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestSerialize(t *testing.T) {
	dict := raw.Dict()
	dict.Set("Type", raw.Name("Font"))
	dict.Set("Size", raw.NumberFloat(12.5))
	dict.Set("Kids", raw.NewArray(raw.Ref(3, 0), raw.NumberInt(-2), raw.Bool(true), raw.NullObj{}))
	dict.Set("Title", raw.Str([]byte("a(b)\\c\n")))
	dict.Set("ID", raw.StringObj{Bytes: []byte{0xAB, 0x01}, Hex: true})
	dict.Set("A B", raw.Name("x/y"))

	got := string(Serialize(dict))
	want := `<</A#20B /x#2Fy/ID <AB01>/Kids [3 0 R -2 true null]/Size 12.5/Title (a\(b\)\\c\n)/Type /Font>>`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestSerialize_StreamLength(t *testing.T) {
	d := raw.Dict()
	d.Set("Length", raw.Ref(9, 0))
	got := string(Serialize(raw.NewStream(d, []byte("BT ET"))))
	if got != "<</Length 5>>\nstream\nBT ET\nendstream" {
		t.Fatalf("unexpected stream %q", got)
	}
	if _, ok := d.KV["Length"].(raw.RefObj); !ok {
		t.Fatalf("input dictionary was modified")
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:         "0",
		1.5:       "1.5",
		-0.000001: "0",
		72:        "72",
		1e7:       "10000000",
		0.333333:  "0.33333",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapeLiteralString(t *testing.T) {
	got := string(EscapeLiteralString([]byte{'A', 0xE9, '\t'}))
	if got != `(A\351\t)` {
		t.Fatalf("got %q", got)
	}
}

func TestIncremental_AppendsAndChains(t *testing.T) {
	src := pdftest.Build(pdftest.Letter(pdftest.Run{Text: "John Doe", X: 72, Y: 720, Size: 12}))
	doc := parse(t, src)

	changes := NewChanges(doc)
	added := changes.Add(raw.NewStream(nil, []byte("q Q")))
	pages, err := parser.Pages(doc)
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	page := pages[0].Dict.Clone()
	page.Set("Marker", raw.Ref(added.Num, added.Gen))
	changes.Replace(pages[0].Ref, page)

	out, err := New(Config{}).Bytes(context.Background(), src, doc, changes)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out, src) {
		t.Fatalf("incremental output must keep the original bytes")
	}
	tail := out[len(src):]
	if !bytes.Contains(tail, []byte("/Prev")) || !bytes.Contains(tail, []byte("xref")) {
		t.Fatalf("update section missing xref or /Prev: %s", tail)
	}

	again := parse(t, out)
	if again.StartXRef <= doc.StartXRef {
		t.Fatalf("startxref did not move: %d <= %d", again.StartXRef, doc.StartXRef)
	}
	st, ok := again.Get(added).(*raw.StreamObj)
	if !ok || string(st.Data) != "q Q" {
		t.Fatalf("added object not readable: %#v", again.Get(added))
	}
	newPages, err := parser.Pages(again)
	if err != nil {
		t.Fatalf("pages after update: %v", err)
	}
	if _, ok := newPages[0].Dict.Get("Marker"); !ok {
		t.Fatalf("replaced page not picked up")
	}
	if again.Size != changes.Size() {
		t.Fatalf("size = %d, want %d", again.Size, changes.Size())
	}
}

func TestIncremental_XRefStreamSource(t *testing.T) {
	src := pdftest.BuildWith(pdftest.Options{XRefStream: true}, pdftest.Letter(pdftest.Run{Text: "Hi", X: 10, Y: 10}))
	doc := parse(t, src)
	changes := NewChanges(doc)
	added := changes.Add(raw.Dict())

	out, err := New(Config{}).Bytes(context.Background(), src, doc, changes)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Contains(out[len(src):], []byte("/Type /XRef")) {
		t.Fatalf("expected an xref stream in the update")
	}
	again := parse(t, out)
	if !again.XRefStream {
		t.Fatalf("newest section should be a stream")
	}
	if _, ok := again.Get(added).(*raw.DictObj); !ok {
		t.Fatalf("added object missing")
	}
	if _, ok := again.Root(); !ok {
		t.Fatalf("catalog lost")
	}
}

func TestIncremental_RequiresStartXRef(t *testing.T) {
	src := pdftest.Build(pdftest.Letter())
	doc := parse(t, src)
	doc.Repaired = true
	_, err := New(Config{}).Bytes(context.Background(), src, doc, NewChanges(doc))
	if !errors.Is(err, ErrNoPrev) {
		t.Fatalf("expected ErrNoPrev, got %v", err)
	}
}

func TestRewrite(t *testing.T) {
	src := pdftest.Build(
		pdftest.Letter(pdftest.Run{Text: "One", X: 72, Y: 700}),
		pdftest.Letter(pdftest.Run{Text: "Two", X: 72, Y: 700}),
	)
	doc := parse(t, src)
	changes := NewChanges(doc)
	changes.Add(raw.Dict())

	for _, cfg := range []Config{{Mode: ModeRewrite}, {Mode: ModeRewrite, XRefStream: true}} {
		out, err := New(cfg).Bytes(context.Background(), src, doc, changes)
		if err != nil {
			t.Fatalf("%+v: write: %v", cfg, err)
		}
		if bytes.Contains(out, []byte("/Prev")) {
			t.Fatalf("%+v: rewrite must not chain", cfg)
		}
		again := parse(t, out)
		pages, err := parser.Pages(again)
		if err != nil || len(pages) != 2 {
			t.Fatalf("%+v: pages = %d, %v", cfg, len(pages), err)
		}
		content, err := parser.PageContents(context.Background(), again, pages[1], nil)
		if err != nil || !bytes.Contains(content, []byte("(Two)")) {
			t.Fatalf("%+v: page 2 content %q, %v", cfg, content, err)
		}
	}
}

func TestWrite_NoCatalog(t *testing.T) {
	doc := raw.NewDocument()
	if _, err := New(Config{Mode: ModeRewrite}).Bytes(context.Background(), nil, doc, NewChanges(doc)); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
}
