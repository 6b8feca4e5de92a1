package xref

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/wudi/pdfedit/internal/pdftest"
)

func TestResolveClassicTable(t *testing.T) {
	data := pdftest.Build(pdftest.Letter(pdftest.Run{Text: "Hello", X: 72, Y: 720}))
	tbl, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), data)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tbl.IsStream || tbl.Repaired {
		t.Fatalf("expected a classic, unrepaired table: %+v", tbl)
	}
	e, ok := tbl.Lookup(1)
	if !ok || e.Kind != EntryInUse {
		t.Fatalf("object 1 missing: %+v", e)
	}
	if !bytes.HasPrefix(data[e.Offset:], []byte("1 0 obj")) {
		t.Fatalf("offset does not point at object 1: %q", data[e.Offset:e.Offset+10])
	}
	if root, ok := tbl.Trailer.Get("Root"); !ok || root.Type() != "ref" {
		t.Fatalf("trailer lacks /Root: %+v", tbl.Trailer)
	}
	if free, _ := tbl.Lookup(0); free.Kind != EntryFree {
		t.Fatalf("object 0 should be free")
	}
}

func TestResolveXRefStream(t *testing.T) {
	data := pdftest.BuildWith(pdftest.Options{XRefStream: true}, pdftest.Letter(pdftest.Run{Text: "Hi", X: 10, Y: 10}))
	tbl, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), data)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !tbl.IsStream {
		t.Fatalf("expected xref stream")
	}
	for _, num := range tbl.Objects() {
		e, _ := tbl.Lookup(num)
		want := []byte(fmt.Sprintf("%d 0 obj", num))
		if !bytes.HasPrefix(data[e.Offset:], want) {
			t.Fatalf("object %d offset wrong", num)
		}
	}
}

func TestResolveIncrementalUpdateShadowsOlderEntries(t *testing.T) {
	base := pdftest.Build(pdftest.Letter(pdftest.Run{Text: "Old", X: 10, Y: 10}))
	tbl, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), base)
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}

	var buf bytes.Buffer
	buf.Write(base)
	off := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /Lang (en) >>\nendobj\n")
	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n1 1\n%010d 00000 n \ntrailer\n<< /Size %d /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n",
		off, tbl.Size(), tbl.StartXRef, xrefAt)

	updated, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve update: %v", err)
	}
	if updated.Sections != 2 {
		t.Fatalf("expected two sections, got %d", updated.Sections)
	}
	if e, _ := updated.Lookup(1); e.Offset != int64(off) {
		t.Fatalf("newest definition of object 1 should win, got offset %d", e.Offset)
	}
	if e, _ := updated.Lookup(2); e.Offset == 0 {
		t.Fatalf("object 2 should come from the older section")
	}
}

func TestResolveFallsBackToRepair(t *testing.T) {
	data := pdftest.Build(pdftest.Letter(pdftest.Run{Text: "Broken", X: 10, Y: 10}))
	broken := bytes.Replace(data, []byte("startxref"), []byte("startxrez"), 1)

	tbl, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), broken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !tbl.Repaired {
		t.Fatalf("expected repaired table")
	}
	if _, ok := tbl.Trailer.Get("Root"); !ok {
		t.Fatalf("repair should recover the trailer")
	}
	if e, ok := tbl.Lookup(2); !ok || !bytes.HasPrefix(broken[e.Offset:], []byte("2 0 obj")) {
		t.Fatalf("repair lost object 2")
	}
}

func TestRepairWithoutObjectsFails(t *testing.T) {
	if _, err := Repair(context.Background(), []byte("%PDF-1.4\nnothing here")); err == nil {
		t.Fatalf("expected error")
	}
}
