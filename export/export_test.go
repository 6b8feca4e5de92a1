package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wudi/pdfedit/builder"
	"github.com/wudi/pdfedit/extractor"
	"github.com/wudi/pdfedit/internal/pdftest"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/store"
)

func load(t *testing.T, data []byte) *store.Store {
	t.Helper()
	s := store.New(store.Options{})
	if _, err := s.Load(context.Background(), data); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func johnDoe() pdftest.Page {
	return pdftest.Letter(pdftest.Run{Text: "John Doe", X: 72, Y: 720, Size: 12})
}

func extract(t *testing.T, data []byte) *extractor.Result {
	t.Helper()
	res, err := extractor.Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("re-parse exported file: %v", err)
	}
	return res
}

func texts(p model.Page) []string {
	var out []string
	for _, r := range p.TextRuns {
		out = append(out, r.Text)
	}
	return out
}

func export(t *testing.T, src Source) []byte {
	t.Helper()
	out, err := NewLocal(DefaultOptions()).Export(context.Background(), src)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	return out
}

type fixedSource struct{ doc store.Document }

func (f fixedSource) Document() (store.Document, error) { return f.doc, nil }

func TestExport_NoDocument(t *testing.T) {
	_, err := NewLocal(DefaultOptions()).Export(context.Background(), store.New(store.Options{}))
	if !errors.Is(err, ErrNoDocumentLoaded) {
		t.Fatalf("expected ErrNoDocumentLoaded, got %v", err)
	}
	_, err = NewRemote(RemoteOptions{URL: "http://127.0.0.1:1"}).Export(context.Background(), store.New(store.Options{}))
	if !errors.Is(err, ErrNoDocumentLoaded) {
		t.Fatalf("remote: expected ErrNoDocumentLoaded, got %v", err)
	}
}

func TestExport_TrivialEdit(t *testing.T) {
	src := pdftest.Build(johnDoe())
	s := load(t, src)
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	out := export(t, s)
	if !bytes.HasPrefix(out, src) {
		t.Fatalf("export must append to the original bytes")
	}

	res := extract(t, out)
	runs := res.Pages[0].TextRuns
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %q", texts(res.Pages[0]))
	}
	r := runs[0]
	if r.Text != "Jane Roe" || math.Abs(r.PDFX-72) > 0.01 || math.Abs(r.PDFBaselineY-720) > 0.01 || r.FontSize != 12 {
		t.Fatalf("unexpected run %+v", r)
	}
	if r.FontFamily != "Helvetica" || r.Color != "#000000" {
		t.Fatalf("unexpected style %s %s", r.FontFamily, r.Color)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.CurrentVersion != 1 || len(snap.EditLog) != 1 {
		t.Fatalf("version %d, log %d", snap.CurrentVersion, len(snap.EditLog))
	}
}

func TestExport_UndoRestores(t *testing.T) {
	src := pdftest.Build(johnDoe())
	s := load(t, src)
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.UndoLast(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	out := export(t, s)
	if !bytes.Equal(out, src) {
		t.Fatalf("export without edits should reproduce the source")
	}
	runs := extract(t, out).Pages[0].TextRuns
	if len(runs) != 1 || runs[0].Text != "John Doe" || runs[0].PDFBaselineY != 720 {
		t.Fatalf("unexpected runs %+v", runs)
	}
	snap, _ := s.Snapshot()
	if snap.CurrentVersion != 2 || len(snap.EditLog) != 0 || snap.Pages[0].TextRuns[0].IsEdited {
		t.Fatalf("unexpected state after undo: version %d, log %d", snap.CurrentVersion, len(snap.EditLog))
	}
	out[0] = 'X'
	doc, _ := s.Document()
	if doc.Parsed.Source[0] != '%' {
		t.Fatalf("export returned the store's own buffer")
	}
}

func TestExport_PreservesOtherPages(t *testing.T) {
	page2 := pdftest.Letter(
		pdftest.Run{Text: "Second page", X: 90, Y: 700, Size: 14},
		pdftest.Run{Text: "More text", X: 90, Y: 650, Size: 9, Font: "F3"},
	)
	src := pdftest.Build(johnDoe(), page2)
	before := extract(t, src)
	s := load(t, src)
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := extract(t, export(t, s))

	if got := texts(after.Pages[0]); len(got) != 1 || got[0] != "Jane Roe" {
		t.Fatalf("page 1 runs %q", got)
	}
	want, got := before.Pages[1].TextRuns, after.Pages[1].TextRuns
	if len(want) != len(got) {
		t.Fatalf("page 2 runs %d, want %d", len(got), len(want))
	}
	for i := range want {
		if want[i].Text != got[i].Text ||
			math.Abs(want[i].PDFX-got[i].PDFX) > 0.5 ||
			math.Abs(want[i].PDFBaselineY-got[i].PDFBaselineY) > 0.5 ||
			math.Abs(want[i].FontSize-got[i].FontSize) > 0.1 {
			t.Fatalf("page 2 run %d changed: %+v -> %+v", i, want[i], got[i])
		}
	}
}

func TestExport_WiderTextCoversOriginal(t *testing.T) {
	s := load(t, pdftest.Build(pdftest.Letter(
		pdftest.Run{Text: "John Doe", X: 72, Y: 720, Size: 12},
		pdftest.Run{Text: "Engineer", X: 72, Y: 700, Size: 12},
	)))
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jonathan Doe-Smithson", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, _ := s.Document()
	p := buildPlan(doc)
	if len(p.pages) != 1 || len(p.pages[0].edits) != 1 {
		t.Fatalf("unexpected plan %+v", p)
	}
	cover := p.pages[0].edits[0].cover()
	newWidth := TextWidth("Helvetica", "Jonathan Doe-Smithson", 12)
	if cover.X != 72 || cover.Y != 717 || cover.Height != 12 || math.Abs(cover.Width-newWidth) > 1e-9 {
		t.Fatalf("unexpected cover %+v (new width %v)", cover, newWidth)
	}

	res := extract(t, export(t, s))
	var found bool
	for _, r := range res.Pages[0].TextRuns {
		if r.Text == "John Doe" {
			t.Fatalf("original text still extractable: %+v", r)
		}
		if r.Text == "Jonathan Doe-Smithson" && r.PDFX == 72 && r.PDFBaselineY == 720 {
			found = true
		}
	}
	if !found {
		t.Fatalf("replacement not found in %q", texts(res.Pages[0]))
	}
	if got := texts(res.Pages[0]); len(got) != 2 {
		t.Fatalf("neighbouring run lost: %q", got)
	}
}

func TestExport_CoalescesEdits(t *testing.T) {
	s := load(t, pdftest.Build(johnDoe()))
	for _, text := range []string{"A much longer intermediate value", "Jane Roe"} {
		if _, err := s.UpdateTextRun(0, "p0-r0", text, nil); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	doc, _ := s.Document()
	p := buildPlan(doc)
	ed := p.pages[0].edits[0]
	if p.applied != 1 || ed.text != "Jane Roe" {
		t.Fatalf("applied %d, text %q", p.applied, ed.text)
	}
	if ed.coverWidth < TextWidth("Helvetica", "A much longer intermediate value", 12) {
		t.Fatalf("cover must span every drawn width, got %v", ed.coverWidth)
	}
	if got := texts(extract(t, export(t, s)).Pages[0]); len(got) != 1 || got[0] != "Jane Roe" {
		t.Fatalf("runs %q", got)
	}
}

func TestExport_StyleOverrides(t *testing.T) {
	s := load(t, pdftest.Build(johnDoe()))
	bold := model.WeightBold
	red := "ff0000"
	size := 14.0
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", &model.StyleOverrides{FontWeight: &bold}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", &model.StyleOverrides{Color: &red, FontSize: &size}); err != nil {
		t.Fatalf("update: %v", err)
	}
	runs := extract(t, export(t, s)).Pages[0].TextRuns
	if len(runs) != 1 {
		t.Fatalf("runs %+v", runs)
	}
	r := runs[0]
	if r.Color != "#ff0000" || r.FontWeight != model.WeightBold || r.FontSize != 14 || r.PDFFontName != "Helvetica-Bold" {
		t.Fatalf("styles not folded: %+v", r)
	}
}

func TestExport_SkipsMissingRuns(t *testing.T) {
	src := pdftest.Build(johnDoe())
	s := load(t, src)
	doc, _ := s.Document()
	doc.Edits = append(doc.Edits, model.EditOperation{PageIndex: 0, TextRunID: "p0-r42", NewText: "ghost"})
	out := export(t, fixedSource{doc})
	if !bytes.Equal(out, src) {
		t.Fatalf("an edit of a missing run must not change the file")
	}
	if p := buildPlan(doc); p.skipped != 1 || !p.empty() {
		t.Fatalf("skipped %d", p.skipped)
	}
}

func TestExport_HiddenSection(t *testing.T) {
	s := load(t, pdftest.Build(pdftest.Letter(
		pdftest.Run{Text: "Alice Smith", X: 72, Y: 740, Size: 18, Font: "F2"},
		pdftest.Run{Text: "alice@x.com", X: 72, Y: 715, Size: 10},
		pdftest.Run{Text: "EXPERIENCE", X: 72, Y: 680, Size: 14, Font: "F2"},
		pdftest.Run{Text: "Built systems at Acme", X: 72, Y: 660, Size: 11},
		pdftest.Run{Text: "SKILLS", X: 72, Y: 620, Size: 14, Font: "F2"},
		pdftest.Run{Text: "Go, Acme tooling", X: 72, Y: 600, Size: 11},
	)))
	snap, _ := s.Snapshot()
	var id string
	for _, sec := range snap.Sections {
		if sec.Type == model.SectionExperience {
			id = sec.ID
		}
	}
	if id == "" {
		t.Fatalf("no experience section in %+v", snap.Sections)
	}
	if _, err := s.Apply(store.ToggleVisibility(id), store.AnyVersion); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	got := texts(extract(t, export(t, s)).Pages[0])
	want := []string{"Alice Smith", "alice@x.com", "SKILLS", "Go, Acme tooling"}
	if len(got) != len(want) {
		t.Fatalf("runs %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("runs %q, want %q", got, want)
		}
	}
}

func TestExport_XRefStreamSource(t *testing.T) {
	src := pdftest.BuildWith(pdftest.Options{XRefStream: true}, johnDoe())
	s := load(t, src)
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	res := extract(t, export(t, s))
	if got := texts(res.Pages[0]); len(got) != 1 || got[0] != "Jane Roe" {
		t.Fatalf("runs %q", got)
	}
	if !res.Doc.XRefStream {
		t.Fatalf("update section should match the source's xref form")
	}
}

func TestExport_Verify(t *testing.T) {
	s := load(t, pdftest.Build(johnDoe()))
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	opts := DefaultOptions()
	opts.Verify = true
	out, err := NewLocal(opts).Export(context.Background(), s)
	if err != nil {
		t.Fatalf("export with verification: %v", err)
	}
	if err := Verify(out, 1, []Expectation{{PageIndex: 0, Text: "Jane Roe"}}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := Verify(out, 1, []Expectation{{PageIndex: 0, Text: "Nobody"}}); !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
	if err := Verify(out, 2, nil); !errors.Is(err, ErrVerification) {
		t.Fatalf("expected page count mismatch, got %v", err)
	}
}

func TestExport_Cancelled(t *testing.T) {
	s := load(t, pdftest.Build(johnDoe()))
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal(DefaultOptions()).Export(ctx, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want builder.Color
		err  bool
	}{
		{"#ff0000", builder.Color{R: 1}, false},
		{"00ff00", builder.Color{G: 1}, false},
		{"#00F", builder.Color{B: 1}, false},
		{"#808080", builder.Color{R: 128.0 / 255, G: 128.0 / 255, B: 128.0 / 255}, false},
		{"red", builder.Color{}, true},
		{"#12345", builder.Color{}, true},
		{"#gg0000", builder.Color{}, true},
	}
	for _, tc := range tests {
		got, err := ParseColor(tc.in)
		if (err != nil) != tc.err || got != tc.want {
			t.Errorf("ParseColor(%q) = %+v, %v", tc.in, got, err)
		}
	}
	if hexDigits("#FF8000") != "ff8000" || hexDigits("bogus") != "000000" {
		t.Fatalf("unexpected hex digits")
	}
}

func TestStandardFont(t *testing.T) {
	tests := []struct {
		family       string
		bold, italic bool
		want         string
	}{
		{"Times New Roman", true, false, "Times-Bold"},
		{"Georgia", false, true, "Times-Italic"},
		{"Courier New", true, true, "Courier-BoldOblique"},
		{"Helvetica", false, false, "Helvetica"},
		{"Comic Sans", false, false, "Helvetica"},
		{"", false, true, "Helvetica-Oblique"},
	}
	for _, tc := range tests {
		if got := StandardFont(tc.family, tc.bold, tc.italic); got != tc.want {
			t.Errorf("StandardFont(%q, %v, %v) = %q, want %q", tc.family, tc.bold, tc.italic, got, tc.want)
		}
	}
}

func TestRemoteExporter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PDF   string           `json:"pdf_base64"`
			Edits []map[string]any `json:"edits"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		src, err := base64.StdEncoding.DecodeString(req.PDF)
		if err != nil || !bytes.HasPrefix(src, []byte("%PDF-")) || len(req.Edits) != 1 {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		e := req.Edits[0]
		if e["page_index"] != 0.0 || e["original_text"] != "John Doe" || e["new_text"] != "Jane Roe" ||
			e["x"] != 72.0 || e["y"] != 720.0 || e["height"] != 12.0 || e["font_size"] != 12.0 || e["color"] != "000000" {
			http.Error(w, fmt.Sprintf("unexpected edit %v", e), http.StatusBadRequest)
			return
		}
		if width, ok := e["width"].(float64); !ok || width <= 0 {
			http.Error(w, "cover width missing", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"pdf_base64": base64.StdEncoding.EncodeToString([]byte("%PDF-1.7 rendered")),
		})
	}))
	defer srv.Close()

	s := load(t, pdftest.Build(johnDoe()))
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	out, err := NewRemote(RemoteOptions{URL: srv.URL}).Export(context.Background(), s)
	if err != nil {
		t.Fatalf("remote export: %v", err)
	}
	if string(out) != "%PDF-1.7 rendered" {
		t.Fatalf("unexpected body %q", out)
	}
}

func TestRemoteExporter_RejectsBadResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"raw pdf", "%PDF-1.7 rendered"},
		{"not a pdf", `{"pdf_base64":"` + base64.StdEncoding.EncodeToString([]byte("hello")) + `"}`},
		{"bad base64", `{"pdf_base64":"***"}`},
	}
	s := load(t, pdftest.Build(johnDoe()))
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			_, err := NewRemote(RemoteOptions{URL: srv.URL}).Export(context.Background(), s)
			if !errors.Is(err, ErrRemoteResponse) {
				t.Fatalf("expected ErrRemoteResponse, got %v", err)
			}
		})
	}
}

func TestRemoteExporter_PayloadKeys(t *testing.T) {
	b, err := json.Marshal(remoteRequest{PDF: []byte("%PDF-"), Edits: []remoteEdit{{PageIndex: 1, FontSize: 2}}})
	if err != nil {
		t.Fatal(err)
	}
	var m struct {
		PDF   string           `json:"pdf_base64"`
		Edits []map[string]any `json:"edits"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m.PDF != base64.StdEncoding.EncodeToString([]byte("%PDF-")) {
		t.Errorf("pdf_base64 = %q", m.PDF)
	}
	if len(m.Edits) != 1 {
		t.Fatalf("edits = %v", m.Edits)
	}
	for _, k := range []string{"page_index", "original_text", "new_text", "x", "y", "width", "height", "font_size", "color"} {
		if _, ok := m.Edits[0][k]; !ok {
			t.Errorf("payload missing %q", k)
		}
	}
}

func TestFallbackExporter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := load(t, pdftest.Build(johnDoe()))
	if _, err := s.UpdateTextRun(0, "p0-r0", "Jane Roe", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	remote := NewRemote(RemoteOptions{URL: srv.URL})
	_, err := remote.Export(context.Background(), s)
	var exportErr *Error
	if !errors.As(err, &exportErr) || !errors.Is(err, ErrRemoteResponse) {
		t.Fatalf("expected *Error wrapping ErrRemoteResponse, got %v", err)
	}

	chain := &FallbackExporter{Primary: remote, Secondary: NewLocal(DefaultOptions())}
	out, err := chain.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("fallback export: %v", err)
	}
	if got := texts(extract(t, out).Pages[0]); len(got) != 1 || got[0] != "Jane Roe" {
		t.Fatalf("runs %q", got)
	}

	if _, err := chain.Export(context.Background(), store.New(store.Options{})); !errors.Is(err, ErrNoDocumentLoaded) {
		t.Fatalf("a missing document must not fall back, got %v", err)
	}
}
