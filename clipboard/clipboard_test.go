package clipboard

import (
	"errors"
	"strings"
	"testing"

	"github.com/wudi/pdfedit/model"
)

type want struct {
	text   string
	indent int
	bullet bool
}

func check(t *testing.T, got []model.SectionItem, expected []want) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("got %d items, want %d: %+v", len(got), len(expected), got)
	}
	for i, w := range expected {
		g := got[i]
		if g.Text != w.text || g.Indent != w.indent || g.IsBullet != w.bullet {
			t.Errorf("item %d = {%q %d %v}, want {%q %d %v}", i, g.Text, g.Indent, g.IsBullet, w.text, w.indent, w.bullet)
		}
		if g.ID == "" || !g.IsEdited || g.TextRunIDs == nil || len(g.TextRunIDs) != 0 {
			t.Errorf("item %d not a fresh user item: %+v", i, g)
		}
	}
}

func TestFromMarkdown(t *testing.T) {
	src := `## Projects

Built a **PDF** editor
in Go.

- Parser for ` + "`xref`" + ` tables
- Exporter
  - incremental updates
  - rewrites
1. first
`
	check(t, FromMarkdown([]byte(src)), []want{
		{"Projects", 0, false},
		{"Built a PDF editor in Go.", 0, false},
		{"Parser for xref tables", 2, true},
		{"Exporter", 2, true},
		{"incremental updates", 3, true},
		{"rewrites", 3, true},
		{"first", 2, true},
	})
}

func TestFromHTML(t *testing.T) {
	src := `<h3>Skills</h3>
<ul>
  <li>Go<br>and <b>SQL</b></li>
  <li>Cloud
    <ul><li>AWS</li><li>GCP</li></ul>
  </li>
</ul>
<script>alert(1)</script>
<p>Available   immediately</p>`
	got, err := FromHTML(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	check(t, got, []want{
		{"Skills", 0, false},
		{"Go and SQL", 2, true},
		{"Cloud", 2, true},
		{"AWS", 3, true},
		{"GCP", 3, true},
		{"Available immediately", 0, false},
	})
}

func TestFromText(t *testing.T) {
	src := "Summary line\n\n- one\n  * two\n\t• three\n1. four\n"
	check(t, FromText(src), []want{
		{"Summary line", 0, false},
		{"one", 2, true},
		{"two", 3, true},
		{"three", 3, true},
		{"four", 2, true},
	})
}

func TestItems(t *testing.T) {
	if _, err := Items(FormatMarkdown, "  \n\n"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := Items(Format("rtf"), "x"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	items, err := Items(FormatHTML, "<li>x</li>")
	if err != nil || len(items) != 1 || !items[0].IsBullet {
		t.Fatalf("Items(html) = %+v, %v", items, err)
	}
	ids := map[string]bool{}
	items, _ = Items(FormatText, "a\nb\nc")
	for _, it := range items {
		ids[it.ID] = true
	}
	if len(ids) != 3 {
		t.Fatalf("ids not unique: %v", ids)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"markdown":   FormatMarkdown,
		"MD":         FormatMarkdown,
		"text/html":  FormatHTML,
		"":           FormatText,
		"text/plain": FormatText,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
