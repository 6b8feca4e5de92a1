// Package pdftest writes small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Fonts available to runs, keyed by resource name.
var Fonts = map[string]string{
	"F1": "Helvetica",
	"F2": "Helvetica-Bold",
	"F3": "Times-Roman",
	"F4": "Courier",
}

type Run struct {
	Text string
	X, Y float64
	Size float64
	Font string // resource name, defaults to F1
	// Color is an optional "r g b" fill triple, e.g. "1 0 0".
	Color string
}

type Page struct {
	Width, Height float64
	Runs          []Run
	// Extra is appended verbatim to the content stream.
	Extra string
	// Forms are form XObjects added to the page resources by name.
	Forms map[string]Form
}

// Form is a form XObject sharing the page's font resources.
type Form struct {
	// Matrix is an optional "a b c d e f" form matrix.
	Matrix  string
	Content string
}

type Options struct {
	// XRefStream writes a cross-reference stream instead of a classic table.
	XRefStream bool
}

// Letter returns a US Letter page with the given runs.
func Letter(runs ...Run) Page {
	return Page{Width: 612, Height: 792, Runs: runs}
}

func Build(pages ...Page) []byte {
	return BuildWith(Options{}, pages...)
}

func BuildWith(opts Options, pages ...Page) []byte {
	fontNames := []string{"F1", "F2", "F3", "F4"}
	firstPage := 3 + len(fontNames)
	total := firstPage + 2*len(pages) // excludes the xref stream object
	formBase := make([]int, len(pages))
	for i, p := range pages {
		formBase[i] = total
		total += len(p.Forms)
	}

	objs := make([]string, total)
	objs[1] = "<< /Type /Catalog /Pages 2 0 R >>"
	var kids []string
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", firstPage+2*i))
	}
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var fontRes []string
	for i, name := range fontNames {
		num := 3 + i
		objs[num] = fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding >>", Fonts[name])
		fontRes = append(fontRes, fmt.Sprintf("/%s %d 0 R", name, num))
	}
	for i, p := range pages {
		pageNum := firstPage + 2*i
		content := Content(p)
		xobjs := ""
		if len(p.Forms) > 0 {
			names := make([]string, 0, len(p.Forms))
			for name := range p.Forms {
				names = append(names, name)
			}
			sort.Strings(names)
			var refs []string
			for j, name := range names {
				f := p.Forms[name]
				n := formBase[i] + j
				matrix := ""
				if f.Matrix != "" {
					matrix = fmt.Sprintf(" /Matrix [%s]", f.Matrix)
				}
				objs[n] = fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 %s %s]%s /Length %d >>\nstream\n%s\nendstream",
					num(p.Width), num(p.Height), matrix, len(f.Content), f.Content)
				refs = append(refs, fmt.Sprintf("/%s %d 0 R", name, n))
			}
			xobjs = fmt.Sprintf(" /XObject << %s >>", strings.Join(refs, " "))
		}
		objs[pageNum] = fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << /Font << %s >>%s >> /Contents %d 0 R >>",
			num(p.Width), num(p.Height), strings.Join(fontRes, " "), xobjs, pageNum+1)
		objs[pageNum+1] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, total)
	for n := 1; n < total; n++ {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, objs[n])
	}

	if opts.XRefStream {
		xrefNum := total
		start := buf.Len()
		var rows bytes.Buffer
		rows.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
		for n := 1; n < total; n++ {
			o := offsets[n]
			rows.Write([]byte{1, byte(o >> 24), byte(o >> 16), byte(o >> 8), byte(o), 0, 0})
		}
		rows.Write([]byte{1, byte(start >> 24), byte(start >> 16), byte(start >> 8), byte(start), 0, 0})
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /XRef /Size %d /W [1 4 2] /Root 1 0 R /Length %d >>\nstream\n", xrefNum, total+1, rows.Len())
		buf.Write(rows.Bytes())
		buf.WriteString("\nendstream\nendobj\n")
		fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", start)
		return buf.Bytes()
	}

	start := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", total)
	for n := 1; n < total; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total, start)
	return buf.Bytes()
}

// Content renders the page's runs as a content stream.
func Content(p Page) string {
	var sb strings.Builder
	for _, r := range p.Runs {
		font := r.Font
		if font == "" {
			font = "F1"
		}
		size := r.Size
		if size == 0 {
			size = 12
		}
		sb.WriteString("BT\n")
		if r.Color != "" {
			fmt.Fprintf(&sb, "%s rg\n", r.Color)
		}
		fmt.Fprintf(&sb, "/%s %s Tf\n%s %s Td\n(%s) Tj\nET\n", font, num(size), num(r.X), num(r.Y), Escape(r.Text))
	}
	sb.WriteString(p.Extra)
	return sb.String()
}

// Escape quotes a string for a PDF literal.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func num(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
}
