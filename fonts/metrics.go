package fonts

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Advance widths in thousandths of an em for ASCII 32..126, from the Adobe
// Core 14 AFM files. Oblique variants share the upright widths; Times-Italic
// is approximated by Times-Roman.
var (
	helveticaWidths = [95]uint16{
		278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
		1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
		333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
		556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
	}
	helveticaBoldWidths = [95]uint16{
		278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333, 278, 278,
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333, 584, 584, 584, 611,
		975, 722, 722, 722, 722, 667, 611, 778, 722, 278, 556, 722, 611, 833, 722, 778,
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 333, 278, 333, 584, 556,
		333, 556, 611, 556, 611, 556, 333, 611, 611, 278, 278, 556, 278, 889, 611, 611,
		611, 611, 389, 556, 333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
	}
	timesWidths = [95]uint16{
		250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
		500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
		921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
		556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
		333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
		500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
	}
	timesBoldWidths = [95]uint16{
		250, 333, 555, 500, 500, 1000, 833, 278, 333, 333, 500, 570, 250, 333, 250, 278,
		500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 333, 333, 570, 570, 570, 500,
		930, 722, 667, 722, 722, 667, 611, 778, 778, 389, 500, 778, 667, 944, 722, 778,
		611, 778, 722, 556, 667, 722, 722, 1000, 722, 722, 667, 333, 278, 333, 581, 500,
		333, 500, 556, 444, 556, 444, 333, 500, 556, 278, 333, 556, 278, 833, 556, 500,
		556, 556, 444, 389, 333, 556, 500, 722, 500, 500, 444, 394, 220, 394, 520,
	}
)

// Punctuation outside ASCII that résumés use often, as widths for
// Helvetica, Helvetica-Bold, Times-Roman and Times-Bold.
var extraWidths = map[rune][4]uint16{
	'•': {350, 350, 350, 350},
	'–': {556, 556, 500, 500},
	'—': {1000, 1000, 1000, 1000},
	'‘': {222, 278, 333, 333},
	'’': {222, 278, 333, 333},
	'“': {333, 500, 444, 500},
	'”': {333, 500, 444, 500},
	'…': {1000, 1000, 1000, 1000},
	'·': {278, 278, 250, 250},
	'\u00a0': {278, 278, 250, 250},
	'€': {556, 556, 500, 500},
}

// Metrics holds the widths of one standard font.
type Metrics struct {
	table *[95]uint16
	col   int
	fixed uint16
}

// StandardMetrics returns the widths for a standard font name such as
// "Helvetica-Bold" or "Times-Italic". Unknown names get Helvetica.
func StandardMetrics(name string) Metrics {
	switch StripSubset(name) {
	case "Helvetica-Bold", "Helvetica-BoldOblique":
		return Metrics{table: &helveticaBoldWidths, col: 1}
	case "Times-Roman", "Times-Italic":
		return Metrics{table: &timesWidths, col: 2}
	case "Times-Bold", "Times-BoldItalic":
		return Metrics{table: &timesBoldWidths, col: 3}
	case "Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique":
		return Metrics{fixed: 600}
	}
	return Metrics{table: &helveticaWidths, col: 0}
}

// Width returns the advance of r in thousandths of an em. Accented letters
// take the width of their base letter.
func (m Metrics) Width(r rune) float64 {
	if m.fixed > 0 {
		return float64(m.fixed)
	}
	if r >= 32 && r <= 126 {
		return float64(m.table[r-32])
	}
	if w, ok := extraWidths[r]; ok {
		return float64(w[m.col])
	}
	if base := baseLetter(r); base != r && base >= 32 && base <= 126 {
		return float64(m.table[base-32])
	}
	// Digit width is a reasonable average for everything else.
	return float64(m.table['0'-32])
}

// TextWidth is the advance of s at size points.
func (m Metrics) TextWidth(s string, size float64) float64 {
	var total float64
	for _, r := range s {
		total += m.Width(r)
	}
	return total * size / 1000
}

func baseLetter(r rune) rune {
	d := norm.NFD.String(string(r))
	for _, c := range d {
		if !unicode.Is(unicode.Mn, c) {
			return c
		}
	}
	return r
}
