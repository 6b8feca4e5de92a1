package export

import (
	"sort"
	"strings"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/store"
)

// coverDescent is the share of the font size drawn below the baseline by
// the cover rectangle.
const coverDescent = 0.25

// runEdit is the combined effect of every logged edit on one run.
type runEdit struct {
	run   model.TextRun
	text  string
	style model.StyleOverrides
	// coverWidth is the widest of the original run and every text drawn
	// in its place.
	coverWidth float64
	edited     bool
	hidden     bool
}

func (e *runEdit) family() string {
	if e.style.FontFamily != nil {
		return *e.style.FontFamily
	}
	return e.run.FontFamily
}

func (e *runEdit) bold() bool {
	if e.style.FontWeight != nil {
		return *e.style.FontWeight == model.WeightBold
	}
	return e.run.Bold()
}

func (e *runEdit) italic() bool {
	if e.style.FontStyle != nil {
		return *e.style.FontStyle == model.StyleItalic
	}
	return e.run.Italic()
}

func (e *runEdit) fontSize() float64 {
	if e.style.FontSize != nil && *e.style.FontSize > 0 {
		return *e.style.FontSize
	}
	return e.run.FontSize
}

func (e *runEdit) color() string {
	if e.style.Color != nil {
		return *e.style.Color
	}
	return e.run.Color
}

func (e *runEdit) font() string {
	return StandardFont(e.family(), e.bold(), e.italic())
}

// origin is the baseline start of the new text in PDF space. Style
// overrides of X and Y are UI coordinates.
func (e *runEdit) origin(pageHeight float64) (float64, float64) {
	x, y := e.run.PDFX, e.run.PDFBaselineY
	if e.style.X != nil {
		x = *e.style.X
	}
	if e.style.Y != nil {
		y = coords.PDFBaselineY(pageHeight, *e.style.Y, e.fontSize())
	}
	return x, y
}

// cover is the rectangle over the original glyphs in PDF space.
func (e *runEdit) cover() model.Rect {
	w := e.run.Width
	if !e.hidden {
		w = max(w, e.coverWidth)
	}
	h := e.run.Height
	return model.Rect{X: e.run.PDFX, Y: e.run.PDFBaselineY - coverDescent*h, Width: w, Height: h}
}

// StandardFont maps a family and style to the standard font drawn in its
// place. Unknown and empty families map to Helvetica.
func StandardFont(family string, bold, italic bool) string {
	if strings.TrimSpace(family) == "" {
		return fonts.StandardName(fonts.Helvetica, bold, italic)
	}
	return fonts.StandardName(fonts.ClassifyFamily(family), bold, italic)
}

// TextWidth measures text drawn in a standard font.
func TextWidth(font, text string, size float64) float64 {
	return fonts.StandardMetrics(font).TextWidth(text, size)
}

type pagePlan struct {
	index int
	edits []*runEdit
}

type plan struct {
	pages   []*pagePlan
	applied int
	skipped int
	hidden  int
}

func (p *plan) empty() bool { return len(p.pages) == 0 }

// buildPlan folds the edit log into one entry per run, in order of first
// edit, and adds the runs of hidden sections. Edits whose run no longer
// exists are counted and skipped.
func buildPlan(doc store.Document) *plan {
	runs := make(map[string]model.TextRun)
	for _, pg := range doc.Pages {
		for _, r := range pg.TextRuns {
			runs[r.ID] = r
		}
	}

	p := &plan{}
	byRun := make(map[string]*runEdit)
	byPage := make(map[int]*pagePlan)
	add := func(e *runEdit) {
		byRun[e.run.ID] = e
		pp, ok := byPage[e.run.PageIndex]
		if !ok {
			pp = &pagePlan{index: e.run.PageIndex}
			byPage[e.run.PageIndex] = pp
			p.pages = append(p.pages, pp)
		}
		pp.edits = append(pp.edits, e)
	}

	for _, op := range doc.Edits {
		r, ok := runs[op.TextRunID]
		if !ok || r.PageIndex != op.PageIndex {
			p.skipped++
			continue
		}
		e, ok := byRun[r.ID]
		if !ok {
			e = &runEdit{run: r, coverWidth: r.Width}
			add(e)
		}
		e.text = op.NewText
		e.edited = true
		foldStyle(&e.style, op.Style)
		e.coverWidth = max(e.coverWidth, TextWidth(e.font(), e.text, e.fontSize()))
	}

	for _, sec := range doc.Sections {
		if sec.Visible {
			continue
		}
		for _, id := range hiddenRuns(sec, doc.Pages) {
			r, ok := runs[id]
			if !ok {
				continue
			}
			e, ok := byRun[id]
			if !ok {
				e = &runEdit{run: r}
				add(e)
			}
			e.hidden = true
		}
	}
	for _, e := range byRun {
		switch {
		case e.hidden:
			p.hidden++
		case e.edited:
			p.applied++
		}
	}

	sort.Slice(p.pages, func(i, j int) bool { return p.pages[i].index < p.pages[j].index })
	return p
}

func foldStyle(dst *model.StyleOverrides, s *model.StyleOverrides) {
	if s == nil {
		return
	}
	if s.FontFamily != nil {
		dst.FontFamily = s.FontFamily
	}
	if s.FontSize != nil {
		dst.FontSize = s.FontSize
	}
	if s.FontWeight != nil {
		dst.FontWeight = s.FontWeight
	}
	if s.FontStyle != nil {
		dst.FontStyle = s.FontStyle
	}
	if s.Color != nil {
		dst.Color = s.Color
	}
	if s.X != nil {
		dst.X = s.X
	}
	if s.Y != nil {
		dst.Y = s.Y
	}
}

// hiddenRuns lists the runs a hidden section removes from the page: the
// runs of its items and every run lying inside its bounds, which includes
// the header.
func hiddenRuns(sec model.ResumeSection, pages []model.Page) []string {
	seen := make(map[string]bool)
	var ids []string
	push := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, it := range sec.Items {
		for _, id := range it.TextRunIDs {
			push(id)
		}
	}
	b := sec.Bounds
	if b.Width <= 0 || b.Height <= 0 {
		return ids
	}
	for _, pg := range pages {
		if pg.Index != b.PageIndex {
			continue
		}
		for _, r := range pg.TextRuns {
			if b.Contains(r.X, r.Y, 0.5) && b.Contains(r.X+r.Width, r.Y+r.Height, 0.5) {
				push(r.ID)
			}
		}
	}
	return ids
}
