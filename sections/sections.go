// Package sections clusters text runs into typed résumé sections. Extraction
// is a pure function of its input: identical runs give identical sections.
package sections

import (
	"strings"

	"github.com/wudi/pdfedit/model"
)

const (
	contactLines  = 5
	contactTitle  = "Contact"
	fallbackTitle = "Other"
	// indentX is the leading x beyond which a plain line is indented.
	indentX = 50
)

// Classifier types a header line before the built-in patterns are consulted.
// Implementations must be deterministic.
type Classifier interface {
	Classify(title string, words int) (model.SectionType, bool)
}

type Options struct {
	Classifier Classifier
}

// Extract builds sections from runs in canonical order.
func Extract(runs []model.TextRun) []model.ResumeSection {
	return ExtractWith(runs, Options{})
}

func ExtractWith(runs []model.TextRun, opts Options) []model.ResumeSection {
	b := &builder{opts: opts}
	pages := groupPages(runs)
	for _, p := range pages {
		lines := groupLines(p.index, p.runs)
		b.all = append(b.all, lines...)
		mean := meanFontSize(p.runs)
		b.open = nil
		if p.index == 0 {
			lines = b.contact(lines)
		}
		for _, l := range lines {
			if isHeader(l, mean) {
				b.header(l)
				continue
			}
			b.item(l)
		}
	}

	if !b.sawHeader && !b.sawContact {
		return b.fallback()
	}
	return b.result()
}

type builder struct {
	opts       Options
	out        []*model.ResumeSection
	open       *model.ResumeSection
	sawHeader  bool
	sawContact bool
	all        []line
}

// contact consumes the leading lines of the first page when they carry an
// email address or phone number. Candidates stop at the first line that
// names a section.
func (b *builder) contact(lines []line) []line {
	n := 0
	for n < len(lines) && n < contactLines {
		if _, ok := MatchType(lines[n].text); ok {
			break
		}
		n++
	}
	found := false
	for _, l := range lines[:n] {
		if hasContactDetails(l.text) {
			found = true
			break
		}
	}
	if !found {
		return lines
	}
	lead := lines[0].runs[0]
	b.start(model.SectionContact, contactTitle, lead)
	for _, l := range lines[:n] {
		b.item(l)
	}
	b.sawContact = true
	return lines[n:]
}

func (b *builder) header(l line) {
	b.sawHeader = true
	typ := b.classify(l.text)
	sec := b.start(typ, l.text, l.runs[0])
	extendBounds(sec, l.runs)
}

func (b *builder) classify(title string) model.SectionType {
	if b.opts.Classifier != nil {
		if typ, ok := b.opts.Classifier.Classify(title, len(strings.Fields(title))); ok && typ.Valid() {
			return typ
		}
	}
	typ, _ := MatchType(title)
	return typ
}

// item attaches a line to the open section. A page that starts without a
// header continues the type of the previous page's last section, or opens
// an untitled catch-all on the first page.
func (b *builder) item(l line) {
	if b.open == nil {
		typ, title := model.SectionOther, fallbackTitle
		if len(b.out) > 0 {
			last := b.out[len(b.out)-1]
			typ, title = last.Type, last.Title
		}
		b.start(typ, title, l.runs[0])
	}
	bullet := IsBullet(l.text)
	indent := 0
	switch {
	case bullet:
		indent = 2
	case l.leadingX() > indentX:
		indent = 1
	}
	b.open.Items = append(b.open.Items, model.SectionItem{
		ID:         "item-" + l.runs[0].ID,
		Text:       l.text,
		TextRunIDs: l.runIDs(),
		Indent:     indent,
		IsBullet:   bullet,
	})
	extendBounds(b.open, l.runs)
}

func (b *builder) start(typ model.SectionType, title string, lead model.TextRun) *model.ResumeSection {
	sec := &model.ResumeSection{
		ID:      "sec-" + string(typ) + "-" + lead.ID,
		Type:    typ,
		Title:   title,
		Items:   []model.SectionItem{},
		Visible: true,
		Order:   len(b.out),
		Bounds:  model.Bounds{PageIndex: lead.PageIndex, Rect: lead.Rect()},
		TitleStyle: model.TitleStyle{
			FontSize:   lead.FontSize,
			FontFamily: lead.FontFamily,
			FontWeight: lead.FontWeight,
			Color:      lead.Color,
		},
	}
	b.out = append(b.out, sec)
	b.open = sec
	return sec
}

// extendBounds grows a section's bounds over runs on its page.
func extendBounds(sec *model.ResumeSection, runs []model.TextRun) {
	for _, r := range runs {
		if r.PageIndex == sec.Bounds.PageIndex {
			sec.Bounds.Rect = sec.Bounds.Rect.Union(r.Rect())
		}
	}
}

// fallback returns a single catch-all section holding every line.
func (b *builder) fallback() []model.ResumeSection {
	if len(b.all) == 0 {
		return []model.ResumeSection{}
	}
	b.out, b.open = nil, nil
	b.start(model.SectionOther, fallbackTitle, b.all[0].runs[0])
	for _, l := range b.all {
		b.item(l)
	}
	return b.result()
}

func (b *builder) result() []model.ResumeSection {
	out := make([]model.ResumeSection, len(b.out))
	for i, s := range b.out {
		out[i] = *s
	}
	return out
}
