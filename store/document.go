package store

import (
	"github.com/wudi/pdfedit/extractor"
	"github.com/wudi/pdfedit/model"
)

const defaultZoom = 1

type runRef struct {
	page, index int
}

type document struct {
	id       string
	parsed   *extractor.Result
	pages    []model.Page
	fonts    []model.Font
	sections []model.ResumeSection
	editLog  []model.EditOperation
	version  int
	viewport model.Viewport

	runs  map[string]runRef
	index []*quadTree
}

func newDocument(res *extractor.Result) *document {
	d := &document{
		id:       res.Fingerprint,
		parsed:   res,
		pages:    model.ClonePages(res.Pages),
		fonts:    res.Fonts,
		viewport: model.Viewport{Zoom: defaultZoom},
		runs:     make(map[string]runRef),
	}
	for pi, p := range d.pages {
		tree := newQuadTree(model.Rect{Width: p.Width, Height: p.Height})
		for ri, r := range p.TextRuns {
			d.runs[r.ID] = runRef{page: pi, index: ri}
			tree.insert(r.Rect(), ri)
		}
		d.index = append(d.index, tree)
	}
	return d
}

func (d *document) run(id string) (*model.TextRun, bool) {
	ref, ok := d.runs[id]
	if !ok {
		return nil, false
	}
	return &d.pages[ref.page].TextRuns[ref.index], true
}

func (d *document) snapshot() model.Snapshot {
	snap := model.Snapshot{
		DocumentID:     d.id,
		Sections:       d.sections,
		Pages:          d.pages,
		Fonts:          d.fonts,
		CurrentVersion: d.version,
		EditLog:        d.editLog,
		Viewport:       d.viewport,
	}
	return snap.Clone()
}

func allRuns(pages []model.Page) []model.TextRun {
	var out []model.TextRun
	for _, p := range pages {
		out = append(out, p.TextRuns...)
	}
	return out
}
