package model

// Deep copies. Snapshots handed to readers never alias store state.

func (r TextRun) Clone() TextRun { return r }

func (p Page) Clone() Page {
	p.TextRuns = append([]TextRun(nil), p.TextRuns...)
	return p
}

func ClonePages(pages []Page) []Page {
	if pages == nil {
		return nil
	}
	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = p.Clone()
	}
	return out
}

func (it SectionItem) Clone() SectionItem {
	it.TextRunIDs = append([]string(nil), it.TextRunIDs...)
	return it
}

func (s ResumeSection) Clone() ResumeSection {
	items := make([]SectionItem, len(s.Items))
	for i, it := range s.Items {
		items[i] = it.Clone()
	}
	s.Items = items
	s.AltTitles = append([]string(nil), s.AltTitles...)
	return s
}

func CloneSections(sections []ResumeSection) []ResumeSection {
	if sections == nil {
		return nil
	}
	out := make([]ResumeSection, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
	}
	return out
}

func (s *StyleOverrides) Clone() *StyleOverrides {
	if s == nil {
		return nil
	}
	c := *s
	c.FontFamily = clonePtr(s.FontFamily)
	c.FontSize = clonePtr(s.FontSize)
	c.FontWeight = clonePtr(s.FontWeight)
	c.FontStyle = clonePtr(s.FontStyle)
	c.Color = clonePtr(s.Color)
	c.X = clonePtr(s.X)
	c.Y = clonePtr(s.Y)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (e EditOperation) Clone() EditOperation {
	e.Style = e.Style.Clone()
	return e
}

func CloneEditLog(log []EditOperation) []EditOperation {
	if log == nil {
		return nil
	}
	out := make([]EditOperation, len(log))
	for i, e := range log {
		out[i] = e.Clone()
	}
	return out
}

func (s Snapshot) Clone() Snapshot {
	s.Sections = CloneSections(s.Sections)
	s.Pages = ClonePages(s.Pages)
	s.EditLog = CloneEditLog(s.EditLog)
	fonts := make([]Font, len(s.Fonts))
	for i, f := range s.Fonts {
		f.Weights = append([]Weight(nil), f.Weights...)
		f.Styles = append([]Style(nil), f.Styles...)
		fonts[i] = f
	}
	s.Fonts = fonts
	return s
}
