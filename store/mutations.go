package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/mutate"
	"github.com/wudi/pdfedit/sections"
)

// Mutation is a change the store can apply. The set is closed: use the
// types in this package.
type Mutation interface {
	Name() string
	apply(d *document, ctx applyContext) error
}

type applyContext struct {
	version  int
	now      time.Time
	newID    func() string
	sections sections.Options
}

// UpdateTextRun replaces a run's text and records style overrides. A nil
// Text keeps the current text.
type UpdateTextRun struct {
	PageIndex int
	RunID     string
	Text      *string
	Style     *model.StyleOverrides
}

func (UpdateTextRun) Name() string { return "updateTextRun" }

func (m UpdateTextRun) apply(d *document, ctx applyContext) error {
	r, ok := d.run(m.RunID)
	if !ok || r.PageIndex != m.PageIndex {
		return fmt.Errorf("%w: page %d run %q", ErrRunNotFound, m.PageIndex, m.RunID)
	}
	text := r.Text
	if m.Text != nil {
		text = *m.Text
	}
	d.editLog = append(d.editLog, editRun(r, text, m.Style, ctx, ctx.now))
	return nil
}

// editRun changes r and returns the edit recording the change. The first
// edit of a run keeps its parsed text as OriginalText.
func editRun(r *model.TextRun, text string, style *model.StyleOverrides, ctx applyContext, at time.Time) model.EditOperation {
	op := model.EditOperation{
		ID:           ctx.newID(),
		Version:      ctx.version,
		PageIndex:    r.PageIndex,
		TextRunID:    r.ID,
		OriginalText: r.Text,
		NewText:      text,
		Timestamp:    at,
	}
	if !style.Empty() {
		op.Style = style.Clone()
	}
	if !r.IsEdited {
		r.OriginalText = r.Text
		r.IsEdited = true
	}
	r.Text = text
	return op
}

// ReplaceAllText substitutes Needle in every run. All resulting edits share
// one timestamp and version.
type ReplaceAllText struct {
	Needle      string
	Replacement string
}

func (ReplaceAllText) Name() string { return "replaceAllText" }

func (m ReplaceAllText) apply(d *document, ctx applyContext) error {
	if m.Needle == "" {
		return ErrEmptyNeedle
	}
	var targets []*model.TextRun
	for pi := range d.pages {
		for ri := range d.pages[pi].TextRuns {
			if r := &d.pages[pi].TextRuns[ri]; strings.Contains(r.Text, m.Needle) {
				targets = append(targets, r)
			}
		}
	}
	for _, r := range targets {
		text := strings.ReplaceAll(r.Text, m.Needle, m.Replacement)
		d.editLog = append(d.editLog, editRun(r, text, nil, ctx, ctx.now))
	}
	return nil
}

// UndoLast reverts the edits of the most recent version in the log, newest
// first. With an empty log it changes nothing but still counts as a
// mutation.
type UndoLast struct{}

func (UndoLast) Name() string { return "undoLast" }

func (UndoLast) apply(d *document, _ applyContext) error {
	n := len(d.editLog)
	if n == 0 {
		return nil
	}
	last := d.editLog[n-1].Version
	for n > 0 && d.editLog[n-1].Version == last {
		op := d.editLog[n-1]
		if r, ok := d.run(op.TextRunID); ok {
			r.Text = op.OriginalText
			if r.IsEdited && r.Text == r.OriginalText {
				r.IsEdited = false
				r.OriginalText = ""
			}
		}
		n--
	}
	d.editLog = d.editLog[:n:n]
	return nil
}

// sectionMutation adapts a pure section transform.
type sectionMutation struct {
	name string
	fn   func([]model.ResumeSection) []model.ResumeSection
}

func (m sectionMutation) Name() string { return m.name }

func (m sectionMutation) apply(d *document, _ applyContext) error {
	d.sections = m.fn(d.sections)
	return nil
}

func Reorder(ids []string) Mutation {
	ids = append([]string(nil), ids...)
	return sectionMutation{"reorder", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.Reorder(s, ids)
	}}
}

func UpdateItem(sectionID, itemID, text string) Mutation {
	return sectionMutation{"updateItem", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.UpdateItem(s, sectionID, itemID, text)
	}}
}

// AddItem appends a bullet, or inserts it after afterItemID when non-empty.
func AddItem(sectionID, text, afterItemID string) Mutation {
	return sectionMutation{"addItem", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.AddItem(s, sectionID, text, afterItemID)
	}}
}

// InsertItems adds prepared items, as produced by a clipboard import.
func InsertItems(sectionID, afterItemID string, items []model.SectionItem) Mutation {
	items = append([]model.SectionItem(nil), items...)
	return sectionMutation{"insertItems", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.InsertItems(s, sectionID, afterItemID, items...)
	}}
}

func RemoveItem(sectionID, itemID string) Mutation {
	return sectionMutation{"removeItem", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.RemoveItem(s, sectionID, itemID)
	}}
}

func RemoveSection(sectionID string) Mutation {
	return sectionMutation{"removeSection", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.RemoveSection(s, sectionID)
	}}
}

func ToggleVisibility(sectionID string) Mutation {
	return sectionMutation{"toggleVisibility", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.ToggleVisibility(s, sectionID)
	}}
}

func ToggleCollapsed(sectionID string) Mutation {
	return sectionMutation{"toggleCollapsed", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.ToggleCollapsed(s, sectionID)
	}}
}

func SetSectionTitle(sectionID, title string) Mutation {
	return sectionMutation{"setSectionTitle", func(s []model.ResumeSection) []model.ResumeSection {
		return mutate.SetTitle(s, sectionID, title)
	}}
}

// MergeSections adopts the one-section-per-type view.
func MergeSections(keepTitleVariants bool) Mutation {
	return sectionMutation{"mergeSections", func(s []model.ResumeSection) []model.ResumeSection {
		return sections.MergeByTypeWith(s, sections.MergeOptions{KeepTitleVariants: keepTitleVariants})
	}}
}

// ReextractSections discards section edits and rebuilds sections from the
// current runs.
type ReextractSections struct{}

func (ReextractSections) Name() string { return "reextractSections" }

func (ReextractSections) apply(d *document, ctx applyContext) error {
	d.sections = sections.ExtractWith(allRuns(d.pages), ctx.sections)
	return nil
}
