// Package mutate holds pure transformations of a section list. Inputs are
// never modified; unknown ids leave the list unchanged.
package mutate

import (
	"github.com/google/uuid"

	"github.com/wudi/pdfedit/model"
)

// NewItemID generates ids for user-added items.
var NewItemID = func() string { return "item-" + uuid.NewString() }

// Reorder returns the sections named by ids, in that order, with Order set
// to each section's index. Sections not named are dropped; unknown and
// repeated ids are ignored.
func Reorder(sections []model.ResumeSection, ids []string) []model.ResumeSection {
	byID := make(map[string]int, len(sections))
	for i, s := range sections {
		byID[s.ID] = i
	}
	out := make([]model.ResumeSection, 0, len(ids))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok || used[id] {
			continue
		}
		used[id] = true
		s := sections[i]
		s.Order = len(out)
		out = append(out, s)
	}
	return out
}

// AddItem inserts a user-authored bullet after afterItemID, or appends it
// when afterItemID is empty or unknown.
func AddItem(sections []model.ResumeSection, sectionID, text, afterItemID string) []model.ResumeSection {
	item := model.SectionItem{
		ID:         NewItemID(),
		Text:       text,
		TextRunIDs: []string{},
		Indent:     2,
		IsBullet:   true,
		IsEdited:   true,
	}
	return InsertItems(sections, sectionID, afterItemID, item)
}

// InsertItems inserts items after afterItemID, or appends them.
func InsertItems(sections []model.ResumeSection, sectionID, afterItemID string, items ...model.SectionItem) []model.ResumeSection {
	return updateSection(sections, sectionID, func(s *model.ResumeSection) {
		at := len(s.Items)
		for i, it := range s.Items {
			if afterItemID != "" && it.ID == afterItemID {
				at = i + 1
				break
			}
		}
		next := make([]model.SectionItem, 0, len(s.Items)+len(items))
		next = append(next, s.Items[:at]...)
		next = append(next, items...)
		next = append(next, s.Items[at:]...)
		s.Items = next
	})
}

// UpdateItem replaces an item's text. The first edit records the prior text
// as OriginalText.
func UpdateItem(sections []model.ResumeSection, sectionID, itemID, text string) []model.ResumeSection {
	return updateItem(sections, sectionID, itemID, func(it *model.SectionItem) {
		if !it.IsEdited {
			it.OriginalText = it.Text
			it.IsEdited = true
		}
		it.Text = text
	})
}

func RemoveItem(sections []model.ResumeSection, sectionID, itemID string) []model.ResumeSection {
	if findItem(sections, sectionID, itemID) < 0 {
		return sections
	}
	return updateSection(sections, sectionID, func(s *model.ResumeSection) {
		next := make([]model.SectionItem, 0, len(s.Items))
		for _, it := range s.Items {
			if it.ID != itemID {
				next = append(next, it)
			}
		}
		s.Items = next
	})
}

// RemoveSection drops a section and renumbers Order over the remainder.
func RemoveSection(sections []model.ResumeSection, sectionID string) []model.ResumeSection {
	if findSection(sections, sectionID) < 0 {
		return sections
	}
	out := make([]model.ResumeSection, 0, len(sections)-1)
	for _, s := range sections {
		if s.ID != sectionID {
			s.Order = len(out)
			out = append(out, s)
		}
	}
	return out
}

func ToggleVisibility(sections []model.ResumeSection, sectionID string) []model.ResumeSection {
	return updateSection(sections, sectionID, func(s *model.ResumeSection) { s.Visible = !s.Visible })
}

func ToggleCollapsed(sections []model.ResumeSection, sectionID string) []model.ResumeSection {
	return updateSection(sections, sectionID, func(s *model.ResumeSection) { s.Collapsed = !s.Collapsed })
}

func SetTitle(sections []model.ResumeSection, sectionID, title string) []model.ResumeSection {
	return updateSection(sections, sectionID, func(s *model.ResumeSection) { s.Title = title })
}

func findSection(sections []model.ResumeSection, id string) int {
	for i, s := range sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func findItem(sections []model.ResumeSection, sectionID, itemID string) int {
	i := findSection(sections, sectionID)
	if i < 0 {
		return -1
	}
	for j, it := range sections[i].Items {
		if it.ID == itemID {
			return j
		}
	}
	return -1
}

// updateSection copies the list and applies fn to a clone of the matching
// section.
func updateSection(sections []model.ResumeSection, id string, fn func(*model.ResumeSection)) []model.ResumeSection {
	i := findSection(sections, id)
	if i < 0 {
		return sections
	}
	out := append([]model.ResumeSection(nil), sections...)
	s := sections[i].Clone()
	fn(&s)
	out[i] = s
	return out
}

func updateItem(sections []model.ResumeSection, sectionID, itemID string, fn func(*model.SectionItem)) []model.ResumeSection {
	j := findItem(sections, sectionID, itemID)
	if j < 0 {
		return sections
	}
	return updateSection(sections, sectionID, func(s *model.ResumeSection) { fn(&s.Items[j]) })
}
