package server

import (
	"fmt"

	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/store"
)

// Mutation kinds accepted by the mutations endpoint.
const (
	kindUpdateTextRun     = "updateTextRun"
	kindReplaceAllText    = "replaceAllText"
	kindUndoLast          = "undoLast"
	kindReorder           = "reorderSections"
	kindUpdateItem        = "updateItem"
	kindAddItem           = "addItem"
	kindRemoveItem        = "removeItem"
	kindRemoveSection     = "removeSection"
	kindToggleVisibility  = "toggleVisibility"
	kindToggleCollapsed   = "toggleCollapsed"
	kindSetSectionTitle   = "setSectionTitle"
	kindMergeSections     = "mergeSections"
	kindReextractSections = "reextractSections"
	kindSetViewport       = "setViewport"
)

// mutationRequest is the body of a mutation. Fields not used by Kind are
// ignored.
type mutationRequest struct {
	Kind            string `json:"kind"`
	ExpectedVersion *int   `json:"expectedVersion"`
	// Debounce coalesces rapid updates of the same run, item or title.
	Debounce bool `json:"debounce"`

	PageIndex int                   `json:"pageIndex"`
	RunID     string                `json:"runId"`
	Text      *string               `json:"text"`
	Style     *model.StyleOverrides `json:"style"`

	Needle      string `json:"needle"`
	Replacement string `json:"replacement"`

	SectionIDs        []string `json:"sectionIds"`
	SectionID         string   `json:"sectionId"`
	ItemID            string   `json:"itemId"`
	AfterItemID       string   `json:"afterItemId"`
	Title             string   `json:"title"`
	KeepTitleVariants *bool    `json:"keepTitleVariants"`

	Page int     `json:"page"`
	Zoom float64 `json:"zoom"`
}

func (m mutationRequest) mutation(keepAltTitles bool) (store.Mutation, error) {
	need := func(field, value string) error {
		if value == "" {
			return badRequest(fmt.Sprintf("%s requires %s", m.Kind, field))
		}
		return nil
	}
	text := func() (string, error) {
		if m.Text == nil {
			return "", badRequest(m.Kind + " requires text")
		}
		return *m.Text, nil
	}

	switch m.Kind {
	case kindUpdateTextRun:
		if err := need("runId", m.RunID); err != nil {
			return nil, err
		}
		if m.Text == nil && m.Style.Empty() {
			return nil, badRequest("updateTextRun requires text or style")
		}
		return store.UpdateTextRun{PageIndex: m.PageIndex, RunID: m.RunID, Text: m.Text, Style: m.Style}, nil
	case kindReplaceAllText:
		return store.ReplaceAllText{Needle: m.Needle, Replacement: m.Replacement}, nil
	case kindUndoLast:
		return store.UndoLast{}, nil
	case kindReorder:
		return store.Reorder(m.SectionIDs), nil
	case kindUpdateItem:
		if err := need("sectionId", m.SectionID); err != nil {
			return nil, err
		}
		if err := need("itemId", m.ItemID); err != nil {
			return nil, err
		}
		t, err := text()
		if err != nil {
			return nil, err
		}
		return store.UpdateItem(m.SectionID, m.ItemID, t), nil
	case kindAddItem:
		if err := need("sectionId", m.SectionID); err != nil {
			return nil, err
		}
		t, err := text()
		if err != nil {
			return nil, err
		}
		return store.AddItem(m.SectionID, t, m.AfterItemID), nil
	case kindRemoveItem:
		if err := need("sectionId", m.SectionID); err != nil {
			return nil, err
		}
		if err := need("itemId", m.ItemID); err != nil {
			return nil, err
		}
		return store.RemoveItem(m.SectionID, m.ItemID), nil
	case kindRemoveSection:
		if err := need("sectionId", m.SectionID); err != nil {
			return nil, err
		}
		return store.RemoveSection(m.SectionID), nil
	case kindToggleVisibility:
		if err := need("sectionId", m.SectionID); err != nil {
			return nil, err
		}
		return store.ToggleVisibility(m.SectionID), nil
	case kindToggleCollapsed:
		if err := need("sectionId", m.SectionID); err != nil {
			return nil, err
		}
		return store.ToggleCollapsed(m.SectionID), nil
	case kindSetSectionTitle:
		if err := need("sectionId", m.SectionID); err != nil {
			return nil, err
		}
		return store.SetSectionTitle(m.SectionID, m.Title), nil
	case kindMergeSections:
		keep := keepAltTitles
		if m.KeepTitleVariants != nil {
			keep = *m.KeepTitleVariants
		}
		return store.MergeSections(keep), nil
	case kindReextractSections:
		return store.ReextractSections{}, nil
	case "":
		return nil, badRequest("kind is required")
	}
	return nil, badRequest(fmt.Sprintf("unknown mutation kind %q", m.Kind))
}

// debounceKey names the value a debounced mutation overwrites, or "" when
// the kind is never debounced.
func (m mutationRequest) debounceKey() string {
	switch m.Kind {
	case kindUpdateTextRun:
		return fmt.Sprintf("run/%d/%s", m.PageIndex, m.RunID)
	case kindUpdateItem:
		return "item/" + m.SectionID + "/" + m.ItemID
	case kindSetSectionTitle:
		return "title/" + m.SectionID
	}
	return ""
}
