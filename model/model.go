// Package model defines the editable document: positioned text runs, pages,
// fonts, résumé sections and the edit log.
package model

import (
	"time"

	"github.com/wudi/pdfedit/coords"
)

type Weight string

const (
	WeightNormal Weight = "normal"
	WeightBold   Weight = "bold"
)

type Style string

const (
	StyleNormal Style = "normal"
	StyleItalic Style = "italic"
)

// RunSource locates the content-stream operation that drew a run.
type RunSource struct {
	// Start and End delimit the operation in the page's concatenated,
	// decoded content streams.
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	// Advance is the operation's horizontal displacement in text space.
	Advance  float64 `json:"advance"`
	TextSize float64 `json:"textSize"`
	HScale   float64 `json:"hScale"`
	// InForm marks runs drawn by a form XObject; their operations are not
	// part of the page content.
	InForm bool `json:"inForm,omitempty"`
}

// TextRun is one positioned piece of text as drawn by a show operation.
type TextRun struct {
	ID           string `json:"id"`
	PageIndex    int    `json:"pageIndex"`
	Seq          int    `json:"seq"`
	Text         string `json:"text"`
	OriginalText string `json:"originalText,omitempty"`
	IsEdited     bool   `json:"isEdited"`

	// UI space: top-left origin, y is the approximate glyph top.
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// PDF space: bottom-left origin, baseline anchored.
	PDFX         float64       `json:"pdfX"`
	PDFBaselineY float64       `json:"pdfBaselineY"`
	Transform    coords.Matrix `json:"transform"`

	FontSize    float64 `json:"fontSize"`
	FontFamily  string  `json:"fontFamily"`
	PDFFontName string  `json:"pdfFontName"`
	FontWeight  Weight  `json:"fontWeight"`
	FontStyle   Style   `json:"fontStyle"`
	Color       string  `json:"color"`

	Source RunSource `json:"source"`
}

// Bold reports whether the run uses a bold weight.
func (r TextRun) Bold() bool { return r.FontWeight == WeightBold }

// Italic reports whether the run uses an italic style.
func (r TextRun) Italic() bool { return r.FontStyle == StyleItalic }

// Rect returns the run's UI-space box.
func (r TextRun) Rect() Rect { return Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height} }

type Page struct {
	Index    int       `json:"index"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Rotation int       `json:"rotation"`
	TextRuns []TextRun `json:"textRuns"`
}

type Font struct {
	Family     string   `json:"family"`
	FullName   string   `json:"fullName,omitempty"`
	IsEmbedded bool     `json:"isEmbedded"`
	IsStandard bool     `json:"isStandard"`
	Weights    []Weight `json:"weights"`
	Styles     []Style  `json:"styles"`
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Union returns the smallest rectangle enclosing r and o.
func (r Rect) Union(o Rect) Rect {
	x0, y0 := min(r.X, o.X), min(r.Y, o.Y)
	x1, y1 := max(r.X+r.Width, o.X+o.Width), max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Contains reports whether the point lies inside r grown by tolerance.
func (r Rect) Contains(x, y, tolerance float64) bool {
	return x >= r.X-tolerance && x <= r.X+r.Width+tolerance &&
		y >= r.Y-tolerance && y <= r.Y+r.Height+tolerance
}

type Bounds struct {
	PageIndex int `json:"pageIndex"`
	Rect
}

type TitleStyle struct {
	FontSize   float64 `json:"fontSize"`
	FontFamily string  `json:"fontFamily"`
	FontWeight Weight  `json:"fontWeight"`
	Color      string  `json:"color"`
}

type SectionItem struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	TextRunIDs   []string `json:"textRunIds"`
	Indent       int      `json:"indent"`
	IsBullet     bool     `json:"isBullet"`
	IsEdited     bool     `json:"isEdited"`
	OriginalText string   `json:"originalText,omitempty"`
}

type ResumeSection struct {
	ID         string        `json:"id"`
	Type       SectionType   `json:"type"`
	Title      string        `json:"title"`
	Items      []SectionItem `json:"items"`
	Visible    bool          `json:"visible"`
	Order      int           `json:"order"`
	Collapsed  bool          `json:"collapsed"`
	Bounds     Bounds        `json:"bounds"`
	TitleStyle TitleStyle    `json:"titleStyle"`
	// AltTitles holds the titles of sections folded in by a merge that
	// keeps title variants.
	AltTitles []string `json:"altTitles,omitempty"`
}

// StyleOverrides are optional per-edit changes to a run's appearance.
type StyleOverrides struct {
	FontFamily *string  `json:"fontFamily,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontWeight *Weight  `json:"fontWeight,omitempty"`
	FontStyle  *Style   `json:"fontStyle,omitempty"`
	Color      *string  `json:"color,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
}

func (s *StyleOverrides) Empty() bool {
	return s == nil || (s.FontFamily == nil && s.FontSize == nil && s.FontWeight == nil &&
		s.FontStyle == nil && s.Color == nil && s.X == nil && s.Y == nil)
}

// EditOperation records one change to a text run.
type EditOperation struct {
	ID           string          `json:"id"`
	Version      int             `json:"version"`
	PageIndex    int             `json:"pageIndex"`
	TextRunID    string          `json:"textRunId"`
	OriginalText string          `json:"originalText"`
	NewText      string          `json:"newText"`
	Timestamp    time.Time       `json:"timestamp"`
	Style        *StyleOverrides `json:"style,omitempty"`
}

type Viewport struct {
	CurrentPage int     `json:"currentPage"`
	Zoom        float64 `json:"zoom"`
}

// Snapshot is a read-only copy of the document state.
type Snapshot struct {
	DocumentID     string          `json:"documentId"`
	Sections       []ResumeSection `json:"sections"`
	Pages          []Page          `json:"pages"`
	Fonts          []Font          `json:"fonts"`
	CurrentVersion int             `json:"currentVersion"`
	EditLog        []EditOperation `json:"editLog"`
	Viewport       Viewport        `json:"viewport"`
}
