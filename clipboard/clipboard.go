// Package clipboard turns pasted content into section items. Markdown and
// HTML lists become bullets whose indent follows the nesting depth; other
// blocks become plain items.
package clipboard

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wudi/pdfedit/model"
	"github.com/wudi/pdfedit/mutate"
	"github.com/wudi/pdfedit/sections"
)

type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// bulletIndent is the indent of a top-level bullet, matching extracted
// bullets. Each nesting level adds one.
const bulletIndent = 2

var (
	ErrUnknownFormat = errors.New("unknown clipboard format")
	ErrEmpty         = errors.New("clipboard content has no text")
)

// ParseFormat accepts the format names and their common MIME types.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "text/markdown":
		return FormatMarkdown, nil
	case "html", "text/html":
		return FormatHTML, nil
	case "text", "plain", "text/plain", "":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Items converts content to new items. Every item is marked edited and has
// no text runs.
func Items(format Format, content string) ([]model.SectionItem, error) {
	var (
		items []model.SectionItem
		err   error
	)
	switch format {
	case FormatMarkdown:
		items = FromMarkdown([]byte(content))
	case FormatHTML:
		items, err = FromHTML(strings.NewReader(content))
	case FormatText:
		items = FromText(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	return items, nil
}

// FromText makes one item per non-empty line. Lines opening with a list
// marker are bullets; every two leading spaces or a tab nest them one level.
func FromText(content string) []model.SectionItem {
	var c collector
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		if !sections.IsBullet(trimmed) {
			c.paragraph(trimmed)
			continue
		}
		depth := leadingDepth(line[:len(line)-len(trimmed)])
		c.bullet(stripMarker(trimmed), depth)
	}
	return c.items
}

func leadingDepth(ws string) int {
	n := 0
	for _, r := range ws {
		if r == '\t' {
			n += 2
		} else {
			n++
		}
	}
	return n / 2
}

// stripMarker drops the list marker of a line IsBullet accepted.
func stripMarker(s string) string {
	if i := strings.IndexFunc(s, unicode.IsSpace); i > 0 && i <= 3 {
		return strings.TrimSpace(s[i:])
	}
	_, size := utf8.DecodeRuneInString(s)
	return strings.TrimSpace(s[size:])
}

type collector struct {
	items []model.SectionItem
}

func (c *collector) paragraph(text string) {
	c.add(text, 0, false)
}

func (c *collector) bullet(text string, depth int) {
	c.add(text, bulletIndent+depth, true)
}

func (c *collector) add(text string, indent int, bullet bool) {
	text = squashSpaces(text)
	if text == "" {
		return
	}
	c.items = append(c.items, model.SectionItem{
		ID:         mutate.NewItemID(),
		Text:       text,
		TextRunIDs: []string{},
		Indent:     indent,
		IsBullet:   bullet,
		IsEdited:   true,
	})
}

func squashSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
