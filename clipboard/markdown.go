package clipboard

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/wudi/pdfedit/model"
)

// FromMarkdown parses src with goldmark. List items become bullets, and
// headings, paragraphs and code blocks become plain items.
func FromMarkdown(src []byte) []model.SectionItem {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	var c collector
	walkMarkdown(&c, doc, src, -1)
	return c.items
}

// walkMarkdown visits the block children of node. depth is the list
// nesting level, -1 outside lists.
func walkMarkdown(c *collector, node ast.Node, src []byte, depth int) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.List:
			walkMarkdown(c, n, src, depth+1)
		case *ast.ListItem:
			listItem(c, n, src, depth)
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			c.paragraph(inlineText(n, src))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			for _, line := range blockLines(n, src) {
				c.paragraph(line)
			}
		case *ast.Blockquote:
			walkMarkdown(c, n, src, depth)
		}
	}
}

// listItem emits the item's own text, then its nested lists.
func listItem(c *collector, n *ast.ListItem, src []byte, depth int) {
	var parts []string
	var nested []ast.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *ast.List:
			nested = append(nested, child)
		case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
			parts = append(parts, inlineText(child, src))
		}
	}
	c.bullet(strings.Join(parts, " "), depth)
	for _, l := range nested {
		walkMarkdown(c, l, src, depth+1)
	}
}

func inlineText(node ast.Node, src []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			switch t := child.(type) {
			case *ast.Text:
				sb.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte(' ')
				}
			case *ast.String:
				sb.Write(t.Value)
			case *ast.AutoLink:
				sb.Write(t.Label(src))
			default:
				walk(child)
			}
		}
	}
	walk(node)
	return sb.String()
}

func blockLines(n ast.Node, src []byte) []string {
	var out []string
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
			out = append(out, line)
		}
	}
	return out
}
