package clipboard

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wudi/pdfedit/model"
)

// FromHTML parses an HTML fragment. Each li becomes a bullet nested by its
// count of enclosing lists; headings, paragraphs and loose text become
// plain items. Scripts and styles are ignored.
func FromHTML(r io.Reader) ([]model.SectionItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var c collector
	walkHTML(&c, doc, -1)
	return c.items, nil
}

func walkHTML(c *collector, n *html.Node, depth int) {
	switch n.Type {
	case html.TextNode:
		for _, line := range strings.Split(n.Data, "\n") {
			c.paragraph(line)
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head:
			return
		case atom.Ul, atom.Ol:
			depth++
		case atom.Li:
			c.bullet(ownText(n), max(depth, 0))
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if isList(child) {
					walkHTML(c, child, depth)
				}
			}
			return
		case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Dt, atom.Dd, atom.Pre:
			c.paragraph(ownText(n))
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if isList(child) {
					walkHTML(c, child, depth)
				}
			}
			return
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walkHTML(c, child, depth)
	}
}

func isList(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Ul || n.DataAtom == atom.Ol)
}

// ownText is the text under n, excluding nested lists. Line breaks become
// spaces.
func ownText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch {
			case child.Type == html.TextNode:
				sb.WriteString(child.Data)
			case isList(child):
			case child.Type == html.ElementNode && (child.DataAtom == atom.Script || child.DataAtom == atom.Style):
			case child.Type == html.ElementNode && child.DataAtom == atom.Br:
				sb.WriteByte(' ')
			default:
				walk(child)
			}
		}
	}
	walk(n)
	return sb.String()
}
