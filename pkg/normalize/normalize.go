// Package normalize turns the HTML-bearing content of a Gab record into plain text.
package normalize

import (
	"strings"

	"garc/pkg/gab"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements end a line of text
var blockElements = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Tr:         true,
}

// Normalize sets rec.Text from rec.Content. No other field is touched.
func Normalize(rec *gab.Record) {
	if rec == nil {
		return
	}
	rec.Text = Text(rec.Content)
}

// Text decodes HTML entities in s and strips the resulting markup. Line
// breaks and block ends become newlines; other whitespace collapses to
// single spaces.
func Text(s string) string {
	if s == "" {
		return ""
	}
	decoded := html.UnescapeString(s)

	doc, err := html.Parse(strings.NewReader(decoded))
	if err != nil {
		return collapse(decoded)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Br:
				b.WriteString("\n")
				return
			case atom.Script, atom.Style:
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	return collapse(b.String())
}

// collapse squeezes whitespace within lines and drops blank lines
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			out = append(out, strings.Join(fields, " "))
		}
	}
	return strings.Join(out, "\n")
}
