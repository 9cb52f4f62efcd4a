// Package dom gives read access to a point-in-time copy of the host page
// and polls the live page until it reaches an expected state.
package dom

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Element addresses the Index-th node matching Selector at the time an
// action is performed. A negative index counts from the end, -1 being the
// last match.
type Element struct {
	Selector string
	Index    int
}

func (e Element) String() string {
	return fmt.Sprintf("%s[%d]", e.Selector, e.Index)
}

// Snapshot is a parsed copy of the host page's document.
type Snapshot struct {
	root *html.Node
	doc  *goquery.Document
	url  *url.URL
}

// NewSnapshot parses the outer html of a document. pageURL is used to
// resolve relative links and may be empty.
func NewSnapshot(pageURL, outerHTML string) (*Snapshot, error) {
	root, err := html.Parse(strings.NewReader(outerHTML))
	if err != nil {
		return nil, fmt.Errorf("error parsing document: %w", err)
	}
	s := &Snapshot{
		root: root,
		doc:  goquery.NewDocumentFromNode(root),
	}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			s.url = u
		}
	}
	return s, nil
}

// Count returns the number of nodes matching selector.
func (s *Snapshot) Count(selector string) int {
	return s.doc.Find(selector).Length()
}

func (s *Snapshot) nth(el Element) *goquery.Selection {
	sel := s.doc.Find(el.Selector)
	i := el.Index
	if i < 0 {
		i += sel.Length()
	}
	if i < 0 || i >= sel.Length() {
		return nil
	}
	return sel.Eq(i)
}

// Text returns the text content of the first node matching selector.
func (s *Snapshot) Text(selector string) (string, bool) {
	n := s.nth(Element{Selector: selector})
	if n == nil {
		return "", false
	}
	return n.Text(), true
}

// Attr returns the value of attribute name of the addressed element.
func (s *Snapshot) Attr(el Element, name string) (string, bool) {
	n := s.nth(el)
	if n == nil {
		return "", false
	}
	return n.Attr(name)
}

// Exists reports whether el addresses a node.
func (s *Snapshot) Exists(el Element) bool {
	return s.nth(el) != nil
}

func (s *Snapshot) Title() string {
	return strings.TrimSpace(s.doc.Find("title").First().Text())
}

// BodyText is the rendered text of the document body. Script, style and
// template contents are left out, as are hidden elements.
func (s *Snapshot) BodyText() string {
	var b strings.Builder
	s.doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		for _, n := range sel.Nodes {
			visibleText(&b, n)
		}
	})
	return b.String()
}

var invisibleElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

func hidden(n *html.Node) bool {
	if invisibleElements[n.Data] {
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(style, "display:none") {
				return true
			}
		}
	}
	return false
}

func visibleText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if hidden(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(b, c)
	}
}

// ContainsText reports whether the first node matching selector contains
// any of the given substrings. An empty selector means the body.
func (s *Snapshot) ContainsText(selector string, substrings ...string) bool {
	var text string
	if selector == "" {
		text = s.BodyText()
	} else {
		t, ok := s.Text(selector)
		if !ok {
			return false
		}
		text = t
	}
	for _, sub := range substrings {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}

// XPathLink evaluates expr and returns the link target of the first
// resulting element. ok is false if expr selects nothing or the element
// has no link target.
func (s *Snapshot) XPathLink(expr string) (link string, ok bool, err error) {
	n, err := htmlquery.Query(s.root, expr)
	if err != nil {
		return "", false, fmt.Errorf("invalid path expression %q: %w", expr, err)
	}
	if n == nil || n.Type != html.ElementNode {
		return "", false, nil
	}
	href := strings.TrimSpace(htmlquery.SelectAttr(n, "href"))
	if href == "" {
		return "", false, nil
	}
	return s.resolve(href), true, nil
}

func (s *Snapshot) resolve(href string) string {
	u, err := url.Parse(href)
	if err != nil || s.url == nil || u.IsAbs() {
		return href
	}
	return s.url.ResolveReference(u).String()
}
