// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package htmldoc parses HTML field content into a mutable node tree and
// serializes it back.
//
// The tree is built straight from golang.org/x/net/html tokens, without the
// HTML5 tree-construction rules: nothing is inserted (no implicit tbody or
// p), a self-closing tag is an empty element, an end tag closes the nearest
// open element with its name and stray end tags, comments and doctypes are
// kept verbatim. Text keeps its line endings. Together with the local
// serializer this makes a parse/render round trip byte-stable for the markup
// that note fields carry.
package htmldoc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML fragment. Its top-level nodes hang under a
// synthetic root that is never rendered.
type Document struct {
	root *html.Node
}

// Parse parses s as the content of a note field.
func Parse(s string) (*Document, error) {
	root := &html.Node{Type: html.DocumentNode}
	if err := build(root, s); err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// build appends the nodes of s to container. End tags never close
// container or anything above it.
func build(container *html.Node, s string) error {
	z := html.NewTokenizer(strings.NewReader(s))
	cur := container
	for {
		tt := z.Next()
		raw := string(z.Raw())
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return nil
			}
			return fmt.Errorf("parsing html fragment: %w", z.Err())

		case html.TextToken:
			if cur.Type == html.ElementNode && rawTextElements[cur.Data] {
				cur.AppendChild(NewText(raw))
			} else {
				cur.AppendChild(NewText(html.UnescapeString(raw)))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			n := element(z)
			cur.AppendChild(n)
			if tt == html.StartTagToken && !voidElements[n.Data] {
				cur = n
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if open := openElement(cur, container, string(name)); open != nil {
				cur = open.Parent
			} else {
				cur.AppendChild(&html.Node{Type: html.RawNode, Data: raw})
			}

		default:
			cur.AppendChild(&html.Node{Type: html.RawNode, Data: raw})
		}
	}
}

func element(z *html.Tokenizer) *html.Node {
	name, more := z.TagName()
	n := &html.Node{Type: html.ElementNode, Data: string(name), DataAtom: atom.Lookup(name)}
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		n.Attr = append(n.Attr, html.Attribute{Key: string(key), Val: string(val)})
	}
	return n
}

// openElement returns the nearest element named name on the path from cur
// up to, but excluding, container.
func openElement(cur, container *html.Node, name string) *html.Node {
	for n := cur; n != nil && n != container; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == name {
			return n
		}
	}
	return nil
}

// Root returns the synthetic container node.
func (d *Document) Root() *html.Node {
	return d.root
}

// DirectChildren returns the element children of the root with the given
// tag for which match reports true. Nested elements are never visited.
// A nil match accepts every element with the tag.
func (d *Document) DirectChildren(tag string, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != tag {
			continue
		}
		if match == nil || match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Render serializes the whole fragment.
func (d *Document) Render() string {
	return InnerHTML(d.root)
}

// Fragment is an ordered list of detached nodes that can be spliced into a
// document.
type Fragment struct {
	nodes []*html.Node
}

// Append adds nodes to the end of the fragment. The nodes must be detached.
func (f *Fragment) Append(nodes ...*html.Node) {
	f.nodes = append(f.nodes, nodes...)
}

// Nodes returns the fragment's nodes.
func (f *Fragment) Nodes() []*html.Node {
	return f.nodes
}

// NewElement returns a detached element with the given attributes, in
// order, as key/value pairs.
func NewElement(tag string, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

// NewText returns a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// AppendHTML parses s and appends the resulting nodes to n.
func AppendHTML(n *html.Node, s string) error {
	return build(n, s)
}

// Attr returns the value of the attribute key and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries the attribute key.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets key to val, keeping the attribute's position if it already
// exists and appending it otherwise.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// HasClass reports whether the class attribute of n contains class as one
// of its whitespace-separated tokens.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Clone returns a deep, detached copy of n.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	c.Attr = append([]html.Attribute(nil), n.Attr...)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// ReplaceChildren replaces the children of n with nodes, which must be
// detached.
func ReplaceChildren(n *html.Node, nodes ...*html.Node) {
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
}

// ReplaceWith puts replacement where old is in the tree and detaches old.
func ReplaceWith(old, replacement *html.Node) {
	p := old.Parent
	if p == nil {
		return
	}
	p.InsertBefore(replacement, old)
	p.RemoveChild(old)
}

// RenderNode serializes n including its own tag.
func RenderNode(n *html.Node) string {
	var b strings.Builder
	render(&b, n)
	return b.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(&b, c)
	}
	return b.String()
}
