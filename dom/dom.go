// Package dom adapts golang.org/x/net/html trees to the compile.Node view
// and gives every element a data bag directives can write to.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/goliatone/go-opular/compile"
)

// Document owns a parsed fragment. Elements are memoized so the same
// *html.Node always maps to the same Element.
type Document struct {
	root     *html.Node
	mu       sync.Mutex
	elements map[*html.Node]*Element
}

// Parse reads an HTML fragment in body context. The top-level nodes are
// linked as siblings under a synthetic document node.
func Parse(markup string) (*Document, error) {
	return ParseReader(strings.NewReader(markup))
}

// ParseReader is Parse over a reader.
func ParseReader(r io.Reader) (*Document, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, node := range nodes {
		root.AppendChild(node)
	}
	return &Document{root: root, elements: map[*html.Node]*Element{}}, nil
}

// MustParse parses markup and returns its top-level nodes. It panics on
// error and is meant for tests and fixed templates.
func MustParse(markup string) []compile.Node {
	doc, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return doc.Nodes()
}

// Nodes returns the top-level nodes of the fragment.
func (d *Document) Nodes() []compile.Node {
	return d.children(d.root)
}

// Elements returns every element of the fragment in document order.
func (d *Document) Elements() []*Element {
	var out []*Element
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				out = append(out, d.wrap(c))
			}
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// Find returns the elements with the given tag name in document order.
func (d *Document) Find(tag string) []*Element {
	tag = strings.ToLower(tag)
	var out []*Element
	for _, el := range d.Elements() {
		if el.node.Data == tag {
			out = append(out, el)
		}
	}
	return out
}

// Render writes the fragment back as HTML.
func (d *Document) Render(w io.Writer) error {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return fmt.Errorf("dom: render: %w", err)
		}
	}
	return nil
}

// String renders the fragment.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func (d *Document) wrap(n *html.Node) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{node: n, doc: d}
	d.elements[n] = el
	return el
}

func (d *Document) children(n *html.Node) []compile.Node {
	var out []compile.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, d.wrap(c))
	}
	return out
}

// Element is one node of a Document. Despite the name it also wraps text
// and comment nodes; IsElement tells them apart.
type Element struct {
	node *html.Node
	doc  *Document
	data map[string]any
}

var _ compile.Node = (*Element)(nil)

// TagName returns the lower case tag name, or "#text" / "#comment".
func (e *Element) TagName() string {
	switch e.node.Type {
	case html.ElementNode:
		return e.node.Data
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	}
	return ""
}

// Attributes returns the attributes in markup order.
func (e *Element) Attributes() []compile.Attribute {
	if len(e.node.Attr) == 0 {
		return nil
	}
	attrs := make([]compile.Attribute, 0, len(e.node.Attr))
	for _, attr := range e.node.Attr {
		name := attr.Key
		if attr.Namespace != "" {
			name = attr.Namespace + ":" + attr.Key
		}
		attrs = append(attrs, compile.Attribute{Name: name, Value: attr.Val})
	}
	return attrs
}

// Attr returns the value of the attribute name.
func (e *Element) Attr(name string) (string, bool) {
	for _, attr := range e.Attributes() {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Children returns the child nodes in order.
func (e *Element) Children() []compile.Node {
	return e.doc.children(e.node)
}

// NextSibling returns the following node, or nil at the end of the list.
func (e *Element) NextSibling() compile.Node {
	if e.node.NextSibling == nil {
		return nil
	}
	return e.doc.wrap(e.node.NextSibling)
}

// IsElement reports whether the node is an element.
func (e *Element) IsElement() bool {
	return e.node.Type == html.ElementNode
}

// Text returns the concatenated text content of the node.
func (e *Element) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

// SetData stores value under key in the element data bag.
func (e *Element) SetData(key string, value any) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.data == nil {
		e.data = map[string]any{}
	}
	e.data[key] = value
}

// Data returns the value stored under key.
func (e *Element) Data(key string) (any, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	value, ok := e.data[key]
	return value, ok
}

// HTML returns the underlying node.
func (e *Element) HTML() *html.Node { return e.node }
