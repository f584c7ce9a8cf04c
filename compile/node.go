// Package compile matches registered directives against node trees and runs
// their compile steps in priority order.
package compile

import "strings"

// Node is the read-only view of a markup tree the compiler walks.
type Node interface {
	TagName() string
	Attributes() []Attribute
	Children() []Node
	NextSibling() Node
	IsElement() bool
}

// Attribute is one name/value pair of a node, in markup order.
type Attribute struct {
	Name  string
	Value string
}

// HasAttribute reports whether node carries the attribute name.
func HasAttribute(node Node, name string) bool {
	if node == nil {
		return false
	}
	for _, attr := range node.Attributes() {
		if attr.Name == name {
			return true
		}
	}
	return false
}

// Restrict is the set of node positions a directive matches on.
type Restrict uint8

const (
	RestrictElement Restrict = 1 << iota
	RestrictAttribute
)

// DefaultRestrict applies when a definition leaves restrict empty.
const DefaultRestrict = RestrictElement | RestrictAttribute

// ParseRestrict reads a restrict string such as "EA". Letters for class and
// comment matching are accepted and ignored.
func ParseRestrict(value string) Restrict {
	var r Restrict
	for _, ch := range strings.ToUpper(value) {
		switch ch {
		case 'E':
			r |= RestrictElement
		case 'A':
			r |= RestrictAttribute
		}
	}
	return r
}

// Has reports whether r includes every position of other.
func (r Restrict) Has(other Restrict) bool {
	return other != 0 && r&other == other
}

func (r Restrict) String() string {
	var b strings.Builder
	if r.Has(RestrictElement) {
		b.WriteByte('E')
	}
	if r.Has(RestrictAttribute) {
		b.WriteByte('A')
	}
	return b.String()
}
