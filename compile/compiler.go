package compile

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/goliatone/go-opular/injector"
)

// Match pairs a descriptor with the node it applies to. Start and End hold
// the raw attribute names of a multi-element group.
type Match struct {
	Descriptor Descriptor
	Start      string
	End        string
}

// Grouped reports whether the match spans a start/end attribute group.
func (m Match) Grouped() bool { return m.Start != "" }

// Compiler walks node trees and applies registered directives. It keeps no
// state between runs.
type Compiler struct {
	injector *injector.Container
	has      func(name string) bool
	logger   *slog.Logger
}

// Run compiles nodes depth first. Children of a node are skipped when a
// terminal directive applied to it.
func (c *Compiler) Run(nodes []Node) error {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		matches, err := c.CollectDirectives(node)
		if err != nil {
			return err
		}
		terminal, err := c.ApplyDirectivesToNode(matches, node)
		if err != nil {
			return err
		}
		if !terminal {
			if err := c.Run(node.Children()); err != nil {
				return err
			}
		}
	}
	return nil
}

// CollectDirectives returns the directives matching node by tag name and
// attribute names, sorted by priority (descending), then name, then
// registration order.
func (c *Compiler) CollectDirectives(node Node) ([]Match, error) {
	var matches []Match
	if node.IsElement() {
		if err := c.addDirective(&matches, Normalize(node.TagName()), RestrictElement, "", ""); err != nil {
			return nil, err
		}
	}

	for _, attr := range node.Attributes() {
		name := Normalize(attr.Name)
		var start, end string

		if base, ok := groupStart(name); ok && len(attr.Name) > len("_start") {
			multi, err := c.isMultiElement(base)
			if err != nil {
				return nil, err
			}
			if multi {
				start = attr.Name
				end = attr.Name[:len(attr.Name)-len("start")] + "end"
				name = base
			}
		}
		if err := c.addDirective(&matches, name, RestrictAttribute, start, end); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Descriptor, matches[j].Descriptor
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Name < b.Name
	})
	return matches, nil
}

// ApplyDirectivesToNode compiles matches against node in order. Once a
// terminal directive applied, directives of lower priority are skipped. The
// result reports whether a terminal directive applied.
func (c *Compiler) ApplyDirectivesToNode(matches []Match, node Node) (bool, error) {
	threshold := math.MinInt
	terminal := false

	for _, match := range matches {
		d := match.Descriptor
		if d.Priority < threshold {
			continue
		}
		nodes := []Node{node}
		if match.Grouped() {
			nodes = GroupScan(node, match.Start, match.End)
		}
		c.logger.Debug("compile: applying directive",
			"directive", d.Name,
			"priority", d.Priority,
			"nodes", len(nodes),
		)
		if err := d.Compile(nodes); err != nil {
			return terminal, fmt.Errorf("compile: directive %q: %w", d.Name, err)
		}
		if d.Terminal {
			terminal = true
			threshold = d.Priority
		}
	}
	return terminal, nil
}

// GroupScan collects node and its following siblings up to the element
// closing the group opened by the start attribute. Nested groups of the same
// attribute pair are kept whole. A node without the start attribute is
// returned alone.
func GroupScan(node Node, start, end string) []Node {
	if node == nil {
		return nil
	}
	if start == "" || !HasAttribute(node, start) {
		return []Node{node}
	}

	var nodes []Node
	depth := 0
	for current := node; current != nil; current = current.NextSibling() {
		if current.IsElement() {
			if HasAttribute(current, start) {
				depth++
			} else if HasAttribute(current, end) {
				depth--
			}
		}
		nodes = append(nodes, current)
		if depth <= 0 {
			break
		}
	}
	return nodes
}

func (c *Compiler) addDirective(matches *[]Match, name string, kind Restrict, start, end string) error {
	descriptors, err := c.lookup(name)
	if err != nil || descriptors == nil {
		return err
	}
	for _, d := range descriptors {
		if !d.Restrict.Has(kind) {
			continue
		}
		*matches = append(*matches, Match{Descriptor: d, Start: start, End: end})
	}
	return nil
}

func (c *Compiler) isMultiElement(name string) (bool, error) {
	descriptors, err := c.lookup(name)
	if err != nil {
		return false, err
	}
	for _, d := range descriptors {
		if d.MultiElement {
			return true, nil
		}
	}
	return false, nil
}

func (c *Compiler) lookup(name string) ([]Descriptor, error) {
	if name == "" || !c.has(name) {
		return nil, nil
	}
	raw, err := c.injector.Get(name + DirectiveSuffix)
	if err != nil {
		return nil, err
	}
	descriptors, ok := raw.([]Descriptor)
	if !ok {
		return nil, fmt.Errorf("%w: %s%s is %T", ErrInvalidDirective, name, DirectiveSuffix, raw)
	}
	return descriptors, nil
}
