package compile

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/goliatone/go-opular/internal/hydrate"
)

// ErrInvalidDirective is returned when a factory produces a value that
// cannot be used as a directive.
var ErrInvalidDirective = errors.New("compile: invalid directive")

// Directive is the minimum a directive factory must produce. Compile receives
// the matched node, or the whole group for multi-element matches.
type Directive interface {
	Restrict() Restrict
	Compile(nodes []Node) error
}

// Prioritized overrides the default priority of 0.
type Prioritized interface {
	Priority() int
}

// TerminalDirective stops lower priority directives and child compilation.
type TerminalDirective interface {
	Terminal() bool
}

// MultiElementDirective enables start/end attribute groups.
type MultiElementDirective interface {
	MultiElement() bool
}

// CompileFunc is the compile step of a Definition.
type CompileFunc func(nodes []Node) error

// Definition is the declarative form of a directive. It can also be given as
// a map with the same keys.
type Definition struct {
	Restrict     string      `mapstructure:"restrict"`
	Priority     int         `mapstructure:"priority"`
	Terminal     bool        `mapstructure:"terminal"`
	MultiElement bool        `mapstructure:"multi_element"`
	Compile      CompileFunc `mapstructure:"compile"`
}

// Descriptor is the resolved, immutable form of one registered directive.
type Descriptor struct {
	Name         string
	Restrict     Restrict
	Priority     int
	Terminal     bool
	MultiElement bool
	// Index is the registration position among directives of the same name.
	Index int

	compile  CompileFunc
	instance any
}

// Compile runs the directive compile step.
func (d Descriptor) Compile(nodes []Node) error {
	if d.compile == nil {
		return nil
	}
	return d.compile(nodes)
}

// Instance returns the value the factory produced.
func (d Descriptor) Instance() any { return d.instance }

var (
	compileFuncType   = reflect.TypeOf(CompileFunc(nil))
	definitionDecoder = hydrate.NewDecoder[Definition](
		hydrate.WithDisallowUnknownFields[Definition](),
		hydrate.WithDecodeHook[Definition](compileHook),
	)
)

// compileHook accepts plain function literals for the compile key.
func compileHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != compileFuncType {
		return data, nil
	}
	switch fn := data.(type) {
	case func([]Node) error:
		return CompileFunc(fn), nil
	case func([]Node):
		return CompileFunc(func(nodes []Node) error {
			fn(nodes)
			return nil
		}), nil
	case func(Node):
		return CompileFunc(func(nodes []Node) error {
			for _, node := range nodes {
				fn(node)
			}
			return nil
		}), nil
	}
	return data, nil
}

var _ mapstructure.DecodeHookFuncType = compileHook

func describe(name string, index int, value any) (Descriptor, error) {
	switch typed := value.(type) {
	case Directive:
		d := Descriptor{
			Name:     name,
			Index:    index,
			Restrict: typed.Restrict(),
			compile:  typed.Compile,
			instance: typed,
		}
		if p, ok := typed.(Prioritized); ok {
			d.Priority = p.Priority()
		}
		if t, ok := typed.(TerminalDirective); ok {
			d.Terminal = t.Terminal()
		}
		if m, ok := typed.(MultiElementDirective); ok {
			d.MultiElement = m.MultiElement()
		}
		return d, nil
	case *Definition:
		if typed == nil {
			break
		}
		return fromDefinition(name, index, *typed, typed), nil
	case Definition:
		return fromDefinition(name, index, typed, typed), nil
	case map[string]any:
		def, err := definitionDecoder.Decode(hydrate.Context{Name: name, Source: "directive"}, typed)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %q: %v", ErrInvalidDirective, name, err)
		}
		return fromDefinition(name, index, def, typed), nil
	}
	return Descriptor{}, fmt.Errorf("%w: %q produced %T", ErrInvalidDirective, name, value)
}

func fromDefinition(name string, index int, def Definition, instance any) Descriptor {
	restrict := ParseRestrict(def.Restrict)
	if def.Restrict == "" {
		restrict = DefaultRestrict
	}
	return Descriptor{
		Name:         name,
		Index:        index,
		Restrict:     restrict,
		Priority:     def.Priority,
		Terminal:     def.Terminal,
		MultiElement: def.MultiElement,
		compile:      def.Compile,
		instance:     instance,
	}
}
