package compile

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"

	"github.com/goliatone/go-opular/injector"
)

// DirectiveSuffix is appended to a directive name to form its service key.
const DirectiveSuffix = "_directive"

// Option configures the directive registry.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for registration and compile events.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// Provider is the directive registry. It is registered on an injector as a
// provider so modules can add directives during configuration; its instance
// is the Compiler.
type Provider struct {
	provide   *injector.Provide
	factories map[string][]any
	compiler  *Compiler
	logger    *slog.Logger
}

// NewProvider returns the constructor of the registry. It depends on the
// "_provide" service to register one "<name>_directive" factory per name.
func NewProvider(opts ...Option) injector.Constructor {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return injector.Construct[Provider](func(p *Provider, provide *injector.Provide) {
		p.provide = provide
		p.factories = map[string][]any{}
		p.logger = cfg.logger
	}, injector.KeyProvide)
}

// Directive appends factory to the directives registered under name. The
// first registration of a name adds the "<name>_directive" service, which
// yields a Descriptor per factory in registration order.
//
// A factory may be an injector.Constructor, an invocable producing the
// directive, or the directive value itself (Directive, *Definition or map).
func (p *Provider) Directive(name string, factory any) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDirective)
	}
	if factory == nil {
		return fmt.Errorf("%w: %q has nil factory", ErrInvalidDirective, name)
	}
	if _, ok := p.factories[name]; !ok {
		p.factories[name] = nil
		err := p.provide.Factory(name+DirectiveSuffix, injector.Fn{
			Inject: []string{injector.KeyInjector},
			Func: func(_ any, args []any) (any, error) {
				return p.build(name, args[0].(*injector.Container))
			},
		})
		if err != nil {
			delete(p.factories, name)
			return err
		}
	}
	p.factories[name] = append(p.factories[name], factory)
	p.logger.Debug("compile: directive registered", "name", name, "count", len(p.factories[name]))
	return nil
}

// Directives registers every entry of directives in sorted name order.
func (p *Provider) Directives(directives map[string]any) error {
	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.Directive(name, directives[name]); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether any directive is registered under name.
func (p *Provider) Has(name string) bool {
	_, ok := p.factories[name]
	return ok
}

// Names returns the registered directive names in sorted order.
func (p *Provider) Names() []string {
	names := make([]string, 0, len(p.factories))
	for name := range p.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the resolver building the Compiler.
func (p *Provider) Get() any {
	return injector.Fn{
		Inject: []string{injector.KeyInjector},
		Func: func(_ any, args []any) (any, error) {
			if p.compiler == nil {
				p.compiler = &Compiler{
					injector: args[0].(*injector.Container),
					has:      p.Has,
					logger:   p.logger,
				}
			}
			return p.compiler, nil
		},
	}
}

func (p *Provider) build(name string, c *injector.Container) ([]Descriptor, error) {
	factories := p.factories[name]
	descriptors := make([]Descriptor, 0, len(factories))
	for i, factory := range factories {
		value, err := produce(c, factory)
		if err != nil {
			return nil, fmt.Errorf("compile: directive %q: %w", name, err)
		}
		descriptor, err := describe(name, i, value)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, nil
}

func produce(c *injector.Container, factory any) (any, error) {
	switch typed := factory.(type) {
	case injector.Constructor:
		return c.Instantiate(typed, nil)
	case injector.Invocable:
		return c.Invoke(typed, nil, nil)
	}
	if reflect.ValueOf(factory).Kind() == reflect.Func {
		return c.Invoke(factory, nil, nil)
	}
	return factory, nil
}
