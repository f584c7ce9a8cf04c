package injector

import (
	"fmt"
	"sort"
	"sync"
)

// KeyCompileProvider is the provider-tier key of the directive registry that
// Module.Directive registrations are queued against.
const KeyCompileProvider = "_compile_provider"

// DirectiveRegistrar is the registration surface Module.Directive expects
// behind KeyCompileProvider.
type DirectiveRegistrar interface {
	Directive(name string, factory any) error
}

// Registry holds module definitions. It replaces a process-wide module table:
// callers pass it explicitly to New.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: map[string]*Module{}}
}

// Module defines (or redefines) the module name with the given requirements
// and returns it for registration calls.
func (r *Registry) Module(name string, requires ...string) *Module {
	module := &Module{
		name:     name,
		requires: append([]string(nil), requires...),
	}
	r.mu.Lock()
	r.modules[name] = module
	r.mu.Unlock()
	return module
}

// Lookup returns a previously defined module.
func (r *Registry) Lookup(name string) (*Module, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	r.mu.RLock()
	module, ok := r.modules[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	return module, nil
}

// Names returns the defined module names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type queuedCall struct {
	target string
	method string
	apply  func(target any) error
}

// Module queues provider registrations, config blocks and run blocks that an
// injector replays when it loads the module. All methods chain.
type Module struct {
	name         string
	requires     []string
	invokeQueue  []queuedCall
	configBlocks []queuedCall
	runBlocks    []any
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Requires returns the names of the modules loaded before this one.
func (m *Module) Requires() []string { return append([]string(nil), m.requires...) }

func (m *Module) provide(method string, apply func(p *Provide) error) *Module {
	m.invokeQueue = append(m.invokeQueue, queuedCall{
		target: KeyProvide,
		method: method,
		apply: func(target any) error {
			return apply(target.(*Provide))
		},
	})
	return m
}

// Constant queues a constant. Constants are registered ahead of every other
// provider of the module.
func (m *Module) Constant(key string, value any) *Module {
	call := queuedCall{
		target: KeyProvide,
		method: "constant",
		apply: func(target any) error {
			target.(*Provide).Constant(key, value)
			return nil
		},
	}
	m.invokeQueue = append([]queuedCall{call}, m.invokeQueue...)
	return m
}

// Provider queues a provider registration.
func (m *Module) Provider(key string, provider any) *Module {
	return m.provide("provider", func(p *Provide) error { return p.Provider(key, provider) })
}

// Factory queues a factory registration.
func (m *Module) Factory(key string, fn any) *Module {
	return m.provide("factory", func(p *Provide) error { return p.Factory(key, fn) })
}

// Value queues a value registration.
func (m *Module) Value(key string, value any) *Module {
	return m.provide("value", func(p *Provide) error { return p.Value(key, value) })
}

// Service queues a service registration.
func (m *Module) Service(key string, ctor Constructor) *Module {
	return m.provide("service", func(p *Provide) error { return p.Service(key, ctor) })
}

// Decorator queues a decorator registration.
func (m *Module) Decorator(key string, fn any) *Module {
	return m.provide("decorator", func(p *Provide) error { return p.Decorator(key, fn) })
}

// Directive queues a directive registration against the directive registry.
func (m *Module) Directive(name string, factory any) *Module {
	m.invokeQueue = append(m.invokeQueue, queuedCall{
		target: KeyCompileProvider,
		method: "directive",
		apply: func(target any) error {
			registrar, ok := target.(DirectiveRegistrar)
			if !ok {
				return fmt.Errorf("%w: %s is %T", ErrNotProvider, KeyCompileProvider, target)
			}
			return registrar.Directive(name, factory)
		},
	})
	return m
}

// Config queues fn to be invoked through the provider tier after the
// module's registrations.
func (m *Module) Config(fn any) *Module {
	m.configBlocks = append(m.configBlocks, queuedCall{
		target: KeyInjector,
		method: "config",
		apply: func(target any) error {
			_, err := target.(*Container).Invoke(fn, nil, nil)
			return err
		},
	})
	return m
}

// Run queues fn to be invoked through the instance tier once the injector is
// built.
func (m *Module) Run(fn any) *Module {
	m.runBlocks = append(m.runBlocks, fn)
	return m
}
