package injector

import "fmt"

const providerSuffix = "_provider"

// Well-known keys registered by every injector.
const (
	// KeyInjector resolves to the instance tier Container, or the provider
	// tier Container when requested from a config block.
	KeyInjector = "_injector"
	// KeyProvide resolves (provider tier only) to the Provide API.
	KeyProvide = "_provide"
	// KeyDelegate is the local holding the decorated instance inside a
	// decorator function.
	KeyDelegate = "_delegate"
)

// ProviderKey returns the provider-tier key for an instance key.
func ProviderKey(key string) string {
	return key + providerSuffix
}

// Provider produces the singleton instance for a key. Get returns the
// resolver invoked through the instance tier with the provider as receiver;
// any value accepted by Container.Invoke is valid.
type Provider interface {
	Get() any
}

// ProviderFunc adapts a resolver to the Provider interface.
type ProviderFunc func() any

// Get implements Provider.
func (f ProviderFunc) Get() any { return f() }

// Provide is the registration surface over the provider cache. It is
// available to config blocks as the "_provide" service.
type Provide struct {
	inj *Injector
}

// Constant stores value under key in both caches. It is available
// immediately, including to code that builds providers.
func (p *Provide) Constant(key string, value any) {
	p.inj.providerCache[key] = resolvedCell(value)
	p.inj.instanceCache[key] = resolvedCell(value)
	p.inj.logger.Debug("injector: constant registered", "key", key)
}

// Provider registers provider for key. A Constructor is instantiated through
// the provider tier first.
func (p *Provide) Provider(key string, provider any) error {
	if ctor, ok := provider.(Constructor); ok {
		built, err := p.inj.providers.Instantiate(ctor, nil)
		if err != nil {
			return fmt.Errorf("injector: instantiate provider %q: %w", key, err)
		}
		provider = built
	}
	if _, ok := provider.(Provider); !ok {
		return fmt.Errorf("%w: %q is %T", ErrNotProvider, key, provider)
	}
	p.inj.providerCache[ProviderKey(key)] = resolvedCell(provider)
	delete(p.inj.decorated, key)
	p.inj.logger.Debug("injector: provider registered", "key", key)
	return nil
}

// Factory registers fn as the resolver for key. fn is invoked through the
// instance tier the first time key is requested.
func (p *Provide) Factory(key string, fn any) error {
	if !isInvocable(fn) {
		return fmt.Errorf("%w: factory %q is %T", ErrNotInvocable, key, fn)
	}
	return p.Provider(key, factoryProvider{fn: fn})
}

// Value registers a factory that returns value unchanged.
func (p *Provide) Value(key string, value any) error {
	return p.Factory(key, Fn{Func: func(any, []any) (any, error) {
		return value, nil
	}})
}

// Service registers a factory that instantiates ctor.
func (p *Provide) Service(key string, ctor Constructor) error {
	return p.Factory(key, Fn{
		Inject: []string{KeyInjector},
		Func: func(_ any, args []any) (any, error) {
			return args[0].(*Container).Instantiate(ctor, nil)
		},
	})
}

// Decorator wraps the current resolver of key. The wrapper resolves the
// instance through the previous resolver, then invokes fn with the instance
// available as the "_delegate" local and returns the instance. Decorators
// compose in registration order.
func (p *Provide) Decorator(key string, fn any) error {
	if !isInvocable(fn) {
		return fmt.Errorf("%w: decorator for %q is %T", ErrNotInvocable, key, fn)
	}
	raw, err := p.inj.providers.Get(ProviderKey(key))
	if err != nil {
		return err
	}
	provider, ok := raw.(Provider)
	if !ok {
		return fmt.Errorf("%w: %q is %T", ErrNotProvider, key, raw)
	}

	original := p.inj.resolverFor(key, provider)
	instances := p.inj.instances
	p.inj.decorated[key] = Fn{Func: func(_ any, _ []any) (any, error) {
		instance, err := instances.Invoke(original, provider, nil)
		if err != nil {
			return nil, err
		}
		if _, err := instances.Invoke(fn, nil, Locals{KeyDelegate: instance}); err != nil {
			return nil, err
		}
		return instance, nil
	}}
	return nil
}

type factoryProvider struct {
	fn any
}

func (f factoryProvider) Get() any {
	return Fn{
		Inject: []string{KeyInjector},
		Func: func(_ any, args []any) (any, error) {
			return args[0].(*Container).Invoke(f.fn, nil, nil)
		},
	}
}
