package injector

import (
	"fmt"
	"io"
	"log/slog"
)

// Option configures an Injector.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for registration and resolution events.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg
}

// Injector owns the provider and instance caches and the tiers resolving them.
type Injector struct {
	instanceCache map[string]*cell
	providerCache map[string]*cell
	decorated     map[string]any

	providers *Container
	instances *Container
	provide   *Provide

	registry *Registry
	loaded   map[string]bool
	logger   *slog.Logger
}

// New builds an injector from an ordered module list. Each entry is either a
// module name registered on registry or an invocable config function run
// immediately through the provider tier. Run blocks execute after every module
// is loaded, in registration order.
func New(registry *Registry, modules []any, opts ...Option) (*Injector, error) {
	cfg := applyOptions(opts)
	inj := &Injector{
		instanceCache: map[string]*cell{},
		providerCache: map[string]*cell{},
		decorated:     map[string]any{},
		registry:      registry,
		loaded:        map[string]bool{},
		logger:        cfg.logger,
	}

	inj.providers = newContainer("provider", inj.providerCache, inj.providerCache, inj.missingProvider, cfg.logger)
	inj.instances = newContainer("instance", inj.instanceCache, inj.providerCache, inj.buildInstance, cfg.logger)
	inj.provide = &Provide{inj: inj}

	inj.instanceCache[KeyInjector] = resolvedCell(inj.instances)
	inj.providerCache[KeyInjector] = resolvedCell(inj.providers)
	inj.providerCache[KeyProvide] = resolvedCell(inj.provide)

	var runBlocks []any
	if err := inj.loadModules(modules, &runBlocks); err != nil {
		return nil, err
	}
	for _, block := range runBlocks {
		if _, err := inj.instances.Invoke(block, nil, nil); err != nil {
			return nil, fmt.Errorf("injector: run block: %w", err)
		}
	}
	return inj, nil
}

// Get resolves key through the instance tier.
func (inj *Injector) Get(key string) (any, error) {
	return inj.instances.Get(key)
}

// Has reports whether key is cached or has a provider.
func (inj *Injector) Has(key string) bool {
	return inj.instances.Has(key)
}

// Invoke calls fn with dependencies resolved through the instance tier.
func (inj *Injector) Invoke(fn any, receiver any, locals Locals) (any, error) {
	return inj.instances.Invoke(fn, receiver, locals)
}

// Instantiate builds ctor through the instance tier.
func (inj *Injector) Instantiate(ctor Constructor, locals Locals) (any, error) {
	return inj.instances.Instantiate(ctor, locals)
}

// Instances returns the instance tier.
func (inj *Injector) Instances() *Container { return inj.instances }

// Providers returns the provider tier.
func (inj *Injector) Providers() *Container { return inj.providers }

// Provide returns the registration API.
func (inj *Injector) Provide() *Provide { return inj.provide }

// GetAs resolves key and asserts it to T.
func GetAs[T any](inj *Injector, key string) (T, error) {
	var zero T
	raw, err := inj.Get(key)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T, want %T", ErrArgumentType, key, raw, zero)
	}
	return typed, nil
}

func (inj *Injector) missingProvider(_ string, path []string) (any, error) {
	return nil, UnknownProviderError{Path: copyPath(path, inj.instances.path)}
}

func (inj *Injector) buildInstance(key string, _ []string) (any, error) {
	raw, err := inj.providers.Get(ProviderKey(key))
	if err != nil {
		return nil, err
	}
	provider, ok := raw.(Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T", ErrNotProvider, key, raw)
	}
	return inj.instances.Invoke(inj.resolverFor(key, provider), provider, nil)
}

func (inj *Injector) resolverFor(key string, provider Provider) any {
	if decorated, ok := inj.decorated[key]; ok {
		return decorated
	}
	return provider.Get()
}

func (inj *Injector) loadModules(modules []any, runBlocks *[]any) error {
	for _, entry := range modules {
		switch typed := entry.(type) {
		case string:
			if inj.loaded[typed] {
				continue
			}
			inj.loaded[typed] = true

			module, err := inj.registry.Lookup(typed)
			if err != nil {
				return err
			}
			requires := make([]any, 0, len(module.requires))
			for _, name := range module.requires {
				requires = append(requires, name)
			}
			if err := inj.loadModules(requires, runBlocks); err != nil {
				return err
			}
			if err := inj.runQueue(module.name, module.invokeQueue); err != nil {
				return err
			}
			if err := inj.runQueue(module.name, module.configBlocks); err != nil {
				return err
			}
			*runBlocks = append(*runBlocks, module.runBlocks...)
			inj.logger.Debug("injector: module loaded", "module", typed)
		default:
			if !isInvocable(entry) {
				return fmt.Errorf("%w: %T", ErrUnknownModuleType, entry)
			}
			result, err := inj.providers.Invoke(entry, nil, nil)
			if err != nil {
				return fmt.Errorf("injector: inline config: %w", err)
			}
			if isInvocable(result) {
				*runBlocks = append(*runBlocks, result)
			}
		}
	}
	return nil
}

func (inj *Injector) runQueue(module string, queue []queuedCall) error {
	for _, call := range queue {
		target, err := inj.providers.Get(call.target)
		if err != nil {
			return fmt.Errorf("injector: module %q %s: %w", module, call.method, err)
		}
		if err := call.apply(target); err != nil {
			return fmt.Errorf("injector: module %q %s: %w", module, call.method, err)
		}
	}
	return nil
}
