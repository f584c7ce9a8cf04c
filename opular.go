// Package opular wires the injector, the expression parser, the scope tree
// and the directive compiler into the core "op" module and boots injectors
// on top of it.
//
//	registry := injector.NewRegistry()
//	if err := opular.Register(registry); err != nil {
//		return err
//	}
//	registry.Module("app", opular.CoreModule).Factory("greeting", ...)
//	inj, err := opular.Bootstrap(registry, []any{"app"})
package opular

import (
	"fmt"
	"log/slog"

	"github.com/goliatone/go-opular/compile"
	"github.com/goliatone/go-opular/injector"
	"github.com/goliatone/go-opular/parse"
	"github.com/goliatone/go-opular/scope"
)

// CoreModule is the name of the module holding the built-in services.
const CoreModule = "op"

// Built-in service keys.
const (
	KeyParse     = scope.KeyParse
	KeyRootScope = "_root_scope"
	KeyCompile   = "_compile"
	AppDirective = "op_app"
)

// Option configures the core module.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	digestTTL     int
	engine        string
	engineOptions []parse.EngineOption
	observers     []scope.Observer
	scopeOptions  []scope.Option
}

// WithLogger sets the logger handed to every core service.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithDigestTTL sets the digest TTL of the root scope.
func WithDigestTTL(ttl int) Option {
	return func(cfg *config) {
		cfg.digestTTL = ttl
	}
}

// WithEngine selects the expression engine by name (expr, cel or js).
func WithEngine(name string, opts ...parse.EngineOption) Option {
	return func(cfg *config) {
		cfg.engine = name
		cfg.engineOptions = append(cfg.engineOptions, opts...)
	}
}

// WithObserver registers observers on the root scope.
func WithObserver(observers ...scope.Observer) Option {
	return func(cfg *config) {
		cfg.observers = append(cfg.observers, observers...)
	}
}

// WithScopeOptions passes extra options to the root scope.
func WithScopeOptions(opts ...scope.Option) Option {
	return func(cfg *config) {
		cfg.scopeOptions = append(cfg.scopeOptions, opts...)
	}
}

func applyOptions(opts []Option) config {
	cfg := config{digestTTL: scope.DefaultDigestTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = NopLogger()
	}
	return cfg
}

// NewRegistry returns a module registry with the core module defined.
func NewRegistry(opts ...Option) (*injector.Registry, error) {
	registry := injector.NewRegistry()
	if err := Register(registry, opts...); err != nil {
		return nil, err
	}
	return registry, nil
}

// Register defines the core module on registry: the "_parse",
// "_root_scope" and "_compile" providers and the op_app directive.
func Register(registry *injector.Registry, opts ...Option) error {
	cfg := applyOptions(opts)

	engine, err := parse.EngineByName(cfg.engine, cfg.engineOptions...)
	if err != nil {
		return fmt.Errorf("opular: %w", err)
	}

	scopeOpts := append([]scope.Option{scope.WithLogger(cfg.logger)}, cfg.scopeOptions...)
	scopeOpts = append(scopeOpts, scope.WithDigestTTL(cfg.digestTTL))
	rootScope := scope.NewProvider(scopeOpts...)
	rootScope.Observe(cfg.observers...)

	registry.Module(CoreModule).
		Provider(KeyParse, parse.NewProvider(parse.WithEngine(engine), parse.WithLogger(cfg.logger))).
		Provider(KeyRootScope, rootScope).
		Provider(KeyCompile, compile.NewProvider(compile.WithLogger(cfg.logger))).
		Directive(AppDirective, injector.Construct[App](func(app *App) {
			app.logger = cfg.logger
		}))
	return nil
}

// Bootstrap builds an injector loading the core module followed by modules.
// Registry must have the core module defined, see Register.
func Bootstrap(registry *injector.Registry, modules []any, opts ...Option) (*injector.Injector, error) {
	cfg := applyOptions(opts)
	if _, err := registry.Lookup(CoreModule); err != nil {
		return nil, fmt.Errorf("opular: %w", err)
	}
	list := append([]any{CoreModule}, modules...)
	return injector.New(registry, list, injector.WithLogger(cfg.logger))
}

// Services resolves the root scope and the compiler of inj.
func Services(inj *injector.Injector) (*scope.Scope, *compile.Compiler, error) {
	root, err := injector.GetAs[*scope.Scope](inj, KeyRootScope)
	if err != nil {
		return nil, nil, err
	}
	compiler, err := injector.GetAs[*compile.Compiler](inj, KeyCompile)
	if err != nil {
		return nil, nil, err
	}
	return root, compiler, nil
}
