// Package parse translates expressions into callables evaluated against a
// variable environment. Callables pass through unchanged, source strings are
// compiled by a pluggable Engine (expr-lang by default) and anything else
// becomes a no-op.
package parse

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// Env is the variable source an expression is evaluated against.
type Env interface {
	Vars() map[string]any
}

// Func is a translated expression. locals shadow the variables of self.
type Func func(self Env, locals map[string]any) (any, error)

// Option configures a Parser.
type Option func(*config)

type config struct {
	engine    Engine
	engineOpt []EngineOption
	logger    *slog.Logger
}

// WithEngine selects the engine used for source strings.
func WithEngine(engine Engine) Option {
	return func(cfg *config) {
		cfg.engine = engine
	}
}

// WithEngineOptions configures the default expr engine when no engine is set.
func WithEngineOptions(opts ...EngineOption) Option {
	return func(cfg *config) {
		cfg.engineOpt = append(cfg.engineOpt, opts...)
	}
}

// WithLogger sets the logger used for evaluation events.
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
	if cfg.engine == nil {
		cfg.engine = NewExprEngine(cfg.engineOpt...)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg
}

// Parser is the expression translator.
type Parser struct {
	engine Engine
	logger *slog.Logger
}

// New constructs a Parser.
func New(opts ...Option) *Parser {
	cfg := applyOptions(opts)
	return &Parser{engine: cfg.engine, logger: cfg.logger}
}

// Engine returns the engine compiling source strings.
func (p *Parser) Engine() Engine { return p.engine }

// Callable translates expr. Compile failures are deferred: the returned Func
// reports them on every call.
func (p *Parser) Callable(expr any) Func {
	switch fn := expr.(type) {
	case nil:
		return noop
	case Func:
		return fn
	case func(Env, map[string]any) (any, error):
		return fn
	case func(Env) (any, error):
		return func(self Env, _ map[string]any) (any, error) { return fn(self) }
	case func(Env) any:
		return func(self Env, _ map[string]any) (any, error) { return fn(self), nil }
	case func() (any, error):
		return func(Env, map[string]any) (any, error) { return fn() }
	case func() any:
		return func(Env, map[string]any) (any, error) { return fn(), nil }
	case func() error:
		return func(Env, map[string]any) (any, error) { return nil, fn() }
	case func():
		return func(Env, map[string]any) (any, error) {
			fn()
			return nil, nil
		}
	case string:
		compiled, err := p.Compile(fn)
		if err != nil {
			return func(Env, map[string]any) (any, error) { return nil, err }
		}
		return compiled
	default:
		return noop
	}
}

// Compile translates a source string. Blank source yields a no-op.
func (p *Parser) Compile(source string) (Func, error) {
	if strings.TrimSpace(source) == "" {
		return noop, nil
	}
	program, err := p.engine.Compile(source)
	if err != nil {
		p.logger.Debug("parse: compile failed", "engine", p.engine.Name(), "expr", source, "err", err)
		return nil, wrapEvaluationError(p.engine.Name(), source, err)
	}
	engine := p.engine.Name()
	return func(self Env, locals map[string]any) (any, error) {
		start := time.Now()
		value, err := program.Run(environment(self, locals))
		p.logger.Debug("parse: evaluated",
			"engine", engine,
			"expr", source,
			"duration", time.Since(start),
			"err", err,
		)
		if err != nil {
			return nil, wrapEvaluationError(engine, source, err)
		}
		return value, nil
	}, nil
}

func environment(self Env, locals map[string]any) map[string]any {
	env := map[string]any{}
	if self != nil {
		for key, value := range self.Vars() {
			env[key] = value
		}
	}
	for key, value := range locals {
		env[key] = value
	}
	return env
}

func noop(Env, map[string]any) (any, error) { return nil, nil }
