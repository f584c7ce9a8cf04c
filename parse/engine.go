package parse

import "fmt"

// Engine names accepted by EngineByName.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Engine compiles expression source into reusable programs.
type Engine interface {
	Name() string
	Compile(expression string) (Program, error)
}

// Program is a compiled expression evaluated against a variable environment.
type Program interface {
	Run(env map[string]any) (any, error)
}

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

// WithProgramCache wires a ProgramCache into an engine.
func WithProgramCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry wires a FunctionRegistry into an engine. The registry
// is cloned so later registrations do not leak into compiled programs.
func WithFunctionRegistry(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyEngineOptions(opts []EngineOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// EngineByName constructs the named engine.
func EngineByName(name string, opts ...EngineOption) (Engine, error) {
	switch name {
	case "", EngineExpr:
		return NewExprEngine(opts...), nil
	case EngineCEL:
		return NewCELEngine(opts...), nil
	case EngineJS:
		if !JSEngineAvailable() {
			return nil, fmt.Errorf("%w: %s (build with -tags js_eval)", ErrEngineUnavailable, name)
		}
		return NewJSEngine(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}
