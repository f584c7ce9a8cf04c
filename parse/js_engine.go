//go:build js_eval

package parse

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEngine constructs an Engine backed by goja. Each run uses a fresh
// runtime seeded with the environment.
func NewJSEngine(opts ...EngineOption) Engine {
	cfg := applyEngineOptions(opts)
	return &jsEngine{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *jsEngine) Name() string { return EngineJS }

func (e *jsEngine) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapEngineError(EngineJS, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, expression, err)
	}
	return &jsProgram{engine: e, expression: expression, program: program}, nil
}

func (e *jsEngine) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(EngineJS + ":" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", e.wrapExpression(expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(EngineJS+":"+expression, program)
	}
	return program, nil
}

func (e *jsEngine) wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsProgram struct {
	engine     *jsEngine
	expression string
	program    *goja.Program
}

func (p *jsProgram) Run(env map[string]any) (any, error) {
	vm := goja.New()
	for key, value := range env {
		if err := vm.Set(key, value); err != nil {
			return nil, wrapEvaluationError(EngineJS, p.expression, err)
		}
	}
	for name, fn := range p.engine.registry.bindings() {
		if err := vm.Set(name, (func(...any) (any, error))(fn)); err != nil {
			return nil, wrapEvaluationError(EngineJS, p.expression, err)
		}
	}
	value, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, wrapEvaluationError(EngineJS, p.expression, err)
	}
	return value.Export(), nil
}

// JSEngineAvailable reports whether the goja engine is compiled in.
func JSEngineAvailable() bool {
	return true
}
