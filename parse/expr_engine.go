package parse

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEngine compiles expressions using github.com/expr-lang/expr.
type exprEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEngine constructs the default Engine backed by expr-lang/expr.
// Undefined identifiers evaluate to nil.
func NewExprEngine(opts ...EngineOption) Engine {
	cfg := applyEngineOptions(opts)
	return &exprEngine{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *exprEngine) Name() string { return EngineExpr }

func (e *exprEngine) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapEngineError(EngineExpr, fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprProgram{engine: e, program: program, expression: expression}, nil
}

func (e *exprEngine) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(EngineExpr + ":" + expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for name, fn := range e.registry.bindings() {
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, expression, err)
	}
	if e.cache != nil {
		e.cache.Set(EngineExpr+":"+expression, program)
	}
	return program, nil
}

type exprProgram struct {
	engine     *exprEngine
	program    *exprvm.Program
	expression string
}

func (p *exprProgram) Run(env map[string]any) (any, error) {
	if env == nil {
		env = map[string]any{}
	}
	result, err := exprlang.Run(p.program, env)
	if err != nil {
		return nil, wrapEvaluationError(EngineExpr, p.expression, err)
	}
	return result, nil
}
