package parse

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

var anySliceType = reflect.TypeOf([]any{})

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEngine constructs an Engine backed by cel-go. Every environment key
// is declared as a dynamic variable, so programs are checked per key set.
func NewCELEngine(opts ...EngineOption) Engine {
	cfg := applyEngineOptions(opts)
	return &celEngine{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *celEngine) Name() string { return EngineCEL }

// Compile parses expression eagerly so syntax errors surface at compile time.
// Type checking waits for the first environment.
func (e *celEngine) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapEngineError(EngineCEL, fmt.Errorf("expression must not be empty"))
	}
	env, err := e.buildEnv(nil)
	if err != nil {
		return nil, wrapEngineError(EngineCEL, err)
	}
	if _, issues := env.Parse(expression); issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError(EngineCEL, expression, issues.Err())
	}
	return &celCompiled{engine: e, expression: expression}, nil
}

func (e *celEngine) loadOrCompile(expression string, env map[string]any) (*celProgram, error) {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	cacheKey := EngineCEL + ":" + strings.Join(keys, ",") + ":" + expression

	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	celEnv, err := e.buildEnv(keys)
	if err != nil {
		return nil, err
	}
	ast, issues := celEnv.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := celEnv.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := celEnv.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     celEnv,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, bundle)
	}
	return bundle, nil
}

func (e *celEngine) buildEnv(keys []string) (*celgo.Env, error) {
	var opts []celgo.EnvOption
	if e.registry != nil {
		opts = append(opts, celgo.Function(CallHelper, celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.FunctionBinding(e.callBinding()),
		)))
	}
	for _, key := range keys {
		if key == CallHelper && e.registry != nil {
			continue
		}
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

type celCompiled struct {
	engine     *celEngine
	expression string
}

func (p *celCompiled) Run(env map[string]any) (any, error) {
	if env == nil {
		env = map[string]any{}
	}
	program, err := p.engine.loadOrCompile(p.expression, env)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, p.expression, err)
	}
	out, _, err := program.program.Eval(env)
	if err != nil {
		return nil, wrapEvaluationError(EngineCEL, p.expression, err)
	}
	return out.Value(), nil
}

// callBinding serves call("name", [args...]).
func (e *celEngine) callBinding() functions.FunctionOp {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("parse: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("parse: call name must be string")
		}
		var args []any
		if len(values) > 1 {
			native, err := values[1].ConvertToNative(anySliceType)
			if err != nil {
				return types.NewErr("parse: call arguments: %v", err)
			}
			args = native.([]any)
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
