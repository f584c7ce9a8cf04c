package parse

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// CallHelper is the name of the dispatcher installed next to the registered
// helpers: call("name", args...) reaches a helper by a computed name.
const CallHelper = "call"

var (
	// ErrFunctionExists is returned when a helper name is taken.
	ErrFunctionExists = errors.New("parse: function already registered")
	// ErrUnknownFunction is returned when calling a name nothing registered.
	ErrUnknownFunction = errors.New("parse: unknown function")
)

// Function is a helper callable from string expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers visible to expressions. Names are case
// insensitive.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: map[string]Function{}}
}

// Register adds fn under name. CallHelper is reserved.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return errors.New("parse: function name must not be empty")
	case key == CallHelper:
		return fmt.Errorf("parse: function name %q is reserved", name)
	case fn == nil:
		return fmt.Errorf("parse: function %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = map[string]Function{}
	}
	if _, taken := r.funcs[key]; taken {
		return fmt.Errorf("%w: %q", ErrFunctionExists, name)
	}
	r.funcs[key] = fn
	return nil
}

// Clone snapshots the registry. Engines keep a snapshot so later
// registrations do not change compiled programs.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{funcs: maps.Clone(r.funcs)}
}

// Call runs the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn := r.lookup(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return fn(args...)
}

// Names lists the registered helpers in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.funcs))
}

func (r *FunctionRegistry) lookup(name string) Function {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.funcs[strings.ToLower(name)]
}

// dispatch backs CallHelper: the first argument names the helper.
func (r *FunctionRegistry) dispatch(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("parse: call requires a function name")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("parse: call name must be a string, got %T", args[0])
	}
	return r.Call(name, args[1:]...)
}

// bindings returns every helper plus the dispatcher, keyed by the name
// expressions use.
func (r *FunctionRegistry) bindings() map[string]Function {
	if r == nil {
		return nil
	}
	out := map[string]Function{CallHelper: r.dispatch}
	for _, name := range r.Names() {
		out[name] = func(args ...any) (any, error) { return r.Call(name, args...) }
	}
	return out
}
