package injector

import (
	"fmt"
	"reflect"
	"strings"
)

// Locals override dependency lookups for a single invocation.
type Locals map[string]any

// Invocable is a callable that declares its dependencies by name. The
// receiver is whatever the caller binds the call to (nil for plain calls).
type Invocable interface {
	Dependencies() []string
	Call(receiver any, args []any) (any, error)
}

// Fn is the explicit form of an Invocable.
type Fn struct {
	Inject []string
	Func   func(receiver any, args []any) (any, error)
}

// Dependencies implements Invocable.
func (f Fn) Dependencies() []string { return f.Inject }

// Call implements Invocable.
func (f Fn) Call(receiver any, args []any) (any, error) {
	if f.Func == nil {
		return nil, nil
	}
	return f.Func(receiver, args)
}

// Annotate attaches dependency names to an ordinary Go function. Arguments are
// passed positionally. When the function takes one more parameter than there
// are names, the invocation receiver is passed first.
//
// Supported result shapes are (), (T), (error) and (T, error).
func Annotate(fn any, names ...string) Fn {
	inject := append([]string(nil), names...)
	return Fn{
		Inject: inject,
		Func: func(receiver any, args []any) (any, error) {
			return callReflect(fn, receiver, args)
		},
	}
}

// Constructor builds a value in two phases: New allocates the bare value and
// Init receives it together with the resolved dependencies.
type Constructor struct {
	Inject []string
	New    func() any
	Init   func(self any, args []any) error
}

// Construct builds a Constructor for *T. init must be a function whose first
// parameter is *T followed by one parameter per name; it may return an error.
// A nil init leaves the zero value untouched.
func Construct[T any](init any, names ...string) Constructor {
	inject := append([]string(nil), names...)
	return Constructor{
		Inject: inject,
		New:    func() any { return new(T) },
		Init: func(self any, args []any) error {
			if init == nil {
				return nil
			}
			_, err := callReflect(init, self, args)
			return err
		},
	}
}

// annotate extracts the dependency list and call target of fn.
func annotate(fn any) ([]string, func(receiver any, args []any) (any, error), error) {
	switch typed := fn.(type) {
	case nil:
		return nil, nil, fmt.Errorf("%w: <nil>", ErrNotInvocable)
	case Invocable:
		return typed.Dependencies(), typed.Call, nil
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("%w: %T", ErrNotInvocable, fn)
	}
	if rv.Type().NumIn() > 0 {
		// Parameter names are not available at runtime.
		return nil, nil, InvalidInjectionTokenError{Token: rv.Type().String()}
	}
	return nil, func(receiver any, args []any) (any, error) {
		return callReflect(fn, receiver, args)
	}, nil
}

func isInvocable(fn any) bool {
	if fn == nil {
		return false
	}
	if _, ok := fn.(Invocable); ok {
		return true
	}
	return reflect.ValueOf(fn).Kind() == reflect.Func
}

func validToken(token string) bool {
	return strings.TrimSpace(token) != ""
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func callReflect(fn any, receiver any, args []any) (result any, err error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T", ErrNotInvocable, fn)
	}
	ft := rv.Type()

	in := args
	if ft.NumIn() == len(args)+1 {
		in = append([]any{receiver}, args...)
	}
	if ft.NumIn() != len(in) && !ft.IsVariadic() {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrArgumentType, ft, ft.NumIn(), len(args))
	}

	values := make([]reflect.Value, len(in))
	for i, arg := range in {
		pt := paramType(ft, i)
		if arg == nil {
			values[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(arg)
		if !av.Type().AssignableTo(pt) {
			return nil, fmt.Errorf("%w: argument %d of %s is %T", ErrArgumentType, i, ft, arg)
		}
		values[i] = av
	}

	out := rv.Call(values)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if ft.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("%w: %s second result must be error", ErrNotInvocable, ft)
		}
		return out[0].Interface(), asError(out[1])
	default:
		return nil, fmt.Errorf("%w: %s returns %d values", ErrNotInvocable, ft, len(out))
	}
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}

func asError(v reflect.Value) error {
	if !v.IsValid() || v.IsNil() {
		return nil
	}
	err, _ := v.Interface().(error)
	return err
}
