package scope

import (
	"fmt"
	"math"
	"reflect"

	"github.com/goliatone/go-opular/layering"
	"github.com/goliatone/go-opular/parse"
)

// Listener is notified with the new and previous watch value. On the first
// notification oldValue equals newValue.
type Listener func(newValue, oldValue any, s *Scope)

type initial struct{}

// initWatchVal marks a watcher that has not observed a value yet.
var initWatchVal = &initial{}

type watcher struct {
	watch    parse.Func
	listener Listener
	byValue  bool
	last     any
	removed  bool
}

func (w *watcher) fresh() bool {
	marker, ok := w.last.(*initial)
	return ok && marker == initWatchVal
}

// Watch registers expr to be compared on every digest round. When byValue is
// set, values are compared structurally and a deep copy is retained;
// otherwise maps, slices, pointers and functions compare by identity. The
// returned function deregisters the watcher and is safe to call during a
// digest.
func (s *Scope) Watch(expr any, listener Listener, byValue bool) func() {
	w := &watcher{
		watch:    s.callable(expr),
		listener: listener,
		byValue:  byValue,
		last:     initWatchVal,
	}
	s.watchers = append(s.watchers, w)
	s.state.lastDirtyWatch = nil

	return func() {
		if w.removed {
			return
		}
		w.removed = true
		for i, candidate := range s.watchers {
			if candidate == w {
				s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
				break
			}
		}
		s.state.lastDirtyWatch = nil
	}
}

// WatchCount returns the number of watchers registered on s.
func (s *Scope) WatchCount() int { return len(s.watchers) }

// callable accepts scope-typed functions in addition to anything the
// translator understands.
func (s *Scope) callable(expr any) parse.Func {
	switch fn := expr.(type) {
	case parse.Func:
		return fn
	case func(*Scope) any:
		return func(self parse.Env, _ map[string]any) (any, error) { return fn(asScope(self, s)), nil }
	case func(*Scope) (any, error):
		return func(self parse.Env, _ map[string]any) (any, error) { return fn(asScope(self, s)) }
	case func(*Scope) error:
		return func(self parse.Env, _ map[string]any) (any, error) { return nil, fn(asScope(self, s)) }
	case func(*Scope):
		return func(self parse.Env, _ map[string]any) (any, error) {
			fn(asScope(self, s))
			return nil, nil
		}
	default:
		return s.parse.Callable(expr)
	}
}

func asScope(env parse.Env, fallback *Scope) *Scope {
	if typed, ok := env.(*Scope); ok && typed != nil {
		return typed
	}
	return fallback
}

func (w *watcher) changed(newValue any) bool {
	if w.fresh() {
		return true
	}
	if w.byValue {
		return !reflect.DeepEqual(newValue, w.last)
	}
	return !sameValue(newValue, w.last)
}

func (w *watcher) record(value any) {
	if w.byValue {
		w.last = layering.Clone(value)
		return
	}
	w.last = value
}

// sameValue compares by identity for reference kinds and by value otherwise.
// NaN equals NaN so a NaN watch value does not keep the digest dirty.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNaN(a) && isNaN(b) {
		return true
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Type().Comparable() {
		if equal, ok := safeEqual(a, b); ok {
			return equal
		}
	}
	return reflect.DeepEqual(a, b)
}

func safeEqual(a, b any) (equal bool, ok bool) {
	defer func() {
		if recover() != nil {
			equal, ok = false, false
		}
	}()
	return a == b, true
}

func isNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

func (w *watcher) notify(newValue any, s *Scope) (err error) {
	if w.listener == nil {
		return nil
	}
	old := w.last
	if w.fresh() {
		old = newValue
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scope: listener panic: %v", rec)
		}
	}()
	w.listener(newValue, old, s)
	return nil
}
