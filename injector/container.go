package injector

import (
	"fmt"
	"log/slog"
)

type cellState uint8

const (
	cellPending cellState = iota + 1
	cellResolved
)

// cell is one cache entry. A missing map entry is the absent state.
type cell struct {
	state cellState
	value any
}

func resolvedCell(value any) *cell {
	return &cell{state: cellResolved, value: value}
}

// fallbackFunc produces the value for a key missing from the cache. path holds
// the keys currently being resolved on this tier, newest first, starting
// with key itself.
type fallbackFunc func(key string, path []string) (any, error)

// Container is one resolution tier. The instance tier is exposed to factories
// as the "_injector" service and the provider tier to config blocks.
type Container struct {
	name      string
	cache     map[string]*cell
	providers map[string]*cell
	fallback  fallbackFunc
	path      []string
	logger    *slog.Logger
}

func newContainer(name string, cache, providers map[string]*cell, fallback fallbackFunc, logger *slog.Logger) *Container {
	return &Container{
		name:      name,
		cache:     cache,
		providers: providers,
		fallback:  fallback,
		logger:    logger,
	}
}

// Get resolves key, building it through the tier fallback on first use.
func (c *Container) Get(key string) (any, error) {
	if entry, ok := c.cache[key]; ok {
		if entry.state == cellPending {
			return nil, CircularDependencyError{Path: copyPath([]string{key}, c.path)}
		}
		return entry.value, nil
	}

	entry := &cell{state: cellPending}
	c.cache[key] = entry
	c.path = append([]string{key}, c.path...)
	defer func() {
		c.path = c.path[1:]
		if current, ok := c.cache[key]; ok && current == entry && entry.state == cellPending {
			delete(c.cache, key)
		}
	}()

	value, err := c.build(key)
	if err != nil {
		return nil, err
	}
	entry.state = cellResolved
	entry.value = value
	c.logger.Debug("injector: resolved", "tier", c.name, "key", key)
	return value, nil
}

func (c *Container) build(key string) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = fmt.Errorf("injector: panic while resolving %q: %v", key, rec)
		}
	}()
	return c.fallback(key, copyPath(c.path))
}

// Has reports whether key is cached or has a registered provider.
func (c *Container) Has(key string) bool {
	if _, ok := c.cache[key]; ok {
		return true
	}
	_, ok := c.providers[key+providerSuffix]
	return ok
}

// Invoke resolves the dependencies of fn, preferring locals, and calls it
// bound to receiver.
func (c *Container) Invoke(fn any, receiver any, locals Locals) (any, error) {
	tokens, call, err := annotate(fn)
	if err != nil {
		return nil, err
	}

	args := make([]any, len(tokens))
	for i, token := range tokens {
		if !validToken(token) {
			return nil, InvalidInjectionTokenError{Token: token}
		}
		if value, ok := locals[token]; ok {
			args[i] = value
			continue
		}
		value, err := c.Get(token)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return safeCall(call, receiver, args)
}

// Instantiate allocates the value described by ctor and runs its init
// function with injected dependencies and the value as receiver.
func (c *Container) Instantiate(ctor Constructor, locals Locals) (any, error) {
	if ctor.New == nil {
		return nil, fmt.Errorf("%w: constructor without allocator", ErrNotInvocable)
	}
	self := ctor.New()
	init := Fn{
		Inject: ctor.Inject,
		Func: func(receiver any, args []any) (any, error) {
			if ctor.Init == nil {
				return nil, nil
			}
			return nil, ctor.Init(receiver, args)
		},
	}
	if _, err := c.Invoke(init, self, locals); err != nil {
		return nil, err
	}
	return self, nil
}

// Path returns a copy of the keys currently being resolved, newest first.
func (c *Container) Path() []string {
	return copyPath(c.path)
}

func safeCall(call func(any, []any) (any, error), receiver any, args []any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("injector: panic during invocation: %v", rec)
		}
	}()
	return call(receiver, args)
}
