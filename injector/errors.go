package injector

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProvider is matched by UnknownProviderError.
	ErrUnknownProvider = errors.New("injector: unknown provider")

	// ErrCircularDependency is matched by CircularDependencyError.
	ErrCircularDependency = errors.New("injector: circular dependency")

	// ErrInvalidInjectionToken is matched by InvalidInjectionTokenError.
	ErrInvalidInjectionToken = errors.New("injector: invalid injection token")

	// ErrNotInvocable is returned when a value handed to Invoke is not a callable.
	ErrNotInvocable = errors.New("injector: value is not invocable")

	// ErrNotProvider is returned when a registered provider has no resolver.
	ErrNotProvider = errors.New("injector: value is not a provider")

	// ErrArgumentType is returned when a resolved dependency does not fit the
	// parameter it is injected into.
	ErrArgumentType = errors.New("injector: argument type mismatch")

	// ErrModuleNotFound is returned when a module name is not registered.
	ErrModuleNotFound = errors.New("injector: module not available")

	// ErrUnknownModuleType is returned for module list entries that are neither
	// module names nor invocable config functions.
	ErrUnknownModuleType = errors.New("injector: unknown module type")
)

// UnknownProviderError reports a key for which no provider could be found.
// Path lists the missing key first, followed by the keys that requested it.
type UnknownProviderError struct {
	Path []string
}

// Error implements the error interface.
func (e UnknownProviderError) Error() string {
	// Example: injector: unknown provider: b_provider <- b <- a
	return ErrUnknownProvider.Error() + ": " + strings.Join(e.Path, " <- ")
}

// Unwrap allows errors.Is(err, ErrUnknownProvider).
func (e UnknownProviderError) Unwrap() error { return ErrUnknownProvider }

// CircularDependencyError reports a key requested while it was still being
// built. Path starts with the repeated key.
type CircularDependencyError struct {
	Path []string
}

// Error implements the error interface.
func (e CircularDependencyError) Error() string {
	// Example: injector: circular dependency found: a <- b <- a
	return ErrCircularDependency.Error() + " found: " + strings.Join(e.Path, " <- ")
}

// Unwrap allows errors.Is(err, ErrCircularDependency).
func (e CircularDependencyError) Unwrap() error { return ErrCircularDependency }

// InvalidInjectionTokenError reports a dependency declaration that cannot be
// used as a lookup key.
type InvalidInjectionTokenError struct {
	Token any
}

// Error implements the error interface.
func (e InvalidInjectionTokenError) Error() string {
	return fmt.Sprintf("%s: %#v", ErrInvalidInjectionToken.Error(), e.Token)
}

// Unwrap allows errors.Is(err, ErrInvalidInjectionToken).
func (e InvalidInjectionTokenError) Unwrap() error { return ErrInvalidInjectionToken }

func copyPath(parts ...[]string) []string {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]string, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
