//go:build !js_eval

package parse

// NewJSEngine is unavailable without the js_eval build tag.
func NewJSEngine(opts ...EngineOption) Engine {
	_ = applyEngineOptions(opts)
	return nil
}

// JSEngineAvailable reports whether the goja engine is compiled in.
func JSEngineAvailable() bool {
	return false
}
