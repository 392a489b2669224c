//go:build !js_eval

package filter

// NewJS is unavailable without the js_eval build tag and returns nil.
func NewJS(opts ...JSOption) Evaluator {
	_ = applyJSOptions(opts)
	return nil
}

// JSAvailable reports whether the binary was built with the js_eval tag.
func JSAvailable() bool {
	return false
}
