//go:build !js_eval

package stratabase

import "fmt"

// NewJSEvaluator returns an evaluator failing every call with
// ErrEngineUnavailable. Build with the js_eval tag to link goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return unavailableEvaluator{name: EngineJS}
}

type unavailableEvaluator struct {
	name Engine
}

func (u unavailableEvaluator) engine() Engine { return u.name }

func (u unavailableEvaluator) err() error {
	return fmt.Errorf("%w: %s requires the js_eval build tag", ErrEngineUnavailable, u.name)
}

func (u unavailableEvaluator) Evaluate(RuleContext, string) (any, error) {
	return nil, u.err()
}

func (u unavailableEvaluator) Compile(string, ...CompileOption) (CompiledRule, error) {
	return nil, u.err()
}
