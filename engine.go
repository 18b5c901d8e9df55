package stratabase

import (
	"errors"
	"fmt"
)

// Engine names an expression language the store can evaluate with.
type Engine string

const (
	EngineExpr Engine = "expr"
	EngineCEL  Engine = "cel"
	// EngineJS needs the js_eval build tag.
	EngineJS Engine = "js"
)

var ErrEngineUnavailable = errors.New("stratabase: evaluation engine unavailable")

// WithEngine selects the engine built by the store when no evaluator is
// given through WithEvaluator. The engine receives the store's program cache
// and function registry.
func WithEngine(engine Engine) Option {
	return func(cfg *config) {
		cfg.engine = engine
	}
}

// engineNamer is implemented by the built-in evaluators.
type engineNamer interface {
	engine() Engine
}

func (*exprEvaluator) engine() Engine { return EngineExpr }
func (*celEvaluator) engine() Engine  { return EngineCEL }

func (s *Stratabase) buildEvaluator() (Evaluator, error) {
	cache, registry := s.cfg.programCache, s.cfg.functions
	switch s.cfg.engine {
	case "", EngineExpr:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case EngineJS:
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrEngineUnavailable, s.cfg.engine)
	}
}

type jsEvaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsEvaluatorConfig)

// JSWithProgramCache caches compiled scripts by expression.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry exposes registry functions as globals and through
// call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyJSEvaluatorOptions(opts []JSEvaluatorOption) jsEvaluatorConfig {
	cfg := jsEvaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
