package stratabase

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	program, err := e.loadOrCompile(expression, ctx)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.objectLabel(), err)
	}
	out, _, err := program.program.Eval(e.activation(ctx))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.objectLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
	}, nil
}

// loadOrCompile caches programs per expression and set of bindable property
// names, since every property is declared as a variable. Registry functions
// are bound to the object of ctx, so programs using a registry are built per
// evaluation and never cached.
func (e *celEvaluator) loadOrCompile(expression string, ctx RuleContext) (*celProgram, error) {
	names := bindableNames(ctx.Object)
	key := expression + "\x00" + strings.Join(names, ",")
	cacheable := e.cache != nil && e.registry == nil
	if cacheable {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(names, ctx)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if cacheable {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(names []string, ctx RuleContext) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("id", celgo.StringType),
		celgo.Variable("layer", celgo.StringType),
		celgo.Variable("object", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	if e.registry != nil {
		opts = append(opts, e.registryFunctions(ctx)...)
	}
	for _, name := range names {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

// registryFunctions declares call(name), call(name, [args]) and, per
// registered function, fn(), fn(a) and fn(a, b).
func (e *celEvaluator) registryFunctions(ctx RuleContext) []celgo.EnvOption {
	dispatch, named := e.registry.bind(ctx)
	opts := []celgo.EnvOption{
		celgo.Function("call",
			celgo.Overload("call_string", []*celgo.Type{celgo.StringType}, celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return celCall(dispatch, name, nil)
				})),
			celgo.Overload("call_string_list", []*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)}, celgo.DynType,
				celgo.BinaryBinding(func(name, args ref.Val) ref.Val {
					return celCall(dispatch, name, args)
				})),
		),
	}
	for _, name := range e.registry.Names() {
		if _, reserved := celReserved[name]; reserved || !isIdentifier(name) {
			continue
		}
		fn := named[name]
		opts = append(opts, celgo.Function(name,
			celgo.Overload(name+"_0", nil, celgo.DynType,
				celgo.FunctionBinding(func(...ref.Val) ref.Val {
					return celResult(fn())
				})),
			celgo.Overload(name+"_1", []*celgo.Type{celgo.DynType}, celgo.DynType,
				celgo.UnaryBinding(func(a ref.Val) ref.Val {
					return celResult(fn(a.Value()))
				})),
			celgo.Overload(name+"_2", []*celgo.Type{celgo.DynType, celgo.DynType}, celgo.DynType,
				celgo.BinaryBinding(func(a, b ref.Val) ref.Val {
					return celResult(fn(a.Value(), b.Value()))
				})),
		))
	}
	return opts
}

var anySliceType = reflect.TypeOf([]any{})

func celCall(dispatch func(string, ...any) (any, error), name, args ref.Val) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("stratabase: call name must be string")
	}
	var arguments []any
	if args != nil {
		native, err := args.ConvertToNative(anySliceType)
		if err != nil {
			return types.NewErr("stratabase: call arguments: %s", err)
		}
		arguments = native.([]any)
	}
	return celResult(dispatch(fn, arguments...))
}

func celResult(result any, err error) ref.Val {
	if err != nil {
		return types.NewErr("%s", err)
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

func (e *celEvaluator) activation(ctx RuleContext) map[string]any {
	activation := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"id":       ctx.ID.String(),
		"layer":    ctx.Layer,
		"object":   ctx.Object,
	}
	for _, name := range bindableNames(ctx.Object) {
		activation[name] = ctx.Object[name]
	}
	return activation
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, fmt.Errorf("cel compiled rule missing evaluator")
	}
	return r.evaluator.Evaluate(ctx, r.expression)
}

var celReserved = map[string]struct{}{
	"now": {}, "args": {}, "metadata": {}, "id": {}, "layer": {}, "object": {}, "call": {},
	"in": {}, "as": {}, "break": {}, "const": {}, "continue": {}, "else": {}, "for": {},
	"function": {}, "if": {}, "import": {}, "let": {}, "loop": {}, "package": {},
	"namespace": {}, "return": {}, "var": {}, "void": {}, "while": {},
	"true": {}, "false": {}, "null": {},
}

// bindableNames returns the sorted property names usable as CEL variables.
// Other properties stay reachable through object["name"].
func bindableNames(object map[string]any) []string {
	names := make([]string, 0, len(object))
	for name := range object {
		if _, reserved := celReserved[name]; reserved || !isIdentifier(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
