package stratabase

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Call is what a registered function sees of the evaluation invoking it.
type Call struct {
	ID     uuid.UUID
	Layer  string
	Object map[string]any
}

// Property returns the resolved value of name on the evaluated object.
func (c Call) Property(name string) (any, bool) {
	v, ok := c.Object[name]
	return v, ok
}

// Function is a helper callable from expressions. It receives the object
// under evaluation along with the expression arguments.
type Function func(call Call, args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by lower-cased name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name. Names are case insensitive and may not be
// registered twice.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("stratabase: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("stratabase: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("stratabase: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a copy that later registrations on r do not affect.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		out.functions[name] = fn
	}
	return out
}

// Call runs the function registered for name on behalf of call.
func (r *FunctionRegistry) Call(call Call, name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("stratabase: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("stratabase: function %q not registered", name)
	}
	return fn(call, args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bind returns the generic dispatcher plus one closure per registered name,
// each carrying the object of ctx.
func (r *FunctionRegistry) bind(ctx RuleContext) (func(string, ...any) (any, error), map[string]func(...any) (any, error)) {
	call := Call{ID: ctx.ID, Layer: ctx.Layer, Object: ctx.Object}
	dispatch := func(name string, args ...any) (any, error) {
		return r.Call(call, name, args...)
	}
	names := r.Names()
	named := make(map[string]func(...any) (any, error), len(names))
	for _, name := range names {
		fn := name
		named[fn] = func(args ...any) (any, error) {
			return r.Call(call, fn, args...)
		}
	}
	return dispatch, named
}

// WithFunctionRegistry makes the functions in registry callable from
// expressions evaluated by the store.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the store.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
