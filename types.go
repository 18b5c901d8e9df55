package stratabase

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-stratabase/pkg/activity"
)

const (
	// BaselineLayer addresses the baseline stratum.
	BaselineLayer = -1
	// NotFoundLayer is reported when no layer holds a property.
	NotFoundLayer = -2
)

// PropertyBag maps property names to stored values for one object.
type PropertyBag map[string]any

type stratum map[uuid.UUID]PropertyBag

// EqualityTester decides whether a write would leave a property unchanged.
type EqualityTester func(a, b any) bool

// DefaultEqualityTester compares values with reflect.DeepEqual.
func DefaultEqualityTester(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Change describes one successful mutation of a stratum. Layer is
// BaselineLayer when IsBaseline is set.
type Change struct {
	ID         uuid.UUID
	Property   string
	IsBaseline bool
	Layer      int
	OldValue   any
	NewValue   any
	IsRemoval  bool
}

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI is an OpenAPI 3 document whose request body
	// describes the object.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument encapsulates a generated schema output alongside its format
// identifier. Implementations must ensure Document is JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
	Layers   []SchemaLayer
}

// SchemaLayer describes one stratum included in a schema document.
type SchemaLayer struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

// SchemaGenerator transforms a resolved property map into a schema document.
// Implementations handle nil inputs by returning an empty document.
type SchemaGenerator interface {
	Generate(value any) (SchemaDocument, error)
}

// Response stores a typed result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// RuleContext carries inputs needed when evaluating an expression. Object
// holds the resolved properties of the object being evaluated.
type RuleContext struct {
	ID       uuid.UUID
	Object   map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Layer    string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Object == nil {
		ctx.Object = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) objectLabel() string {
	if ctx.ID != uuid.Nil {
		return ctx.ID.String()
	}
	return "unknown"
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Option configures a Stratabase.
type Option func(*config)

type config struct {
	equal           EqualityTester
	evaluator       Evaluator
	engine          Engine
	programCache    ProgramCache
	functions       *FunctionRegistry
	logger          EvaluatorLogger
	schemaGenerator SchemaGenerator
	activityHooks   activity.Hooks
	activityConfig  *activity.Config
	scopes          []Scope
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.equal == nil {
		cfg.equal = DefaultEqualityTester
	}
	return cfg
}
