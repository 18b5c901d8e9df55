// Package populate builds typed values from the resolved properties of a
// stored object.
//
// A type opts in to extra behavior through small capability interfaces:
// Identifiable receives the object id and Describer names the properties
// holding lists or references to other objects.
package populate

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	sb "github.com/goliatone/go-stratabase"
	"github.com/goliatone/go-stratabase/internal/hydrate"
)

// ErrNotFound reports an id with no properties in any layer.
var ErrNotFound = errors.New("populate: object not found")

const defaultMaxDepth = 4

// Identifiable values carry the id of the object they were populated from.
type Identifiable interface {
	StrataID() uuid.UUID
	SetStrataID(uuid.UUID)
}

// Config names properties that need special handling.
type Config struct {
	// Lists are decoded as slices. A missing list decodes as empty.
	Lists []string
	// References hold ids (or lists of ids) of other objects. They are
	// replaced by the referenced object's resolved properties.
	References []string
}

// Describer values describe their own population Config.
type Describer interface {
	DescribeStrata() Config
}

// PreHook may rewrite the payload of the top-level object before decoding.
type PreHook func(id uuid.UUID, payload map[string]any) (map[string]any, error)

type options struct {
	config    *Config
	maxDepth  int
	strict    bool
	preHooks  []PreHook
	typeLabel string
}

// Option configures Populate.
type Option func(*options)

// WithConfig overrides the Config reported by a Describer.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = &cfg
	}
}

// WithMaxDepth bounds how many reference hops are expanded. References past
// the bound, dangling references and cycles are left as id strings.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth >= 0 {
			o.maxDepth = depth
		}
	}
}

// WithStrict rejects properties that have no matching field.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithPreHook adds a payload hook.
func WithPreHook(hook PreHook) Option {
	return func(o *options) {
		if hook != nil {
			o.preHooks = append(o.preHooks, hook)
		}
	}
}

// Populate decodes the resolved properties of id into a new T. List
// properties are merged across layers and references are expanded up to
// the configured depth. If T (or *T) is Identifiable it receives id.
func Populate[T any](s *sb.Stratabase, id uuid.UUID, opts ...Option) (T, error) {
	var zero T
	o := options{maxDepth: defaultMaxDepth, typeLabel: reflect.TypeFor[T]().String()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if !s.Contains(id) {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cfg := o.config
	if cfg == nil {
		described := describe[T]()
		cfg = &described
	}

	payload := buildPayload(s, id, *cfg, o.maxDepth, map[uuid.UUID]bool{})

	decoderOpts := []hydrate.DecoderOption[T]{}
	for _, hook := range o.preHooks {
		decoderOpts = append(decoderOpts, hydrate.WithPreHook[T](func(ctx hydrate.Context, payload map[string]any) (map[string]any, error) {
			return hook(ctx.ID, payload)
		}))
	}
	if o.strict {
		decoderOpts = append(decoderOpts, hydrate.WithDisallowUnknownFields[T]())
	}
	decoderOpts = append(decoderOpts, hydrate.WithPostHook[T](assignID[T]))

	return hydrate.NewDecoder[T](decoderOpts...).Decode(hydrate.Context{ID: id, Type: o.typeLabel}, payload)
}

func describe[T any]() Config {
	var sample T
	if typ := reflect.TypeFor[T](); typ.Kind() == reflect.Pointer {
		sample = reflect.New(typ.Elem()).Interface().(T)
	}
	if d, ok := any(sample).(Describer); ok {
		return d.DescribeStrata()
	}
	if d, ok := any(&sample).(Describer); ok {
		return d.DescribeStrata()
	}
	return Config{}
}

func assignID[T any](ctx hydrate.Context, value *T) error {
	if identifiable, ok := any(value).(Identifiable); ok {
		identifiable.SetStrataID(ctx.ID)
		return nil
	}
	if identifiable, ok := any(*value).(Identifiable); ok {
		identifiable.SetStrataID(ctx.ID)
	}
	return nil
}

// buildPayload resolves the baseline properties of id, merges the lists cfg
// names and expands references. Properties set only in override layers are
// not part of the object's shape and are left out. visiting guards against
// reference cycles.
func buildPayload(s *sb.Stratabase, id uuid.UUID, cfg Config, depth int, visiting map[uuid.UUID]bool) map[string]any {
	baseline := s.GetAllBaselinePropertiesFor(id)
	payload := make(map[string]any, len(baseline)+len(cfg.Lists))
	for name := range baseline {
		if s.HasList(id, name) {
			payload[name] = sb.MergedList(s, id, name)
			continue
		}
		if value, ok := sb.SearchForFirstSetValue[any](s, id, name); ok {
			payload[name] = value
		}
	}
	for _, name := range cfg.Lists {
		if _, ok := payload[name]; ok {
			continue
		}
		if s.HasList(id, name) {
			payload[name] = sb.MergedList(s, id, name)
		} else {
			payload[name] = []any{}
		}
	}
	visiting[id] = true
	defer delete(visiting, id)
	for _, name := range cfg.References {
		value, ok := payload[name]
		if !ok {
			continue
		}
		payload[name] = expand(s, value, cfg, depth, visiting)
	}
	return payload
}

func expand(s *sb.Stratabase, value any, cfg Config, depth int, visiting map[uuid.UUID]bool) any {
	switch typed := value.(type) {
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = expand(s, item, cfg, depth, visiting)
		}
		return out
	case uuid.UUID:
		return expandID(s, typed, cfg, depth, visiting)
	case string:
		id, err := uuid.Parse(typed)
		if err != nil {
			return typed
		}
		return expandID(s, id, cfg, depth, visiting)
	default:
		return value
	}
}

// expandID replaces id with the payload of the referenced object. Nested
// objects share cfg, so self-similar graphs expand level by level.
func expandID(s *sb.Stratabase, id uuid.UUID, cfg Config, depth int, visiting map[uuid.UUID]bool) any {
	if depth == 0 || visiting[id] || !s.Contains(id) {
		return id.String()
	}
	return buildPayload(s, id, cfg, depth-1, visiting)
}
