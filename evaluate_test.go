package stratabase

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func evaluationStore(opts ...Option) *Stratabase {
	sb := New(1, opts...)
	sb.SetBaselineValue(objectA, "tier", "silver")
	sb.SetBaselineValue(objectA, "age", 41)
	sb.SetOverrideValue(0, objectA, "tier", "gold")
	sb.SetBaselineValue(objectB, "tier", "bronze")
	sb.SetBaselineValue(objectB, "age", 19)
	return sb
}

func TestEvaluateDefaultsToExpr(t *testing.T) {
	sb := evaluationStore()
	res, err := sb.Evaluate(objectA, `tier == "gold" && age > 40`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != true {
		t.Fatalf("expected true, got %v", res.Value)
	}

	res, err = sb.Evaluate(objectA, `object["tier"] + ":" + id`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != "gold:"+objectA.String() {
		t.Fatalf("unexpected value %v", res.Value)
	}

	if _, err := sb.Evaluate(objectA, ""); err == nil {
		t.Fatalf("expected empty expression error")
	}
}

func TestEvaluateMissingPropertyIsNil(t *testing.T) {
	sb := evaluationStore()
	res, err := sb.Evaluate(objectA, `missing == nil`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != true {
		t.Fatalf("expected missing property to be nil")
	}
}

func TestSelectReturnsMatchingIDs(t *testing.T) {
	sb := evaluationStore()
	ids, err := sb.Select(`tier in ["gold", "bronze"]`)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(ids) != 2 || ids[0] != objectA || ids[1] != objectB {
		t.Fatalf("unexpected ids %v", ids)
	}

	ids, err = sb.Select(`age < 30`)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(ids) != 1 || ids[0] != objectB {
		t.Fatalf("unexpected ids %v", ids)
	}

	if _, err := sb.Select(`tier`); !errors.Is(err, ErrNotBoolean) {
		t.Fatalf("expected ErrNotBoolean, got %v", err)
	}
}

func TestEvaluateWithCELEvaluator(t *testing.T) {
	cache := NewLRUProgramCache(8)
	sb := evaluationStore(WithEvaluator(NewCELEvaluator(CELWithProgramCache(cache))))

	res, err := sb.Evaluate(objectA, `tier == "gold" && age > 40 && object["tier"] == tier`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != true {
		t.Fatalf("expected true, got %v", res.Value)
	}
	if _, err := sb.Evaluate(objectB, `tier == "gold" && age > 40 && object["tier"] == tier`); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected objects with the same property names to share a program, got %d", cache.Len())
	}

	_, err = sb.Evaluate(objectA, `undeclared > 1`)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "cel" || evalErr.Object != objectA.String() {
		t.Fatalf("expected cel evaluation error, got %v", err)
	}
}

func TestEvaluateWithExplicitContext(t *testing.T) {
	sb := evaluationStore()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	res, err := sb.EvaluateWith(RuleContext{
		ID:    objectB,
		Now:   &now,
		Args:  map[string]any{"min": 18},
		Layer: "baseline",
	}, `age >= args.min && layer == "baseline"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != true {
		t.Fatalf("expected true, got %v", res.Value)
	}

	res, err = sb.EvaluateWith(RuleContext{Object: map[string]any{"age": 3}}, `age`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != 3 {
		t.Fatalf("expected supplied object to win, got %v", res.Value)
	}
}

func TestEvaluateCustomFunctions(t *testing.T) {
	var seen []Call
	sb := evaluationStore(
		WithCustomFunction("shout", func(_ Call, args ...any) (any, error) {
			return strings.ToUpper(args[0].(string)), nil
		}),
		WithCustomFunction("own", func(call Call, args ...any) (any, error) {
			seen = append(seen, call)
			v, _ := call.Property(args[0].(string))
			return v, nil
		}),
	)
	res, err := sb.Evaluate(objectA, `shout(tier)`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != "GOLD" {
		t.Fatalf("expected GOLD, got %v", res.Value)
	}

	res, err = sb.Evaluate(objectB, `own("tier") + ":" + call("own", "tier")`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != "bronze:bronze" {
		t.Fatalf("expected functions bound to objectB, got %v", res.Value)
	}
	if len(seen) != 2 || seen[0].ID != objectB || seen[0].Layer != "baseline" {
		t.Fatalf("unexpected call context %+v", seen)
	}

	if _, err := sb.Evaluate(objectA, `call("missing")`); err == nil {
		t.Fatalf("expected unregistered function error")
	}
}

func TestCELEvaluatorCallsRegistryFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("describe", func(call Call, args ...any) (any, error) {
		return call.Layer + ":" + call.Object["tier"].(string), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("Describe", func(Call, ...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected case-insensitive duplicate rejected")
	}
	if err := registry.Register("count", func(_ Call, args ...any) (any, error) {
		return len(args), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	cache := NewLRUProgramCache(4)
	sb := evaluationStore(WithEngine(EngineCEL), WithFunctionRegistry(registry), WithProgramCache(cache))

	res, err := sb.Evaluate(objectA, `describe() == "override[0]:gold" && call("describe") == describe()`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != true {
		t.Fatalf("expected describe bound to objectA")
	}
	res, err = sb.Evaluate(objectB, `describe()`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != "baseline:bronze" {
		t.Fatalf("expected describe bound to objectB, got %v", res.Value)
	}
	res, err = sb.Evaluate(objectA, `count(1, "a") + call("count", [1, 2, 3])`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != int64(5) {
		t.Fatalf("expected 5, got %#v", res.Value)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected programs with bound functions left uncached, got %d", cache.Len())
	}
}

func TestWithEngineSelectsEvaluator(t *testing.T) {
	cases := []struct {
		engine Engine
		expr   string
	}{
		{engine: EngineExpr, expr: `tier == "gold"`},
		{engine: EngineCEL, expr: `tier == "gold"`},
	}
	for _, tc := range cases {
		t.Run(string(tc.engine), func(t *testing.T) {
			sb := evaluationStore(WithEngine(tc.engine))
			res, err := sb.Evaluate(objectA, tc.expr)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if res.Value != true {
				t.Fatalf("expected true, got %v", res.Value)
			}
			if got := evaluatorEngineName(sb.cfg.evaluator); got != string(tc.engine) {
				t.Fatalf("expected engine %s, got %s", tc.engine, got)
			}
		})
	}

	sb := evaluationStore(WithEngine("lua"))
	if _, err := sb.Evaluate(objectA, `tier`); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestTryFindActiveObjectLayer(t *testing.T) {
	sb := evaluationStore()
	if layer, ok := sb.TryFindActiveObjectLayer(objectA); !ok || layer != 0 {
		t.Fatalf("expected layer 0 for objectA, got %d", layer)
	}
	if layer, ok := sb.TryFindActiveObjectLayer(objectB); !ok || layer != BaselineLayer {
		t.Fatalf("expected baseline for objectB, got %d", layer)
	}
	if layer, ok := sb.TryFindActiveObjectLayer(uuid.Nil); ok || layer != NotFoundLayer {
		t.Fatalf("expected no layer for an unknown object, got %d", layer)
	}
}

func TestEvaluatorLoggerReceivesEvents(t *testing.T) {
	var events []EvaluatorLogEvent
	sb := evaluationStore(WithEvaluatorLogger(EvaluatorLoggerFunc(func(e EvaluatorLogEvent) {
		events = append(events, e)
	})))
	if _, err := sb.Evaluate(objectA, `age`); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := sb.Evaluate(objectA, `age +`); err == nil {
		t.Fatalf("expected syntax error")
	}
	if len(events) != 2 {
		t.Fatalf("expected two log events, got %d", len(events))
	}
	if events[0].Engine != "expr" || events[0].Object != objectA.String() || events[0].Err != nil {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[0].ID != objectA || events[0].Layer != "override[0]" {
		t.Fatalf("expected event for objectA on override[0], got %+v", events[0])
	}
	if events[1].Err == nil {
		t.Fatalf("expected failure logged")
	}
}

func TestEvaluationObjectStringifiesUUIDs(t *testing.T) {
	sb := New(0)
	sb.SetBaselineValue(objectA, "owner", objectB)
	sb.SetBaselineValue(objectA, "peers", []any{objectB, "x"})
	res, err := sb.Evaluate(objectA, `owner == peers[0]`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Value != true {
		t.Fatalf("expected uuid values compared as strings")
	}
	if got, _ := TryGetBaselineValue[[]any](sb, objectA, "peers"); !reflect.DeepEqual(got[0], objectB) {
		t.Fatalf("expected stored slice untouched, got %v", got)
	}
}

func TestLRUProgramCacheEvicts(t *testing.T) {
	cache := NewLRUProgramCache(2)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Get("a")
	cache.Set("c", 3)
	if _, ok := cache.Get("b"); ok {
		t.Fatalf("expected least recently used entry evicted")
	}
	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a retained")
	}
	if NewLRUProgramCache(0).Len() != 0 {
		t.Fatalf("expected empty fallback cache")
	}
}

func TestSchemaDescribesResolvedProperties(t *testing.T) {
	sb, err := NewWithScopes([]Scope{NewScope("user", 10, WithScopeLabel("User"))})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sb.SetBaselineValue(objectA, "limits", map[string]any{"max": 3})
	sb.SetOverrideValue(0, objectA, "name", "n")

	doc, err := sb.Schema(objectA)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if doc.Format != SchemaFormatDescriptors {
		t.Fatalf("unexpected format %s", doc.Format)
	}
	descriptors, ok := doc.Document.([]FieldDescriptor)
	if !ok || len(descriptors) == 0 {
		t.Fatalf("expected field descriptors, got %#v", doc.Document)
	}
	paths := map[string]string{}
	for _, d := range descriptors {
		paths[d.Path] = d.Type
	}
	if paths["limits.max"] == "" || paths["name"] != "string" {
		t.Fatalf("unexpected descriptors %v", paths)
	}
	wantLayers := []SchemaLayer{{Index: BaselineLayer, Name: "baseline"}, {Index: 0, Name: "user", Label: "User"}}
	if !reflect.DeepEqual(doc.Layers, wantLayers) {
		t.Fatalf("unexpected layers %+v", doc.Layers)
	}
}
