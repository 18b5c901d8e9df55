package stratabase

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoEvaluator = errors.New("stratabase: evaluator not configured")
	// ErrNotBoolean is returned by Select when an expression does not
	// evaluate to a bool.
	ErrNotBoolean = errors.New("stratabase: expression did not evaluate to a bool")
)

// ResolvedProperties returns the effective value of every property of id.
// List properties are returned merged, as []any.
func (s *Stratabase) ResolvedProperties(id uuid.UUID) map[string]any {
	out := map[string]any{}
	for _, property := range s.PropertyNamesFor(id) {
		if s.HasList(id, property) {
			out[property] = MergedList(s, id, property)
			continue
		}
		if v, _, ok := s.Resolve(id, property); ok {
			out[property] = v
		}
	}
	return out
}

// Evaluate executes expr against the resolved properties of id.
func (s *Stratabase) Evaluate(id uuid.UUID, expr string) (Response[any], error) {
	return s.EvaluateWith(RuleContext{ID: id}, expr)
}

// EvaluateWith executes expr using ctx. When ctx.Object is nil it is filled
// with the resolved properties of ctx.ID, and an empty ctx.Layer with the
// name of the strongest layer holding any property of ctx.ID.
func (s *Stratabase) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Object == nil && ctx.ID != uuid.Nil {
		ctx.Object = evaluationObject(s.ResolvedProperties(ctx.ID))
	}
	if ctx.Layer == "" && ctx.ID != uuid.Nil {
		if layer, ok := s.TryFindActiveObjectLayer(ctx.ID); ok {
			ctx.Layer = s.LayerName(layer)
		}
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, expr, ctx.objectLabel(), evalErr)
	s.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Object:   ctx.objectLabel(),
		ID:       ctx.ID,
		Layer:    ctx.Layer,
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

// Select returns the ids, in IDs order, whose resolved properties satisfy
// the boolean expression expr.
func (s *Stratabase) Select(expr string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range s.IDs() {
		res, err := s.Evaluate(id, expr)
		if err != nil {
			return nil, err
		}
		matched, ok := res.Value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrNotBoolean, id, res.Value)
		}
		if matched {
			out = append(out, id)
		}
	}
	return out, nil
}

// evaluationObject converts values evaluators cannot bind natively. Slices
// are copied since resolved values are shared with the store.
func evaluationObject(resolved map[string]any) map[string]any {
	for key, value := range resolved {
		switch typed := value.(type) {
		case uuid.UUID:
			resolved[key] = typed.String()
		case []any:
			items := make([]any, len(typed))
			for i, item := range typed {
				if id, ok := item.(uuid.UUID); ok {
					items[i] = id.String()
					continue
				}
				items[i] = item
			}
			resolved[key] = items
		}
	}
	return resolved
}

// TryFindActiveObjectLayer returns the strongest layer holding at least one
// property of id.
func (s *Stratabase) TryFindActiveObjectLayer(id uuid.UUID) (int, bool) {
	for layer := len(s.overrides) - 1; layer >= 0; layer-- {
		if len(s.overrides[layer][id]) > 0 {
			return layer, true
		}
	}
	if len(s.baseline[id]) > 0 {
		return BaselineLayer, true
	}
	return NotFoundLayer, false
}

func (s *Stratabase) resolveEvaluator() (Evaluator, error) {
	if s.cfg.evaluator != nil {
		return s.cfg.evaluator, nil
	}
	evaluator, err := s.buildEvaluator()
	if err != nil {
		return nil, err
	}
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	s.cfg.evaluator = evaluator
	return evaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(engineNamer); ok {
		return string(named.engine())
	}
	if e == nil {
		return "unknown"
	}
	return "custom"
}
