package stratabase

import (
	"errors"
	"fmt"
	"sort"
)

// Scope names an override layer (tenant, team, user, ...). Higher priority
// values map to higher override indices and therefore win.
type Scope struct {
	Name     string
	Label    string
	Priority int
	Metadata map[string]any
}

// ScopeOption configures metadata on Scope creation.
type ScopeOption func(*scopeConfig)

type scopeConfig struct {
	label    string
	metadata map[string]any
}

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(cfg *scopeConfig) {
		cfg.label = label
	}
}

// WithScopeMetadata attaches arbitrary metadata to the scope. The map is
// copied.
func WithScopeMetadata(metadata map[string]any) ScopeOption {
	return func(cfg *scopeConfig) {
		if len(metadata) == 0 {
			return
		}
		cfg.metadata = copyMetadata(metadata)
	}
}

// NewScope builds a Scope. Validation is deferred to NewWithScopes.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	cfg := scopeConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return Scope{
		Name:     name,
		Label:    cfg.label,
		Priority: priority,
		Metadata: copyMetadata(cfg.metadata),
	}
}

func (s Scope) clone() Scope {
	return Scope{
		Name:     s.Name,
		Label:    s.Label,
		Priority: s.Priority,
		Metadata: copyMetadata(s.Metadata),
	}
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("scope: name must be provided")
	// ErrDuplicateScopeName indicates two scopes share a name.
	ErrDuplicateScopeName = errors.New("scope: names must be unique")
	// ErrReservedScopeName indicates a scope named after the baseline.
	ErrReservedScopeName = errors.New("scope: name is reserved")
	// ErrPriorityOrder indicates duplicate priorities.
	ErrPriorityOrder = errors.New("scope: priorities must be strictly ordered")
)

const baselineName = "baseline"

// NewWithScopes constructs a store with one override layer per scope. Scopes
// are ordered by ascending priority, so the weakest scope is override layer 0
// and the strongest is the last layer.
func NewWithScopes(scopes []Scope, opts ...Option) (*Stratabase, error) {
	ordered, err := orderScopes(scopes)
	if err != nil {
		return nil, err
	}
	opts = append(append([]Option(nil), opts...), func(cfg *config) {
		cfg.scopes = ordered
	})
	return New(len(ordered), opts...), nil
}

func orderScopes(scopes []Scope) ([]Scope, error) {
	seen := make(map[string]struct{}, len(scopes))
	ordered := make([]Scope, len(scopes))
	for i, scope := range scopes {
		if scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if scope.Name == baselineName {
			return nil, fmt.Errorf("%w: %s", ErrReservedScopeName, scope.Name)
		}
		if _, ok := seen[scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, scope.Name)
		}
		seen[scope.Name] = struct{}{}
		ordered[i] = scope.clone()
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Priority == ordered[i].Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, ordered[i].Priority)
		}
	}
	return ordered, nil
}

// Scopes returns copies of the scopes naming the override layers, weakest
// first. It is nil for stores built with New.
func (s *Stratabase) Scopes() []Scope {
	if len(s.cfg.scopes) == 0 {
		return nil
	}
	out := make([]Scope, len(s.cfg.scopes))
	for i, scope := range s.cfg.scopes {
		out[i] = scope.clone()
	}
	return out
}

// LayerScope returns the scope naming an override layer.
func (s *Stratabase) LayerScope(layer int) (Scope, bool) {
	if layer < 0 || layer >= len(s.cfg.scopes) {
		return Scope{}, false
	}
	return s.cfg.scopes[layer].clone(), true
}

// LayerName returns "baseline", the scope name of an override layer, or
// "override[i]" for unnamed layers.
func (s *Stratabase) LayerName(layer int) string {
	if layer == BaselineLayer {
		return baselineName
	}
	if scope, ok := s.LayerScope(layer); ok {
		return scope.Name
	}
	if layer == NotFoundLayer {
		return "none"
	}
	return fmt.Sprintf("override[%d]", layer)
}

// LayerIndex returns the layer index for a name produced by LayerName.
func (s *Stratabase) LayerIndex(name string) (int, bool) {
	if name == baselineName {
		return BaselineLayer, true
	}
	for i := 0; i < s.OverrideLayerCount(); i++ {
		if s.LayerName(i) == name {
			return i, true
		}
	}
	return NotFoundLayer, false
}

func copyMetadata(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
