package stratabase

import (
	"fmt"
	"sort"

	"github.com/golang/glog"
	"github.com/google/uuid"
	clone "github.com/huandu/go-clone"

	"github.com/goliatone/go-stratabase/pkg/activity"
)

// Stratabase is a layered property store. Every object id owns a property bag
// in the baseline stratum and in each of a fixed number of override strata.
// The effective value of a property comes from the highest override layer
// that holds it, falling back to the baseline.
//
// A Stratabase is not safe for concurrent use. Change handlers run inline on
// the mutating goroutine and must not mutate the store.
type Stratabase struct {
	baseline  stratum
	overrides []stratum
	cfg       config
	changed   notifier[Change]
	managers  map[uuid.UUID]*accessManager
	emitter   *activity.Emitter
}

// New constructs a store with overrideLayerCount override layers.
func New(overrideLayerCount int, opts ...Option) *Stratabase {
	if overrideLayerCount < 0 {
		panic(fmt.Sprintf("stratabase: negative override layer count %d", overrideLayerCount))
	}
	cfg := applyOptions(opts)
	s := &Stratabase{
		baseline:  stratum{},
		overrides: make([]stratum, overrideLayerCount),
		cfg:       cfg,
		managers:  map[uuid.UUID]*accessManager{},
	}
	for i := range s.overrides {
		s.overrides[i] = stratum{}
	}
	s.emitter = newActivityEmitter(cfg)
	return s
}

// OverrideLayerCount returns the number of override layers.
func (s *Stratabase) OverrideLayerCount() int {
	return len(s.overrides)
}

func (s *Stratabase) stratum(layer int) stratum {
	if layer == BaselineLayer {
		return s.baseline
	}
	s.checkOverride(layer)
	return s.overrides[layer]
}

func (s *Stratabase) checkOverride(layer int) {
	if layer < 0 || layer >= len(s.overrides) {
		panic(fmt.Sprintf("stratabase: override layer %d out of range [0,%d)", layer, len(s.overrides)))
	}
}

// Contains reports whether any layer holds at least one property for id.
func (s *Stratabase) Contains(id uuid.UUID) bool {
	if len(s.baseline[id]) > 0 {
		return true
	}
	for _, st := range s.overrides {
		if len(st[id]) > 0 {
			return true
		}
	}
	return false
}

// SetBaselineValue stores value in the baseline layer. It returns false when
// the stored value already equals value.
func (s *Stratabase) SetBaselineValue(id uuid.UUID, property string, value any) bool {
	return s.set(BaselineLayer, id, property, value)
}

// SetOverrideValue stores value in an override layer. It panics when layer is
// outside [0, OverrideLayerCount).
func (s *Stratabase) SetOverrideValue(layer int, id uuid.UUID, property string, value any) bool {
	s.checkOverride(layer)
	return s.set(layer, id, property, value)
}

func (s *Stratabase) set(layer int, id uuid.UUID, property string, value any) bool {
	st := s.stratum(layer)
	bag := st[id]
	old, had := bag[property]
	if had && s.cfg.equal(old, value) {
		return false
	}
	if bag == nil {
		bag = PropertyBag{}
		st[id] = bag
	}
	bag[property] = value
	s.notify(Change{
		ID:         id,
		Property:   property,
		IsBaseline: layer == BaselineLayer,
		Layer:      layer,
		OldValue:   old,
		NewValue:   value,
	})
	return true
}

// GetBaselineValue returns the raw baseline value.
func (s *Stratabase) GetBaselineValue(id uuid.UUID, property string) (any, bool) {
	return s.lookup(BaselineLayer, id, property)
}

// GetOverrideValue returns the raw value of an override layer.
func (s *Stratabase) GetOverrideValue(layer int, id uuid.UUID, property string) (any, bool) {
	s.checkOverride(layer)
	return s.lookup(layer, id, property)
}

func (s *Stratabase) lookup(layer int, id uuid.UUID, property string) (any, bool) {
	v, ok := s.stratum(layer)[id][property]
	return v, ok
}

// TryGetBaselineValue returns the baseline value as T. A stored value of
// another type panics.
func TryGetBaselineValue[T any](s *Stratabase, id uuid.UUID, property string) (T, bool) {
	v, ok := s.GetBaselineValue(id, property)
	if !ok {
		var zero T
		return zero, false
	}
	return cast[T](v), true
}

// TryGetOverrideValue returns the value of an override layer as T. A stored
// value of another type panics.
func TryGetOverrideValue[T any](s *Stratabase, layer int, id uuid.UUID, property string) (T, bool) {
	v, ok := s.GetOverrideValue(layer, id, property)
	if !ok {
		var zero T
		return zero, false
	}
	return cast[T](v), true
}

func cast[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// HasBaselineValueSet reports whether the baseline holds property for id.
func (s *Stratabase) HasBaselineValueSet(id uuid.UUID, property string) bool {
	_, ok := s.lookup(BaselineLayer, id, property)
	return ok
}

// HasOverrideValueSet reports whether an override layer holds property for id.
func (s *Stratabase) HasOverrideValueSet(layer int, id uuid.UUID, property string) bool {
	_, ok := s.GetOverrideValue(layer, id, property)
	return ok
}

// ClearBaselinePropertyValue removes property from the baseline.
func (s *Stratabase) ClearBaselinePropertyValue(id uuid.UUID, property string) bool {
	return s.clear(BaselineLayer, id, property)
}

// ClearOverridePropertyValue removes property from an override layer.
func (s *Stratabase) ClearOverridePropertyValue(layer int, id uuid.UUID, property string) bool {
	s.checkOverride(layer)
	return s.clear(layer, id, property)
}

func (s *Stratabase) clear(layer int, id uuid.UUID, property string) bool {
	st := s.stratum(layer)
	bag := st[id]
	old, had := bag[property]
	if !had {
		return false
	}
	delete(bag, property)
	if len(bag) == 0 {
		delete(st, id)
	}
	s.notify(Change{
		ID:         id,
		Property:   property,
		IsBaseline: layer == BaselineLayer,
		Layer:      layer,
		OldValue:   old,
		IsRemoval:  true,
	})
	return true
}

// ClearAllFor removes id from every layer. When notify is false no change
// events are fired.
func (s *Stratabase) ClearAllFor(id uuid.UUID, notify bool) {
	removed := 0
	for layer := BaselineLayer; layer < len(s.overrides); layer++ {
		st := s.stratum(layer)
		bag, ok := st[id]
		if !ok {
			continue
		}
		delete(st, id)
		removed += len(bag)
		if !notify {
			continue
		}
		for _, property := range sortedKeys(bag) {
			s.notify(Change{
				ID:         id,
				Property:   property,
				IsBaseline: layer == BaselineLayer,
				Layer:      layer,
				OldValue:   bag[property],
				IsRemoval:  true,
			})
		}
	}
	if notify && removed > 0 {
		s.emitObjectCleared(id, removed)
	}
}

// TryFindActiveLayer returns the layer that supplies the effective value of
// property: the highest override holding it, then the baseline. It returns
// NotFoundLayer and false when no layer holds it.
func (s *Stratabase) TryFindActiveLayer(id uuid.UUID, property string) (int, bool) {
	for layer := len(s.overrides) - 1; layer >= 0; layer-- {
		if _, ok := s.overrides[layer][id][property]; ok {
			return layer, true
		}
	}
	if _, ok := s.baseline[id][property]; ok {
		return BaselineLayer, true
	}
	return NotFoundLayer, false
}

// Resolve returns the effective value of property and the layer it came from.
func (s *Stratabase) Resolve(id uuid.UUID, property string) (any, int, bool) {
	layer, ok := s.TryFindActiveLayer(id, property)
	if !ok {
		return nil, NotFoundLayer, false
	}
	v, _ := s.lookup(layer, id, property)
	return v, layer, true
}

// SearchForFirstSetValue returns the effective value of property as T.
func SearchForFirstSetValue[T any](s *Stratabase, id uuid.UUID, property string) (T, bool) {
	v, _, ok := s.Resolve(id, property)
	if !ok {
		var zero T
		return zero, false
	}
	return cast[T](v), true
}

// GetAllBaselinePropertiesFor returns a deep copy of the baseline bag of id.
func (s *Stratabase) GetAllBaselinePropertiesFor(id uuid.UUID) map[string]any {
	bag := s.baseline[id]
	if len(bag) == 0 {
		return map[string]any{}
	}
	return exportBag(bag)
}

// PropertyNamesFor returns the sorted union of property names set for id in
// any layer.
func (s *Stratabase) PropertyNamesFor(id uuid.UUID) []string {
	seen := map[string]struct{}{}
	for layer := BaselineLayer; layer < len(s.overrides); layer++ {
		for property := range s.stratum(layer)[id] {
			seen[property] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDs returns every id held by any layer, sorted by their string form.
func (s *Stratabase) IDs() []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	for layer := BaselineLayer; layer < len(s.overrides); layer++ {
		for id := range s.stratum(layer) {
			seen[id] = struct{}{}
		}
	}
	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// ExportLayer returns a deep copy of one stratum. Use BaselineLayer for the
// baseline.
func (s *Stratabase) ExportLayer(layer int) map[uuid.UUID]map[string]any {
	st := s.stratum(layer)
	out := make(map[uuid.UUID]map[string]any, len(st))
	for id, bag := range st {
		out[id] = exportBag(bag)
	}
	return out
}

// ImportLayer writes a deep copy of data into layer through the regular set
// path, so subscribers and flyweights observe every changed value. List
// collections are detached and bound to layer. It returns the number of
// values that changed.
func (s *Stratabase) ImportLayer(layer int, data map[uuid.UUID]map[string]any) int {
	if layer != BaselineLayer {
		s.checkOverride(layer)
	}
	ids := make([]uuid.UUID, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sortIDs(ids)
	changed := 0
	for _, id := range ids {
		bag := PropertyBag(data[id])
		for _, property := range sortedKeys(bag) {
			value := cloneValue(bag[property])
			if insertions, ok := value.(*ListInsertions); ok {
				insertions.bind(layer)
			}
			if s.set(layer, id, property, value) {
				changed++
			}
		}
	}
	return changed
}

// Subscribe registers fn for every change in every layer.
func (s *Stratabase) Subscribe(fn func(Change)) *Subscription {
	return s.changed.subscribe(fn)
}

// EqualityTester returns the configured tester.
func (s *Stratabase) EqualityTester() EqualityTester {
	return s.cfg.equal
}

func (s *Stratabase) notify(change Change) {
	s.changed.notify(change)
	if m := s.managers[change.ID]; m != nil {
		m.dispatch(change)
	}
	s.emitChange(change)
}

func (s *Stratabase) acquireManager(id uuid.UUID) *accessManager {
	m := s.managers[id]
	if m == nil {
		m = newAccessManager(id)
		s.managers[id] = m
		glog.V(2).Infof("[stratabase] access manager created for %s\n", id)
	}
	m.refs++
	return m
}

func (s *Stratabase) releaseManager(m *accessManager) {
	m.refs--
	if m.refs > 0 {
		return
	}
	if s.managers[m.id] == m {
		delete(s.managers, m.id)
		glog.V(2).Infof("[stratabase] access manager released for %s\n", m.id)
	}
}

func (s *Stratabase) hasAccessManager(id uuid.UUID) bool {
	_, ok := s.managers[id]
	return ok
}

// exportBag deep copies bag. List collections are detached from their
// subscribers.
func exportBag(bag PropertyBag) map[string]any {
	out := make(map[string]any, len(bag))
	for property, value := range bag {
		out[property] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	if insertions, ok := value.(*ListInsertions); ok {
		return insertions.Detach()
	}
	return clone.Clone(value)
}

func sortedKeys(bag PropertyBag) []string {
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
