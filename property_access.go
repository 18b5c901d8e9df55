package stratabase

import "github.com/google/uuid"

// ValueChange is fired by a PropertyAccess when the effective value or the
// layer supplying it changes.
type ValueChange[T any] struct {
	ID       uuid.UUID
	Property string
	OldValue T
	NewValue T
	OldLayer int
	NewLayer int
	WasSet   bool
	IsSet    bool
}

// PropertyAccess is a cached view of the effective value of one property.
// It holds no data of its own; writes go through the store and the cache is
// refreshed from change events.
type PropertyAccess[T any] struct {
	store    *Stratabase
	manager  *accessManager
	sub      *Subscription
	id       uuid.UUID
	property string

	value T
	layer int
	set   bool

	changed  notifier[ValueChange[T]]
	disposed bool
}

// GeneratePropertyAccess returns a new flyweight for (id, property). Call
// Dispose when done so the store can drop its access manager for id.
func GeneratePropertyAccess[T any](s *Stratabase, id uuid.UUID, property string) *PropertyAccess[T] {
	a := &PropertyAccess[T]{
		store:    s,
		manager:  s.acquireManager(id),
		id:       id,
		property: property,
	}
	a.value, a.layer, a.set = a.resolve()
	a.sub = a.manager.subscribe(property, func(Change) { a.refresh() })
	return a
}

func (a *PropertyAccess[T]) resolve() (T, int, bool) {
	v, layer, ok := a.store.Resolve(a.id, a.property)
	if !ok {
		var zero T
		return zero, NotFoundLayer, false
	}
	return cast[T](v), layer, true
}

func (a *PropertyAccess[T]) refresh() {
	value, layer, set := a.resolve()
	if set == a.set && layer == a.layer && a.store.cfg.equal(any(value), any(a.value)) {
		return
	}
	event := ValueChange[T]{
		ID:       a.id,
		Property: a.property,
		OldValue: a.value,
		NewValue: value,
		OldLayer: a.layer,
		NewLayer: layer,
		WasSet:   a.set,
		IsSet:    set,
	}
	a.value, a.layer, a.set = value, layer, set
	a.changed.notify(event)
}

// ID returns the object id.
func (a *PropertyAccess[T]) ID() uuid.UUID { return a.id }

// Property returns the property name.
func (a *PropertyAccess[T]) Property() string { return a.property }

// Value returns the cached effective value.
func (a *PropertyAccess[T]) Value() (T, bool) {
	return a.value, a.set
}

// ActiveLayer returns the layer supplying the value, or NotFoundLayer.
func (a *PropertyAccess[T]) ActiveLayer() int {
	return a.layer
}

// IsSet reports whether any layer holds the property.
func (a *PropertyAccess[T]) IsSet() bool {
	return a.set
}

// SetBaselineValue writes value to the baseline.
func (a *PropertyAccess[T]) SetBaselineValue(value T) bool {
	return a.store.SetBaselineValue(a.id, a.property, value)
}

// SetOverrideValue writes value to an override layer.
func (a *PropertyAccess[T]) SetOverrideValue(layer int, value T) bool {
	return a.store.SetOverrideValue(layer, a.id, a.property, value)
}

// ClearBaselineValue removes the baseline value.
func (a *PropertyAccess[T]) ClearBaselineValue() bool {
	return a.store.ClearBaselinePropertyValue(a.id, a.property)
}

// ClearOverrideValue removes the value held by an override layer.
func (a *PropertyAccess[T]) ClearOverrideValue(layer int) bool {
	return a.store.ClearOverridePropertyValue(layer, a.id, a.property)
}

// Subscribe registers fn for effective value changes.
func (a *PropertyAccess[T]) Subscribe(fn func(ValueChange[T])) *Subscription {
	return a.changed.subscribe(fn)
}

// Dispose detaches the flyweight from the store. It is safe to call twice.
func (a *PropertyAccess[T]) Dispose() {
	if a.disposed {
		return
	}
	a.disposed = true
	a.sub.Unsubscribe()
	a.store.releaseManager(a.manager)
}
