package stratabase

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ListChangeKind classifies a ListPropertyAccess notification.
type ListChangeKind int

const (
	ListElementAdded ListChangeKind = iota
	ListElementRemoved
	// ListReset means the merged list was rebuilt from scratch.
	ListReset
)

// ListChange describes one change to a merged list. Index and Element are
// unset for ListReset.
type ListChange[T any] struct {
	Kind    ListChangeKind
	Index   int
	Element T
	Layer   int
}

type boundInsertions struct {
	insertions *ListInsertions
	sub        *Subscription
}

// ListPropertyAccess presents the insertion records every layer contributes
// to a list property as one ordered sequence. Records are merged by declared
// index; the view is rebuilt reactively and never edited directly.
type ListPropertyAccess[T any] struct {
	store    *Stratabase
	manager  *accessManager
	sub      *Subscription
	id       uuid.UUID
	property string

	// bound[0] is the baseline, bound[i+1] is override layer i.
	bound []boundInsertions

	// records and elements are index-aligned.
	records  []*ListInsertion
	elements []T

	changed  notifier[ListChange[T]]
	disposed bool
}

// GenerateListPropertyAccess returns a new list flyweight for (id, property).
func GenerateListPropertyAccess[T any](s *Stratabase, id uuid.UUID, property string) *ListPropertyAccess[T] {
	a := &ListPropertyAccess[T]{
		store:    s,
		manager:  s.acquireManager(id),
		id:       id,
		property: property,
		bound:    make([]boundInsertions, s.OverrideLayerCount()+1),
	}
	for layer := BaselineLayer; layer < s.OverrideLayerCount(); layer++ {
		a.bind(layer, s.insertionsAt(layer, id, property))
	}
	a.rescan()
	a.sub = a.manager.subscribe(property, a.onStoreChange)
	return a
}

func (s *Stratabase) insertionsAt(layer int, id uuid.UUID, property string) *ListInsertions {
	v, _ := s.lookup(layer, id, property)
	insertions, _ := v.(*ListInsertions)
	return insertions
}

func (a *ListPropertyAccess[T]) bind(layer int, insertions *ListInsertions) {
	slot := &a.bound[layer+1]
	slot.sub.Unsubscribe()
	*slot = boundInsertions{insertions: insertions}
	if insertions == nil {
		return
	}
	insertions.bind(layer)
	slot.sub = insertions.Subscribe(a.onInsertionsChange)
}

func (a *ListPropertyAccess[T]) onStoreChange(change Change) {
	insertions, _ := change.NewValue.(*ListInsertions)
	if change.IsRemoval {
		insertions = nil
	}
	if a.bound[change.Layer+1].insertions == insertions {
		return
	}
	a.bind(change.Layer, insertions)
	a.rescan()
	a.changed.notify(ListChange[T]{Kind: ListReset, Layer: change.Layer})
}

func (a *ListPropertyAccess[T]) onInsertionsChange(change InsertionsChange) {
	switch change.Kind {
	case InsertionsAdded:
		added := make(map[*ListInsertion]bool, len(change.Items))
		for _, record := range change.Items {
			added[record] = true
		}
		a.rescan()
		for i, record := range a.records {
			if added[record] {
				a.changed.notify(ListChange[T]{Kind: ListElementAdded, Index: i, Element: a.elements[i], Layer: record.Layer})
			}
		}
	case InsertionsRemoved:
		for _, record := range change.Items {
			i := a.indexOfRecord(record)
			if i < 0 {
				continue
			}
			element := a.elements[i]
			a.records = append(a.records[:i:i], a.records[i+1:]...)
			a.elements = append(a.elements[:i:i], a.elements[i+1:]...)
			a.changed.notify(ListChange[T]{Kind: ListElementRemoved, Index: i, Element: element, Layer: record.Layer})
		}
	case InsertionsReset:
		a.rescan()
		a.changed.notify(ListChange[T]{Kind: ListReset, Layer: NotFoundLayer})
	}
}

// rescan rebuilds the merged view from the bound collections.
func (a *ListPropertyAccess[T]) rescan() {
	collections := make([]*ListInsertions, len(a.bound))
	for i, slot := range a.bound {
		collections[i] = slot.insertions
	}
	a.records = mergeRecords(collections)
	a.elements = make([]T, len(a.records))
	for i, record := range a.records {
		a.elements[i] = cast[T](record.Value)
	}
}

// mergeRecords folds collections, weakest first, into one sequence ordered by
// declared index. The result depends only on the collections, not on the
// order records arrived in.
func mergeRecords(collections []*ListInsertions) []*ListInsertion {
	var merged []*ListInsertion
	for _, insertions := range collections {
		if insertions == nil {
			continue
		}
		for _, record := range insertions.items {
			i := insertionIndex(merged, record.Index)
			merged = append(merged, nil)
			copy(merged[i+1:], merged[i:])
			merged[i] = record
		}
	}
	return merged
}

// insertionIndex returns the lower bound of index among the declared indices
// of records: the first position whose declared index is not less than index.
// A new record therefore lands before existing records declaring the same
// index.
func insertionIndex(records []*ListInsertion, index int) int {
	return sort.Search(len(records), func(i int) bool {
		return records[i].Index >= index
	})
}

func (a *ListPropertyAccess[T]) indexOfRecord(record *ListInsertion) int {
	for i, r := range a.records {
		if r == record {
			return i
		}
	}
	return -1
}

// ID returns the object id.
func (a *ListPropertyAccess[T]) ID() uuid.UUID { return a.id }

// Property returns the property name.
func (a *ListPropertyAccess[T]) Property() string { return a.property }

// Count returns the number of merged elements.
func (a *ListPropertyAccess[T]) Count() int {
	return len(a.elements)
}

// ElementAt returns the i-th merged element.
func (a *ListPropertyAccess[T]) ElementAt(i int) T {
	return a.elements[i]
}

// Elements returns a copy of the merged elements.
func (a *ListPropertyAccess[T]) Elements() []T {
	return append([]T(nil), a.elements...)
}

// TryFindLayerIndexForElementAt returns the layer that contributed the i-th
// element.
func (a *ListPropertyAccess[T]) TryFindLayerIndexForElementAt(i int) (int, bool) {
	if i < 0 || i >= len(a.records) {
		return NotFoundLayer, false
	}
	return a.records[i].Layer, true
}

// TryFindLayerIndexForElement returns the layer that contributed the first
// element equal to element.
func (a *ListPropertyAccess[T]) TryFindLayerIndexForElement(element T) (int, bool) {
	return a.TryFindLayerIndexForElementAt(a.IndexOf(element))
}

// IndexOf returns the merged position of the first element equal to element,
// or -1.
func (a *ListPropertyAccess[T]) IndexOf(element T) int {
	for i, e := range a.elements {
		if a.store.cfg.equal(any(e), any(element)) {
			return i
		}
	}
	return -1
}

// Remove deletes the first element equal to element from the layer that
// contributed it.
func (a *ListPropertyAccess[T]) Remove(element T) bool {
	return a.RemoveAt(a.IndexOf(element))
}

// RemoveAt deletes the i-th element from the layer that contributed it. The
// merged view updates from the resulting collection notification.
func (a *ListPropertyAccess[T]) RemoveAt(i int) bool {
	layer, ok := a.TryFindLayerIndexForElementAt(i)
	if !ok {
		return false
	}
	insertions := a.bound[layer+1].insertions
	if insertions == nil {
		return false
	}
	return insertions.Remove(a.records[i])
}

// CreateInsert starts an insertion of values declared at index.
func (a *ListPropertyAccess[T]) CreateInsert(index int, values ...T) *ListInsertBuilder[T] {
	return &ListInsertBuilder[T]{access: a, index: index, values: values}
}

// CreateAdd starts an insertion of values after the current last element.
func (a *ListPropertyAccess[T]) CreateAdd(values ...T) *ListInsertBuilder[T] {
	return a.CreateInsert(a.Count(), values...)
}

// Subscribe registers fn for merged list changes.
func (a *ListPropertyAccess[T]) Subscribe(fn func(ListChange[T])) *Subscription {
	return a.changed.subscribe(fn)
}

// Dispose detaches the flyweight from the store and every collection. It is
// safe to call twice.
func (a *ListPropertyAccess[T]) Dispose() {
	if a.disposed {
		return
	}
	a.disposed = true
	a.sub.Unsubscribe()
	for i := range a.bound {
		a.bound[i].sub.Unsubscribe()
	}
	a.store.releaseManager(a.manager)
}

// ensureInsertions returns the collection stored at layer, creating and
// storing an empty one when the property holds none.
func (a *ListPropertyAccess[T]) ensureInsertions(layer int) *ListInsertions {
	if layer != BaselineLayer {
		a.store.checkOverride(layer)
	}
	if insertions := a.store.insertionsAt(layer, a.id, a.property); insertions != nil {
		return insertions
	}
	a.store.set(layer, a.id, a.property, NewListInsertions(layer))
	insertions := a.store.insertionsAt(layer, a.id, a.property)
	if insertions == nil {
		panic(fmt.Sprintf("stratabase: property %q of %s did not accept a list collection", a.property, a.id))
	}
	return insertions
}

// ListInsertBuilder collects values for CreateInsert and CreateAdd. Nothing
// is written until StoreInBaseline or StoreInOverride is called.
type ListInsertBuilder[T any] struct {
	access *ListPropertyAccess[T]
	index  int
	values []T
}

// StoreInBaseline appends the records to the baseline collection.
func (b *ListInsertBuilder[T]) StoreInBaseline() []*ListInsertion {
	return b.store(BaselineLayer)
}

// StoreInOverride appends the records to an override layer's collection.
func (b *ListInsertBuilder[T]) StoreInOverride(layer int) []*ListInsertion {
	b.access.store.checkOverride(layer)
	return b.store(layer)
}

func (b *ListInsertBuilder[T]) store(layer int) []*ListInsertion {
	insertions := b.access.ensureInsertions(layer)
	values := make([]any, len(b.values))
	for i, v := range b.values {
		values[i] = v
	}
	return insertions.InsertRange(b.index, values...)
}

// MergedList returns the merged elements of a list property without keeping
// a flyweight alive.
func MergedList(s *Stratabase, id uuid.UUID, property string) []any {
	collections := make([]*ListInsertions, 0, s.OverrideLayerCount()+1)
	for layer := BaselineLayer; layer < s.OverrideLayerCount(); layer++ {
		collections = append(collections, s.insertionsAt(layer, id, property))
	}
	merged := mergeRecords(collections)
	out := make([]any, len(merged))
	for i, r := range merged {
		out[i] = r.Value
	}
	return out
}

// HasList reports whether any layer stores a list collection for property.
func (s *Stratabase) HasList(id uuid.UUID, property string) bool {
	for layer := BaselineLayer; layer < s.OverrideLayerCount(); layer++ {
		if s.insertionsAt(layer, id, property) != nil {
			return true
		}
	}
	return false
}
