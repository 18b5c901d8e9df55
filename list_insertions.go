package stratabase

import "encoding/json"

// ListInsertion is one element contributed to a list property by a layer.
// Index is the position the element was declared at, used as a hint when
// the contributions of all layers are merged.
type ListInsertion struct {
	Layer int
	Index int
	Value any
}

// InsertionsChangeKind classifies a ListInsertions notification.
type InsertionsChangeKind int

const (
	InsertionsAdded InsertionsChangeKind = iota
	InsertionsRemoved
	// InsertionsReset means the whole collection was replaced.
	InsertionsReset
)

// InsertionsChange is delivered to ListInsertions subscribers. Items is
// empty for InsertionsReset.
type InsertionsChange struct {
	Kind  InsertionsChangeKind
	Items []*ListInsertion
}

// ListInsertions is the observable per-layer collection backing a list
// property. It is stored as an ordinary property value in a layer's bag.
type ListInsertions struct {
	layer   int
	items   []*ListInsertion
	changed notifier[InsertionsChange]
}

// NewListInsertions returns an empty collection for layer.
func NewListInsertions(layer int) *ListInsertions {
	return &ListInsertions{layer: layer}
}

// Layer returns the layer the collection contributes to.
func (l *ListInsertions) Layer() int {
	return l.layer
}

// bind assigns the collection and its records to layer.
func (l *ListInsertions) bind(layer int) {
	l.layer = layer
	for _, item := range l.items {
		item.Layer = layer
	}
}

// Len returns the number of records.
func (l *ListInsertions) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// At returns the i-th record in insertion order.
func (l *ListInsertions) At(i int) *ListInsertion {
	return l.items[i]
}

// Items returns the records in insertion order. The slice is a copy; the
// records are shared.
func (l *ListInsertions) Items() []*ListInsertion {
	if l == nil {
		return nil
	}
	return append([]*ListInsertion(nil), l.items...)
}

// Insert appends a record declaring value at index.
func (l *ListInsertions) Insert(index int, value any) *ListInsertion {
	return l.InsertRange(index, value)[0]
}

// InsertRange appends one record per value with consecutive declared indices
// starting at index, and fires a single add notification.
func (l *ListInsertions) InsertRange(index int, values ...any) []*ListInsertion {
	if len(values) == 0 {
		return nil
	}
	added := make([]*ListInsertion, len(values))
	for i, v := range values {
		added[i] = &ListInsertion{Layer: l.layer, Index: index + i, Value: v}
	}
	l.items = append(l.items, added...)
	l.changed.notify(InsertionsChange{Kind: InsertionsAdded, Items: added})
	return added
}

// Remove deletes record, matched by identity.
func (l *ListInsertions) Remove(record *ListInsertion) bool {
	for i, item := range l.items {
		if item == record {
			return l.RemoveAt(i)
		}
	}
	return false
}

// RemoveAt deletes the i-th record.
func (l *ListInsertions) RemoveAt(i int) bool {
	if i < 0 || i >= len(l.items) {
		return false
	}
	record := l.items[i]
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	l.changed.notify(InsertionsChange{Kind: InsertionsRemoved, Items: []*ListInsertion{record}})
	return true
}

// Reset replaces every record.
func (l *ListInsertions) Reset(records []*ListInsertion) {
	l.items = make([]*ListInsertion, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		r.Layer = l.layer
		l.items = append(l.items, r)
	}
	l.changed.notify(InsertionsChange{Kind: InsertionsReset})
}

// Clear removes every record.
func (l *ListInsertions) Clear() {
	l.Reset(nil)
}

// Subscribe registers fn for collection changes.
func (l *ListInsertions) Subscribe(fn func(InsertionsChange)) *Subscription {
	return l.changed.subscribe(fn)
}

// Detach returns a copy with fresh records and no subscribers.
func (l *ListInsertions) Detach() *ListInsertions {
	out := &ListInsertions{layer: l.layer, items: make([]*ListInsertion, len(l.items))}
	for i, item := range l.items {
		copied := *item
		out.items[i] = &copied
	}
	return out
}

// Values returns the record values in insertion order.
func (l *ListInsertions) Values() []any {
	out := make([]any, len(l.items))
	for i, item := range l.items {
		out[i] = item.Value
	}
	return out
}

type insertionJSON struct {
	Index int
	Value any
}

// MarshalJSON writes the records as {"$list":[{"Index":n,"Value":v}]}.
func (l *ListInsertions) MarshalJSON() ([]byte, error) {
	items := make([]insertionJSON, len(l.items))
	for i, item := range l.items {
		items[i] = insertionJSON{Index: item.Index, Value: item.Value}
	}
	return json.Marshal(map[string]any{listMarker: items})
}

const listMarker = "$list"
