package jsontext

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNotArray is returned by AppendNew when the target is not an array.
var ErrNotArray = errors.New("jsontext: node is not an array")

// Literal is written without quotes, as-is.
type Literal string

type member struct {
	key   string
	value any
}

// DocumentBuilder assembles a document. Values may be scalars, []any,
// map[string]any, Literal, or other builders.
type DocumentBuilder struct {
	opts    []Option
	members []member
}

// ArrayBuilder assembles an array.
type ArrayBuilder struct {
	opts  []Option
	items []any
}

// PropertyBuilder holds the value of a property started with StartProperty.
type PropertyBuilder struct {
	value any
}

// NewDocumentBuilder starts a top-level document.
func NewDocumentBuilder(opts ...Option) *DocumentBuilder {
	return &DocumentBuilder{opts: opts}
}

// NewArrayBuilder starts a top-level array.
func NewArrayBuilder(opts ...Option) *ArrayBuilder {
	return &ArrayBuilder{opts: opts}
}

// AddProperty appends key with a value.
func (d *DocumentBuilder) AddProperty(key string, value any) *DocumentBuilder {
	d.members = append(d.members, member{key: key, value: value})
	return d
}

// StartProperty appends key and returns a builder for its value. The value
// defaults to null until set.
func (d *DocumentBuilder) StartProperty(key string) *PropertyBuilder {
	prop := &PropertyBuilder{}
	d.members = append(d.members, member{key: key, value: prop})
	return prop
}

// StartDocument appends key holding a nested document and returns it.
func (d *DocumentBuilder) StartDocument(key string) *DocumentBuilder {
	child := &DocumentBuilder{}
	d.members = append(d.members, member{key: key, value: child})
	return child
}

// StartArray appends key holding a nested array and returns it.
func (d *DocumentBuilder) StartArray(key string) *ArrayBuilder {
	child := &ArrayBuilder{}
	d.members = append(d.members, member{key: key, value: child})
	return child
}

// Len returns the number of members added so far.
func (d *DocumentBuilder) Len() int {
	return len(d.members)
}

// Finalize renders the document and returns the equivalent parsed tree.
func (d *DocumentBuilder) Finalize() *ParseResult {
	return finalize(d, d.opts)
}

// AddArrayItem appends value.
func (a *ArrayBuilder) AddArrayItem(value any) *ArrayBuilder {
	a.items = append(a.items, value)
	return a
}

// StartDocument appends a nested document and returns it.
func (a *ArrayBuilder) StartDocument() *DocumentBuilder {
	child := &DocumentBuilder{}
	a.items = append(a.items, child)
	return child
}

// StartArray appends a nested array and returns it.
func (a *ArrayBuilder) StartArray() *ArrayBuilder {
	child := &ArrayBuilder{}
	a.items = append(a.items, child)
	return child
}

// Len returns the number of items added so far.
func (a *ArrayBuilder) Len() int {
	return len(a.items)
}

// Finalize renders the array and returns the equivalent parsed tree.
func (a *ArrayBuilder) Finalize() *ParseResult {
	return finalize(a, a.opts)
}

// SetValue sets a scalar, container, or builder as the property value.
func (p *PropertyBuilder) SetValue(value any) {
	p.value = value
}

// StartDocument makes the property a document and returns its builder.
func (p *PropertyBuilder) StartDocument() *DocumentBuilder {
	child := &DocumentBuilder{}
	p.value = child
	return child
}

// StartArray makes the property an array and returns its builder.
func (p *PropertyBuilder) StartArray() *ArrayBuilder {
	child := &ArrayBuilder{}
	p.value = child
	return child
}

func finalize(root any, opts []Option) *ParseResult {
	cfg := applyOptions(opts)
	w := &writer{format: cfg.format, tree: newTree("")}
	id := w.value(root, NoNode, "", 0)
	w.tree.Source = w.b.String()
	w.tree.root = id
	w.tree.format = cfg.format
	return success(w.tree)
}

// AppendNew splices value into the source as the last element of array and
// shifts the offsets of every node at or after the insertion point. It
// returns the handle of the new element.
func (t *Tree) AppendNew(array NodeID, value any) (NodeID, error) {
	if t.Kind(array) != KindArray {
		return NoNode, fmt.Errorf("%w: %s", ErrNotArray, t.Kind(array))
	}
	depth := t.depth(array)
	format := t.format
	if format.QuoteChar == 0 {
		format = defaultConfig().format
	}

	w := &writer{format: format, tree: newTree("")}
	child := w.value(value, NoNode, "", depth+1)
	text := w.b.String()

	n := t.nodes[array]
	var at int
	var prefix, suffix string
	if len(n.Children) == 0 {
		at = n.End - 1
		if w.formatted() {
			prefix = w.format.Newline + strings.Repeat(w.format.Indent, depth+1)
			suffix = w.format.Newline + strings.Repeat(w.format.Indent, depth)
		}
	} else {
		at = t.nodes[n.Children[len(n.Children)-1]].End
		prefix = ","
		if w.formatted() {
			prefix += w.format.Newline + strings.Repeat(w.format.Indent, depth+1)
		} else if w.format.SpaceAfter {
			prefix += " "
		}
	}

	inserted := prefix + text + suffix
	delta := len(inserted)
	for i := range t.nodes {
		if t.nodes[i].Start >= at {
			t.nodes[i].Start += delta
		}
		if t.nodes[i].End > at {
			t.nodes[i].End += delta
		}
	}

	base := NodeID(len(t.nodes))
	offset := at + len(prefix)
	for _, node := range w.tree.nodes {
		node.Start += offset
		node.End += offset
		if node.Parent == NoNode {
			node.Parent = array
		} else {
			node.Parent += base
		}
		for i := range node.Children {
			node.Children[i] += base
		}
		t.nodes = append(t.nodes, node)
	}
	added := base + child
	t.nodes[array].Children = append(t.nodes[array].Children, added)
	t.Source = t.Source[:at] + inserted + t.Source[at:]
	return added, nil
}

type writer struct {
	b      strings.Builder
	format Format
	tree   *Tree
}

func (w *writer) formatted() bool {
	return w.format.Newline != ""
}

func (w *writer) lineBreak(depth int) {
	if !w.formatted() {
		return
	}
	w.b.WriteString(w.format.Newline)
	w.b.WriteString(strings.Repeat(w.format.Indent, depth))
}

func (w *writer) open(kind Kind, parent NodeID, key string) NodeID {
	id := w.tree.add(Node{Kind: kind, Start: w.b.Len(), Key: key})
	w.tree.attach(parent, id)
	return id
}

func (w *writer) close(id NodeID) {
	w.tree.nodes[id].End = w.b.Len()
}

func (w *writer) value(v any, parent NodeID, key string, depth int) NodeID {
	switch typed := v.(type) {
	case *PropertyBuilder:
		return w.value(typed.value, parent, key, depth)
	case *DocumentBuilder:
		return w.document(typed.members, parent, key, depth)
	case *ArrayBuilder:
		return w.array(typed.items, parent, key, depth)
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]member, 0, len(keys))
		for _, k := range keys {
			members = append(members, member{key: k, value: typed[k]})
		}
		return w.document(members, parent, key, depth)
	case []any:
		return w.array(typed, parent, key, depth)
	case []string:
		items := make([]any, len(typed))
		for i := range typed {
			items[i] = typed[i]
		}
		return w.array(items, parent, key, depth)
	case string:
		return w.quoted(typed, parent, key)
	case Literal:
		return w.bare(string(typed), parent, key)
	case nil:
		return w.bare("null", parent, key)
	case bool:
		return w.bare(strconv.FormatBool(typed), parent, key)
	case int:
		return w.bare(strconv.Itoa(typed), parent, key)
	case int8:
		return w.bare(strconv.FormatInt(int64(typed), 10), parent, key)
	case int16:
		return w.bare(strconv.FormatInt(int64(typed), 10), parent, key)
	case int32:
		return w.bare(strconv.FormatInt(int64(typed), 10), parent, key)
	case int64:
		return w.bare(strconv.FormatInt(typed, 10), parent, key)
	case uint:
		return w.bare(strconv.FormatUint(uint64(typed), 10), parent, key)
	case uint8:
		return w.bare(strconv.FormatUint(uint64(typed), 10), parent, key)
	case uint16:
		return w.bare(strconv.FormatUint(uint64(typed), 10), parent, key)
	case uint32:
		return w.bare(strconv.FormatUint(uint64(typed), 10), parent, key)
	case uint64:
		return w.bare(strconv.FormatUint(typed, 10), parent, key)
	case float32:
		return w.bare(formatFloat(float64(typed), 32), parent, key)
	case float64:
		return w.bare(formatFloat(typed, 64), parent, key)
	case fmt.Stringer:
		return w.quoted(typed.String(), parent, key)
	default:
		return w.quoted(fmt.Sprint(typed), parent, key)
	}
}

func (w *writer) document(members []member, parent NodeID, key string, depth int) NodeID {
	id := w.open(KindDocument, parent, key)
	w.b.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			w.b.WriteByte(',')
			if !w.formatted() && w.format.SpaceAfter {
				w.b.WriteByte(' ')
			}
		}
		w.lineBreak(depth + 1)
		w.key(m.key)
		w.b.WriteByte(':')
		if w.formatted() || w.format.SpaceAfter {
			w.b.WriteByte(' ')
		}
		w.value(m.value, id, m.key, depth+1)
	}
	if len(members) > 0 {
		w.lineBreak(depth)
	}
	w.b.WriteByte('}')
	w.close(id)
	return id
}

func (w *writer) array(items []any, parent NodeID, key string, depth int) NodeID {
	id := w.open(KindArray, parent, key)
	w.b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			w.b.WriteByte(',')
			if !w.formatted() && w.format.SpaceAfter {
				w.b.WriteByte(' ')
			}
		}
		w.lineBreak(depth + 1)
		w.value(item, id, "", depth+1)
	}
	if len(items) > 0 {
		w.lineBreak(depth)
	}
	w.b.WriteByte(']')
	w.close(id)
	return id
}

func (w *writer) key(key string) {
	if !w.format.QuoteKeys && isIdentifier(key) {
		w.b.WriteString(key)
		return
	}
	q := w.format.QuoteChar
	w.b.WriteByte(q)
	w.b.WriteString(Escape(key, q))
	w.b.WriteByte(q)
}

func (w *writer) quoted(s string, parent NodeID, key string) NodeID {
	q := w.format.QuoteChar
	raw := Escape(s, q)
	id := w.tree.add(Node{Kind: KindValue, Start: w.b.Len(), Key: key, Raw: raw, Quoted: true})
	w.tree.attach(parent, id)
	w.b.WriteByte(q)
	w.b.WriteString(raw)
	w.b.WriteByte(q)
	w.close(id)
	return id
}

func (w *writer) bare(token string, parent NodeID, key string) NodeID {
	id := w.tree.add(Node{Kind: KindValue, Start: w.b.Len(), Key: key, Raw: token})
	w.tree.attach(parent, id)
	w.b.WriteString(token)
	w.close(id)
	return id
}

func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
