package jsontext

import (
	"strconv"
	"strings"
)

// Kind identifies the shape of a node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindValue
	KindArray
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindArray:
		return "array"
	case KindDocument:
		return "document"
	default:
		return "invalid"
	}
}

// NodeID addresses a node inside a Tree.
type NodeID int

// NoNode is the parent of the root node.
const NoNode NodeID = -1

// Node is one parsed or built value. Start and End delimit the half-open
// byte range of the value in Tree.Source.
type Node struct {
	Kind     Kind
	Start    int
	End      int
	Parent   NodeID
	Children []NodeID
	// Key is the member name when the parent is a document.
	Key string
	// Raw holds scalar text: the verbatim content between quotes for quoted
	// scalars, the trimmed token otherwise.
	Raw    string
	Quoted bool
}

// Tree is an arena of nodes over a source string. Nodes refer to each other
// through NodeID handles.
type Tree struct {
	Source string
	nodes  []Node
	root   NodeID
	format Format
}

func newTree(source string) *Tree {
	return &Tree{Source: source, root: NoNode}
}

func (t *Tree) add(n Node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) attach(parent, child NodeID) {
	t.nodes[child].Parent = parent
	if parent != NoNode {
		t.nodes[parent].Children = append(t.nodes[parent].Children, child)
	}
}

// Root returns the top-level node, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if t == nil {
		return NoNode
	}
	return t.root
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Node returns a copy of the node addressed by id.
func (t *Tree) Node(id NodeID) Node {
	n := t.nodes[id]
	n.Children = append([]NodeID(nil), n.Children...)
	return n
}

// Kind returns the kind of id.
func (t *Tree) Kind(id NodeID) Kind {
	if t == nil || id < 0 || int(id) >= len(t.nodes) {
		return KindInvalid
	}
	return t.nodes[id].Kind
}

// Parent returns the parent handle of id.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].Parent
}

// Children returns the child handles of id in source order.
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].Children...)
}

// ChildCount returns the child count of a container node.
func (t *Tree) ChildCount(id NodeID) int {
	return len(t.nodes[id].Children)
}

// Lookup returns the first member of document id named key.
func (t *Tree) Lookup(id NodeID, key string) (NodeID, bool) {
	if t.Kind(id) != KindDocument {
		return NoNode, false
	}
	for _, child := range t.nodes[id].Children {
		if t.nodes[child].Key == key {
			return child, true
		}
	}
	return NoNode, false
}

// Keys returns the member names of document id in source order.
func (t *Tree) Keys(id NodeID) []string {
	if t.Kind(id) != KindDocument {
		return nil
	}
	keys := make([]string, 0, len(t.nodes[id].Children))
	for _, child := range t.nodes[id].Children {
		keys = append(keys, t.nodes[child].Key)
	}
	return keys
}

// Text returns the source text covered by id.
func (t *Tree) Text(id NodeID) string {
	n := t.nodes[id]
	return t.Source[n.Start:n.End]
}

// IsNull reports whether id is the bare literal null.
func (t *Tree) IsNull(id NodeID) bool {
	n := t.nodes[id]
	return n.Kind == KindValue && !n.Quoted && n.Raw == "null"
}

// String returns the unescaped string content of a scalar node.
func (t *Tree) String(id NodeID) string {
	n := t.nodes[id]
	if n.Quoted {
		return Unescape(n.Raw)
	}
	return n.Raw
}

// Value decodes id into plain Go values: map[string]any for documents, []any
// for arrays, and string, bool, int, float64 or nil for scalars. Bare tokens
// that are not literals or numbers decode as strings.
func (t *Tree) Value(id NodeID) any {
	n := t.nodes[id]
	switch n.Kind {
	case KindDocument:
		out := make(map[string]any, len(n.Children))
		for _, child := range n.Children {
			key := t.nodes[child].Key
			if _, exists := out[key]; exists {
				continue
			}
			out[key] = t.Value(child)
		}
		return out
	case KindArray:
		out := make([]any, 0, len(n.Children))
		for _, child := range n.Children {
			out = append(out, t.Value(child))
		}
		return out
	case KindValue:
		if n.Quoted {
			return Unescape(n.Raw)
		}
		return literal(n.Raw)
	default:
		return nil
	}
}

func literal(raw string) any {
	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if looksNumeric(raw) {
		if !strings.ContainsAny(raw, ".eE") {
			if v, err := strconv.Atoi(raw); err == nil {
				return v
			}
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}

func looksNumeric(raw string) bool {
	if raw == "" {
		return false
	}
	c := raw[0]
	return c == '-' || c == '+' || (c >= '0' && c <= '9')
}

func (t *Tree) depth(id NodeID) int {
	d := 0
	for p := t.nodes[id].Parent; p != NoNode; p = t.nodes[p].Parent {
		d++
	}
	return d
}
