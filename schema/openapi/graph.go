package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// schemaNode is the intermediate form of one value's schema.
type schemaNode struct {
	Type       string
	Format     string
	Nullable   bool
	Properties map[string]*schemaNode
	Required   []string
	Items      *schemaNode
	OneOf      []*schemaNode
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Nullable {
		result["nullable"] = true
	}
	return result
}

// inline renders the node without component references.
func (n *schemaNode) inline() map[string]any {
	result := n.baseMap()
	if n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for name, child := range n.Properties {
			props[name] = child.inline()
		}
		result["properties"] = props
	}
	if len(n.Required) > 0 {
		result["required"] = sortedCopy(n.Required)
	}
	if n.Items != nil {
		result["items"] = n.Items.inline()
	}
	if len(n.OneOf) > 0 {
		variants := make([]any, len(n.OneOf))
		for i, variant := range n.OneOf {
			variants[i] = variant.inline()
		}
		result["oneOf"] = variants
	}
	return result
}

// Digest identifies structurally equal nodes.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inline())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	timeType = reflect.TypeOf(time.Time{})
)

type schemaBuilder struct {
	visiting map[reflect.Type]bool
}

// buildSchemaGraph describes a resolved property map, or any value reachable
// from one. The root is always an object.
func buildSchemaGraph(value any) (*schemaNode, error) {
	b := &schemaBuilder{visiting: map[reflect.Type]bool{}}
	node, err := b.build(reflect.ValueOf(value))
	if err != nil {
		return nil, err
	}
	if node.Type != "object" {
		return newObjectNode(), nil
	}
	return node, nil
}

func (b *schemaBuilder) build(rv reflect.Value) (*schemaNode, error) {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return &schemaNode{Nullable: true}, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return &schemaNode{Nullable: true}, nil
	}

	switch rv.Type() {
	case uuidType:
		return &schemaNode{Type: "string", Format: "uuid"}, nil
	case timeType:
		return &schemaNode{Type: "string", Format: "date-time"}, nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return &schemaNode{Type: "boolean"}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return &schemaNode{Type: "integer", Format: "int32"}, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &schemaNode{Type: "integer", Format: "int64"}, nil
	case reflect.Float32:
		return &schemaNode{Type: "number", Format: "float"}, nil
	case reflect.Float64:
		return &schemaNode{Type: "number", Format: "double"}, nil
	case reflect.String:
		return &schemaNode{Type: "string"}, nil
	case reflect.Map:
		return b.buildMap(rv)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return &schemaNode{Type: "string", Format: "byte"}, nil
		}
		return b.buildList(rv)
	case reflect.Struct:
		return b.buildStruct(rv)
	default:
		return &schemaNode{Type: "string", Format: "go:" + rv.Type().String()}, nil
	}
}

// buildMap marks every key holding a non-nil value as required: a resolved
// object only carries the properties some layer set.
func (b *schemaBuilder) buildMap(rv reflect.Value) (*schemaNode, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("openapi: map key type %s unsupported", rv.Type().Key())
	}
	node := newObjectNode()
	iter := rv.MapRange()
	for iter.Next() {
		name := iter.Key().String()
		child, err := b.build(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("openapi: property %q: %w", name, err)
		}
		node.Properties[name] = child
		if !child.Nullable {
			node.Required = append(node.Required, name)
		}
	}
	sort.Strings(node.Required)
	return node, nil
}

// buildList describes merged list elements. Elements of differing shapes
// become oneOf variants ordered by digest.
func (b *schemaBuilder) buildList(rv reflect.Value) (*schemaNode, error) {
	node := &schemaNode{Type: "array"}
	variants := map[string]*schemaNode{}
	for i := 0; i < rv.Len(); i++ {
		child, err := b.build(rv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("openapi: element %d: %w", i, err)
		}
		variants[child.Digest()] = child
	}
	switch len(variants) {
	case 0:
		node.Items = &schemaNode{}
	case 1:
		for _, only := range variants {
			node.Items = only
		}
	default:
		digests := make([]string, 0, len(variants))
		for digest := range variants {
			digests = append(digests, digest)
		}
		sort.Strings(digests)
		union := &schemaNode{}
		for _, digest := range digests {
			union.OneOf = append(union.OneOf, variants[digest])
		}
		node.Items = union
	}
	return node, nil
}

func (b *schemaBuilder) buildStruct(rv reflect.Value) (*schemaNode, error) {
	rt := rv.Type()
	if b.visiting[rt] {
		return newObjectNode(), nil
	}
	b.visiting[rt] = true
	defer delete(b.visiting, rt)

	node := newObjectNode()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := parseJSONName(field)
		if skip {
			continue
		}
		child, err := b.build(rv.Field(i))
		if err != nil {
			return nil, err
		}
		node.Properties[name] = child
		if !omitEmpty && field.Type.Kind() != reflect.Pointer {
			node.Required = append(node.Required, name)
		}
	}
	sort.Strings(node.Required)
	return node, nil
}

func parseJSONName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false, false
	}
	segments := strings.Split(tag, ",")
	if segments[0] == "-" {
		return "", false, true
	}
	name = segments[0]
	if name == "" {
		name = field.Name
	}
	for _, segment := range segments[1:] {
		if segment == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
