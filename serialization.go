package stratabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-stratabase/pkg/jsontext"
)

const (
	baselineKey  = "BaselineData"
	overridesKey = "OverrideLayers"
)

// ErrInvalidDocument is returned when a document parses but does not have
// the serialized store shape.
var ErrInvalidDocument = errors.New("stratabase: invalid document")

// SerializeOption selects what SerializeToJSON writes.
type SerializeOption func(*serializeConfig)

type serializeConfig struct {
	skipBaseline bool
	overrides    map[int]bool
	indent       string
}

// WithoutBaseline writes "BaselineData": null.
func WithoutBaseline() SerializeOption {
	return func(cfg *serializeConfig) {
		cfg.skipBaseline = true
	}
}

// WithOverrideLayers restricts the written override layers to layers. Every
// other entry of "OverrideLayers" is written as null.
func WithOverrideLayers(layers ...int) SerializeOption {
	return func(cfg *serializeConfig) {
		cfg.overrides = make(map[int]bool, len(layers))
		for _, layer := range layers {
			cfg.overrides[layer] = true
		}
	}
}

// WithIndent pretty prints the document using indent per level.
func WithIndent(indent string) SerializeOption {
	return func(cfg *serializeConfig) {
		cfg.indent = indent
	}
}

func (cfg serializeConfig) includesOverride(layer int) bool {
	return cfg.overrides == nil || cfg.overrides[layer]
}

// SerializeToJSON writes the raw contents of every layer:
//
//	{"BaselineData": {"<id>": {"<property>": <value>}}, "OverrideLayers": [{...}, null]}
//
// List collections are written as {"$list": [{"Index": n, "Value": v}]}.
// Values whose Go type the plain JSON form cannot carry are tagged the same
// way: {"$uuid": "<id>"}, {"$float32": f} and {"$int64": "<n>"} (likewise
// for every sized or unsigned integer). int, float64, string, bool and nil
// are written untagged. Other values are normalized through encoding/json
// first.
func SerializeToJSON(s *Stratabase, opts ...SerializeOption) (string, error) {
	cfg := serializeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	var textOpts []jsontext.Option
	if cfg.indent != "" {
		textOpts = append(textOpts, jsontext.WithIndent(cfg.indent))
	}

	doc := jsontext.NewDocumentBuilder(textOpts...)
	baseline := doc.StartProperty(baselineKey)
	if cfg.skipBaseline {
		baseline.SetValue(nil)
	} else if err := writeStratum(baseline.StartDocument(), s.baseline); err != nil {
		return "", err
	}
	layers := doc.StartArray(overridesKey)
	for i, st := range s.overrides {
		if !cfg.includesOverride(i) {
			layers.AddArrayItem(nil)
			continue
		}
		if err := writeStratum(layers.StartDocument(), st); err != nil {
			return "", err
		}
	}

	result := doc.Finalize()
	if err := result.Err(); err != nil {
		return "", err
	}
	return result.Tree.Source, nil
}

func writeStratum(doc *jsontext.DocumentBuilder, st stratum) error {
	ids := make([]uuid.UUID, 0, len(st))
	for id := range st {
		ids = append(ids, id)
	}
	sortIDs(ids)
	for _, id := range ids {
		bag := st[id]
		bagDoc := doc.StartDocument(id.String())
		for _, property := range sortedKeys(bag) {
			value, err := serializable(bag[property])
			if err != nil {
				return fmt.Errorf("stratabase: serialize %s/%s: %w", id, property, err)
			}
			bagDoc.AddProperty(property, value)
		}
	}
	return nil
}

const (
	uuidMarker    = "$uuid"
	float32Marker = "$float32"
)

// integerMarkers tags integer kinds other than int. Payloads are decimal
// strings so uint64 values above the float range survive.
var integerMarkers = map[string]func(string) (any, error){
	"$int8":   func(raw string) (any, error) { v, err := strconv.ParseInt(raw, 10, 8); return int8(v), err },
	"$int16":  func(raw string) (any, error) { v, err := strconv.ParseInt(raw, 10, 16); return int16(v), err },
	"$int32":  func(raw string) (any, error) { v, err := strconv.ParseInt(raw, 10, 32); return int32(v), err },
	"$int64":  func(raw string) (any, error) { return strconv.ParseInt(raw, 10, 64) },
	"$uint":   func(raw string) (any, error) { v, err := strconv.ParseUint(raw, 10, 0); return uint(v), err },
	"$uint8":  func(raw string) (any, error) { v, err := strconv.ParseUint(raw, 10, 8); return uint8(v), err },
	"$uint16": func(raw string) (any, error) { v, err := strconv.ParseUint(raw, 10, 16); return uint16(v), err },
	"$uint32": func(raw string) (any, error) { v, err := strconv.ParseUint(raw, 10, 32); return uint32(v), err },
	"$uint64": func(raw string) (any, error) { return strconv.ParseUint(raw, 10, 64) },
}

func tagged(marker string, payload any) map[string]any {
	return map[string]any{marker: payload}
}

// serializable converts v into values the jsontext builder writes
// losslessly for the decoded value domain.
func serializable(v any) (any, error) {
	switch typed := v.(type) {
	case nil, string, bool, int:
		return typed, nil
	case int8:
		return tagged("$int8", strconv.FormatInt(int64(typed), 10)), nil
	case int16:
		return tagged("$int16", strconv.FormatInt(int64(typed), 10)), nil
	case int32:
		return tagged("$int32", strconv.FormatInt(int64(typed), 10)), nil
	case int64:
		return tagged("$int64", strconv.FormatInt(typed, 10)), nil
	case uint:
		return tagged("$uint", strconv.FormatUint(uint64(typed), 10)), nil
	case uint8:
		return tagged("$uint8", strconv.FormatUint(uint64(typed), 10)), nil
	case uint16:
		return tagged("$uint16", strconv.FormatUint(uint64(typed), 10)), nil
	case uint32:
		return tagged("$uint32", strconv.FormatUint(uint64(typed), 10)), nil
	case uint64:
		return tagged("$uint64", strconv.FormatUint(typed, 10)), nil
	case float32:
		f, err := checkFloat(float64(typed))
		if err != nil {
			return nil, err
		}
		return tagged(float32Marker, f), nil
	case float64:
		return checkFloat(typed)
	case uuid.UUID:
		return tagged(uuidMarker, typed.String()), nil
	case *ListInsertions:
		items := make([]any, 0, typed.Len())
		for _, record := range typed.items {
			value, err := serializable(record.Value)
			if err != nil {
				return nil, err
			}
			items = append(items, map[string]any{"Index": record.Index, "Value": value})
		}
		return tagged(listMarker, items), nil
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			value, err := serializable(item)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			value, err := serializable(item)
			if err != nil {
				return nil, err
			}
			out[key] = value
		}
		return out, nil
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return nil, err
		}
		result := jsontext.Parse(string(raw))
		if err := result.Err(); err != nil {
			return nil, err
		}
		return serializable(result.Tree.Value(result.Tree.Root()))
	}
}

func checkFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported float value %v", f)
	}
	return f, nil
}

// DeserializeFromJSON rebuilds a store from SerializeToJSON output. The
// override layer count is the length of "OverrideLayers". No change events
// are fired.
func DeserializeFromJSON(text string, opts ...Option) (*Stratabase, error) {
	result := jsontext.ParseDocument(text)
	if result.HasErrors() {
		return nil, fmt.Errorf("stratabase: deserialize: %w", result.Err())
	}
	tree := result.Tree
	root := tree.Root()

	count := 0
	layersNode, hasLayers := tree.Lookup(root, overridesKey)
	if hasLayers {
		switch {
		case tree.Kind(layersNode) == jsontext.KindArray:
			count = tree.ChildCount(layersNode)
		case !tree.IsNull(layersNode):
			return nil, fmt.Errorf("%w: %s must be an array", ErrInvalidDocument, overridesKey)
		}
	}

	s := New(count, opts...)
	if node, ok := tree.Lookup(root, baselineKey); ok {
		if err := s.readStratum(tree, node, BaselineLayer); err != nil {
			return nil, err
		}
	}
	if count > 0 {
		for i, node := range tree.Children(layersNode) {
			if err := s.readStratum(tree, node, i); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *Stratabase) readStratum(tree *jsontext.Tree, node jsontext.NodeID, layer int) error {
	if tree.IsNull(node) {
		return nil
	}
	if tree.Kind(node) != jsontext.KindDocument {
		return fmt.Errorf("%w: layer %s must be a document", ErrInvalidDocument, s.LayerName(layer))
	}
	st := s.stratum(layer)
	for _, child := range tree.Children(node) {
		key := tree.Node(child).Key
		id, err := uuid.Parse(key)
		if err != nil {
			return fmt.Errorf("%w: object key %q: %v", ErrInvalidDocument, key, err)
		}
		if tree.Kind(child) != jsontext.KindDocument {
			return fmt.Errorf("%w: properties of %s must be a document", ErrInvalidDocument, id)
		}
		bag := st[id]
		for _, prop := range tree.Children(child) {
			value, err := decodeValue(tree, prop, layer)
			if err != nil {
				return err
			}
			if bag == nil {
				bag = PropertyBag{}
				st[id] = bag
			}
			bag[tree.Node(prop).Key] = value
		}
	}
	return nil
}

// decodeValue rebuilds the value at node, undoing the tags written by
// serializable. Only a property's top-level value may be a list collection.
func decodeValue(tree *jsontext.Tree, node jsontext.NodeID, layer int) (any, error) {
	return decodeNode(tree, node, layer, true)
}

func decodeNode(tree *jsontext.Tree, node jsontext.NodeID, layer int, top bool) (any, error) {
	switch tree.Kind(node) {
	case jsontext.KindArray:
		children := tree.Children(node)
		out := make([]any, len(children))
		for i, child := range children {
			value, err := decodeNode(tree, child, layer, false)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	case jsontext.KindDocument:
		children := tree.Children(node)
		if len(children) == 1 {
			if value, ok, err := decodeTagged(tree, children[0], layer, top); ok || err != nil {
				return value, err
			}
		}
		out := make(map[string]any, len(children))
		for _, child := range children {
			key := tree.Node(child).Key
			if _, exists := out[key]; exists {
				continue
			}
			value, err := decodeNode(tree, child, layer, false)
			if err != nil {
				return nil, err
			}
			out[key] = value
		}
		return out, nil
	default:
		return tree.Value(node), nil
	}
}

// decodeTagged reports ok when child is the single member of a tagged
// value.
func decodeTagged(tree *jsontext.Tree, child jsontext.NodeID, layer int, top bool) (any, bool, error) {
	marker := tree.Node(child).Key
	switch {
	case marker == listMarker && top:
		insertions, err := decodeList(tree, child, layer)
		return insertions, true, err
	case marker == uuidMarker:
		raw, isString := tree.Value(child).(string)
		if !isString {
			return nil, true, fmt.Errorf("%w: %s must be a string", ErrInvalidDocument, uuidMarker)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %s %q: %v", ErrInvalidDocument, uuidMarker, raw, err)
		}
		return id, true, nil
	case marker == float32Marker:
		switch f := tree.Value(child).(type) {
		case float64:
			return float32(f), true, nil
		case int:
			return float32(f), true, nil
		}
		return nil, true, fmt.Errorf("%w: %s %q", ErrInvalidDocument, float32Marker, tree.Text(child))
	}
	parse, isInteger := integerMarkers[marker]
	if !isInteger {
		return nil, false, nil
	}
	raw, isString := tree.Value(child).(string)
	if !isString {
		return nil, true, fmt.Errorf("%w: %s must be a string", ErrInvalidDocument, marker)
	}
	value, err := parse(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s %q: %v", ErrInvalidDocument, marker, raw, err)
	}
	return value, true, nil
}

func decodeList(tree *jsontext.Tree, items jsontext.NodeID, layer int) (*ListInsertions, error) {
	if tree.Kind(items) != jsontext.KindArray {
		return nil, fmt.Errorf("%w: %s must be an array", ErrInvalidDocument, listMarker)
	}
	insertions := NewListInsertions(layer)
	for _, item := range tree.Children(items) {
		record := &ListInsertion{Layer: layer}
		if idx, ok := tree.Lookup(item, "Index"); ok {
			index, isInt := tree.Value(idx).(int)
			if !isInt {
				return nil, fmt.Errorf("%w: list index %q", ErrInvalidDocument, tree.Text(idx))
			}
			record.Index = index
		}
		if value, ok := tree.Lookup(item, "Value"); ok {
			decoded, err := decodeNode(tree, value, layer, false)
			if err != nil {
				return nil, err
			}
			record.Value = decoded
		}
		insertions.items = append(insertions.items, record)
	}
	return insertions, nil
}

// SaveToFile serializes s to path. Failures are logged and reported as
// false.
func SaveToFile(path string, s *Stratabase, opts ...SerializeOption) bool {
	text, err := SerializeToJSON(s, opts...)
	if err != nil {
		glog.Errorf("[stratabase] serialize for %s: %v\n", path, err)
		return false
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			glog.Errorf("[stratabase] create dirs for %s: %v\n", path, err)
			return false
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		glog.Errorf("[stratabase] write %s: %v\n", path, err)
		return false
	}
	glog.V(1).Infof("[stratabase] saved %d bytes to %s\n", len(text), path)
	return true
}

// LoadFromFile reads a store written by SaveToFile.
func LoadFromFile(path string, opts ...Option) (*Stratabase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stratabase: read %s: %w", path, err)
	}
	return DeserializeFromJSON(string(raw), opts...)
}
